package main

import (
	"fmt"
	"os"

	"github.com/gomcpgo/mcp/pkg/handler"
	"github.com/gomcpgo/mcp/pkg/server"
	"github.com/gomcpgo/photo_adjust_ai/pkg/config"
	photohandler "github.com/gomcpgo/photo_adjust_ai/pkg/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information (set by build script)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

var debugFlag bool

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "photo_adjust_ai",
		Short: "AI auto-adjust for photos, as an MCP server and CLI",
		Long: `Photo Adjust AI asks a vision model to describe a photo, then asks for
brightness, contrast, highlights and shadows recommendations based on that
description and the photo's luminance histogram, and applies them.

Without a subcommand it runs the MCP server on stdio.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "debug logging (same as DEBUG_MODE=true)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	})
	rootCmd.AddCommand(newAdjustCommand())
	rootCmd.AddCommand(newFilterCommand())
	rootCmd.AddCommand(newHistogramCommand())
	rootCmd.AddCommand(newSettingsCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig loads and validates the environment configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debugFlag {
		cfg.DebugMode = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes JSON logs to stderr; stdout carries the MCP transport
func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	photoHandler, err := photohandler.NewPhotoAdjustHandler(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	defer photoHandler.Close()

	// Create handler registry
	registry := handler.NewHandlerRegistry()
	registry.RegisterToolHandler(photoHandler)

	mcpServer := server.New(server.Options{
		Name:     "Photo Adjust AI",
		Version:  Version,
		Registry: registry,
	})

	logger.Info("Starting MCP server",
		zap.String("version", Version),
		zap.String("images_root", cfg.ImagesRoot),
		zap.String("vision_model", cfg.VisionModel),
		zap.String("recommend_model", cfg.RecommendModel))

	if err := mcpServer.Run(); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	return nil
}
