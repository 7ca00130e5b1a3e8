package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomcpgo/photo_adjust_ai/pkg/adjust"
	"github.com/gomcpgo/photo_adjust_ai/pkg/analysis"
	"github.com/gomcpgo/photo_adjust_ai/pkg/client"
	"github.com/gomcpgo/photo_adjust_ai/pkg/config"
	"github.com/gomcpgo/photo_adjust_ai/pkg/editor"
	"github.com/gomcpgo/photo_adjust_ai/pkg/histogram"
	"github.com/gomcpgo/photo_adjust_ai/pkg/recommend"
	"github.com/gomcpgo/photo_adjust_ai/pkg/settings"
	"github.com/gomcpgo/photo_adjust_ai/pkg/storage"
	"github.com/gomcpgo/photo_adjust_ai/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	adjustJobs    int
	adjustDryRun  bool
	filterOutput  string
	histBuckets   int
	settingAPIKey string
	settingBase   string
)

var filterValues = map[types.FilterName]*int{}

func settingsStore(cfg *config.Config) *settings.Store {
	return settings.NewStoreInDir(cfg.ImagesRoot, settings.Settings{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
}

func newAdjustCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust <image>...",
		Short: "Auto-adjust images and save the results",
		Long: `Runs the two-call analysis on each image, applies the recommended
adjustments and saves the result with its reasoning under the images root.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAdjust,
	}
	cmd.Flags().IntVarP(&adjustJobs, "jobs", "j", 2, "number of images analyzed concurrently")
	cmd.Flags().BoolVar(&adjustDryRun, "dry-run", false, "print recommendations without saving")
	return cmd
}

type adjustOutcome struct {
	file      string
	result    *analysis.Result
	chain     adjust.Chain
	savedPath string
}

func runAdjust(cmd *cobra.Command, files []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeouts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeouts.AnalysisTimeout*time.Duration(len(files)))
		defer cancel()
	}

	c := client.NewOpenAIClient(settingsStore(cfg), logger.Named("client"))
	requestor := analysis.NewRequestor(c, analysis.Options{
		VisionModel:    cfg.VisionModel,
		RecommendModel: cfg.RecommendModel,
		MaxTokens:      cfg.MaxTokens,
		JPEGQuality:    cfg.JPEGQuality,
	}, logger.Named("analysis"))
	store := storage.NewStorage(cfg.ImagesRoot)

	outcomes := make([]adjustOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if adjustJobs > 0 {
		g.SetLimit(adjustJobs)
	}

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			ed, err := editor.Import(file, cfg.MaxImageBytes())
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			result, err := requestor.Analyze(gctx, ed.Source())
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			chain := adjust.FromAdjustments(result.Adjustments)
			outcome := adjustOutcome{file: file, result: result, chain: chain}

			if !adjustDryRun {
				id, err := store.GenerateID()
				if err != nil {
					return err
				}
				saved, err := store.SaveImage(id, chain.Apply(ed.Source()), ed.ExportFilename(), cfg.JPEGQuality)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				saved.ProcessingTime = result.Duration.Seconds()
				if err := store.SaveMetadata(id, &types.ImageMetadata{
					Operation:  types.OperationAutoAdjust,
					SourcePath: file,
					Model:      fmt.Sprintf("%s,%s", cfg.VisionModel, cfg.RecommendModel),
					Parameters: result.Adjustments.ToMap(),
					Filters:    chain.String(),
					Reasoning:  result.Reasoning,
					Result:     saved,
				}); err != nil {
					logger.Warn("Failed to save metadata", zap.String("id", id), zap.Error(err))
				}
				outcome.savedPath = store.GetImagePath(id, saved.Filename)
			}

			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		fmt.Fprintf(out, "== %s\n%s\n\n", o.file, o.result.Reasoning)
		fmt.Fprintf(out, "Adjustments:\n%s", recommend.Format(o.result.Adjustments))
		if o.chain.Empty() {
			fmt.Fprintln(out, "Filters: none")
		} else {
			fmt.Fprintf(out, "Filters: %s\n", o.chain)
		}
		if o.savedPath != "" {
			fmt.Fprintf(out, "Saved: %s\n", o.savedPath)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func newFilterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <image>",
		Short: "Apply brightness, contrast and saturation sliders to an image",
		Args:  cobra.ExactArgs(1),
		RunE:  runFilter,
	}
	for _, name := range types.FilterNames {
		v := new(int)
		filterValues[name] = v
		cmd.Flags().IntVar(v, string(name), 0, fmt.Sprintf("%s slider, %d to %d", name, types.FilterMin, types.FilterMax))
	}
	cmd.Flags().StringVarP(&filterOutput, "output", "o", "", "output path (default: <name>-edited.<ext> next to the input)")
	return cmd
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ed, err := editor.Import(args[0], cfg.MaxImageBytes())
	if err != nil {
		return err
	}
	for _, name := range types.FilterNames {
		if cmd.Flags().Changed(string(name)) {
			if _, err := ed.SetFilter(name, *filterValues[name]); err != nil {
				return err
			}
		}
	}

	output := filterOutput
	if output == "" {
		output = filepath.Join(filepath.Dir(args[0]), ed.ExportFilename())
	}
	if err := imaging.Save(ed.Render(), output, imaging.JPEGQuality(cfg.JPEGQuality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Filters: %s\nSaved: %s\n", ed.Chain(), output)
	return nil
}

func newHistogramCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "histogram <image>",
		Short: "Print the normalized luminance histogram of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if histBuckets <= 0 || histogram.Buckets%histBuckets != 0 {
				return fmt.Errorf("--buckets must divide %d", histogram.Buckets)
			}
			img, err := imaging.Open(args[0], imaging.AutoOrientation(true))
			if err != nil {
				return fmt.Errorf("failed to decode image: %w", err)
			}
			full, err := histogram.Sample(img)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), histogram.Format(histogram.Compress(full, histBuckets)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&histBuckets, "buckets", "b", histogram.CompressedBuckets, "number of buckets")
	return cmd
}

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the API key and base URL",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := settingsStore(cfg)
			values, err := store.Effective()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "api_key:  %s\n", settings.MaskKey(values.APIKey))
			fmt.Fprintf(out, "base_url: %s\n", values.BaseURL)
			fmt.Fprintf(out, "file:     %s\n", store.Path())
			return nil
		},
	})

	set := &cobra.Command{
		Use:   "set",
		Short: "Store the API key or base URL; an empty value clears it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var apiKey, baseURL *string
			if cmd.Flags().Changed("api-key") {
				apiKey = &settingAPIKey
			}
			if cmd.Flags().Changed("base-url") {
				baseURL = &settingBase
			}
			if apiKey == nil && baseURL == nil {
				return fmt.Errorf("nothing to set: pass --api-key or --base-url")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := settingsStore(cfg)
			if err := store.Update(apiKey, baseURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings saved to %s\n", store.Path())
			return nil
		},
	}
	set.Flags().StringVar(&settingAPIKey, "api-key", "", "API key")
	set.Flags().StringVar(&settingBase, "base-url", "", "alternate base URL")
	cmd.AddCommand(set)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Photo Adjust AI MCP Server\n")
			fmt.Fprintf(out, "Version: %s\n", Version)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		},
	}
}
