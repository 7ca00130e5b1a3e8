package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for the remote model service
const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultVisionModel    = "gpt-4o-mini"
	DefaultRecommendModel = "gpt-4o-mini"
	DefaultMaxTokens      = 500
)

// Config holds the configuration for the Photo Adjust AI server
type Config struct {
	// Credentials may also come from the settings file
	OpenAIAPIKey  string
	OpenAIBaseURL string

	ImagesRoot string

	// Optional with defaults
	VisionModel    string
	RecommendModel string
	MaxImageSizeMB int
	JPEGQuality    int
	MaxTokens      int
	DebugMode      bool

	Timeouts TimeoutConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		OpenAIBaseURL:  DefaultBaseURL,
		VisionModel:    DefaultVisionModel,
		RecommendModel: DefaultRecommendModel,
		MaxImageSizeMB: 20,
		JPEGQuality:    92,
		MaxTokens:      DefaultMaxTokens,
		DebugMode:      false,
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAIBaseURL = baseURL
	}

	cfg.ImagesRoot = os.Getenv("PHOTO_ADJUST_ROOT_FOLDER")
	if cfg.ImagesRoot == "" {
		cfg.ImagesRoot = "./photo_adjust_images"
	}

	if model := os.Getenv("VISION_MODEL"); model != "" {
		cfg.VisionModel = model
	}
	if model := os.Getenv("RECOMMEND_MODEL"); model != "" {
		cfg.RecommendModel = model
	}

	if maxSize := os.Getenv("MAX_IMAGE_SIZE_MB"); maxSize != "" {
		val, err := strconv.Atoi(maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_IMAGE_SIZE_MB: %w", err)
		}
		cfg.MaxImageSizeMB = val
	}

	if quality := os.Getenv("JPEG_QUALITY"); quality != "" {
		val, err := strconv.Atoi(quality)
		if err != nil {
			return nil, fmt.Errorf("invalid JPEG_QUALITY: %w", err)
		}
		cfg.JPEGQuality = val
	}

	if maxTokens := os.Getenv("MAX_TOKENS"); maxTokens != "" {
		val, err := strconv.Atoi(maxTokens)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_TOKENS: %w", err)
		}
		cfg.MaxTokens = val
	}

	if debug := os.Getenv("DEBUG_MODE"); debug != "" {
		val, err := strconv.ParseBool(debug)
		if err != nil {
			return nil, fmt.Errorf("invalid DEBUG_MODE: %w", err)
		}
		cfg.DebugMode = val
	}

	cfg.Timeouts = LoadTimeouts()

	return cfg, nil
}

// Validate checks if the configuration is valid.
// A missing API key is not an error here: the settings file may supply it later.
func (c *Config) Validate() error {
	if c.OpenAIBaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.VisionModel == "" || c.RecommendModel == "" {
		return fmt.Errorf("vision and recommend models are required")
	}
	if c.MaxImageSizeMB <= 0 {
		return fmt.Errorf("max image size must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be between 1 and 100")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}

	if err := os.MkdirAll(c.ImagesRoot, 0755); err != nil {
		return fmt.Errorf("failed to create images root folder: %w", err)
	}

	return nil
}

// MaxImageBytes returns the import size limit in bytes
func (c *Config) MaxImageBytes() int64 {
	return int64(c.MaxImageSizeMB) * 1024 * 1024
}
