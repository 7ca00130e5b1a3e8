package config

import (
	"os"
	"strconv"
	"time"
)

// TimeoutConfig holds all configurable timeout values
type TimeoutConfig struct {
	// InitialWait is how long auto_adjust waits before returning a processing status
	InitialWait time.Duration

	// ContinueWait is how long continue_adjustment waits for the analysis to settle
	ContinueWait time.Duration

	// AnalysisTimeout bounds one analysis run. Zero means no bound.
	AnalysisTimeout time.Duration

	// MaxSessionIdle is when idle dialog sessions are cleaned up
	MaxSessionIdle time.Duration
}

// DefaultTimeouts returns the default timeout configuration
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		InitialWait:     15 * time.Second,
		ContinueWait:    30 * time.Second,
		AnalysisTimeout: 0,
		MaxSessionIdle:  30 * time.Minute,
	}
}

// LoadTimeouts loads timeout configuration from environment variables
func LoadTimeouts() TimeoutConfig {
	config := DefaultTimeouts()

	if val := os.Getenv("ANALYSIS_INITIAL_WAIT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.InitialWait = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("ANALYSIS_CONTINUE_WAIT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.ContinueWait = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("ANALYSIS_TIMEOUT_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds >= 0 {
			config.AnalysisTimeout = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("SESSION_MAX_IDLE_MINUTES"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes > 0 {
			config.MaxSessionIdle = time.Duration(minutes) * time.Minute
		}
	}

	return config
}

// TestTimeouts returns timeout configuration suitable for testing
func TestTimeouts() TimeoutConfig {
	return TimeoutConfig{
		InitialWait:     1 * time.Second,
		ContinueWait:    2 * time.Second,
		AnalysisTimeout: 5 * time.Second,
		MaxSessionIdle:  1 * time.Minute,
	}
}
