package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the session recorder
type Config struct {
	// Processing backend (chunk upload, finalize, task status, transcription, file catalog)
	BackendURL     string `envconfig:"BACKEND_URL" required:"true"`
	RequestTimeout int    `envconfig:"REQUEST_TIMEOUT" default:"30"` // seconds, per HTTP request

	// Capture and slicing configuration
	InputDevice       string  `envconfig:"INPUT_DEVICE" default:""`          // Substring of the capture device name; empty = system default
	SampleRate        int     `envconfig:"SAMPLE_RATE" default:"16000"`      // Hz
	Channels          int     `envconfig:"CHANNELS" default:"1"`             // 1 (mono) or 2 (stereo)
	ChunkDuration     int     `envconfig:"CHUNK_DURATION" default:"15"`      // seconds per uploaded slice
	ChunkFormat       string  `envconfig:"CHUNK_FORMAT" default:"wav"`       // wav, flac
	MaxInFlightChunks int     `envconfig:"MAX_INFLIGHT_CHUNKS" default:"2"`  // concurrent chunk uploads per session
	SilenceThreshold  float64 `envconfig:"SILENCE_THRESHOLD" default:"200.0"` // RMS below which a chunk is flagged silent

	// Chunk failure policy. When strict, a session with any undelivered chunk is not finalized.
	StrictChunks bool `envconfig:"STRICT_CHUNKS" default:"false"`

	// Task polling configuration
	PollInterval              int `envconfig:"POLL_INTERVAL" default:"2000"`              // milliseconds between reassembly status polls
	PollMaxAttempts           int `envconfig:"POLL_MAX_ATTEMPTS" default:"60"`            // reassembly polls before giving up
	TranscriptionPollInterval int `envconfig:"TRANSCRIPTION_POLL_INTERVAL" default:"5000"` // milliseconds
	TranscriptionMaxAttempts  int `envconfig:"TRANSCRIPTION_MAX_ATTEMPTS" default:"120"`

	// Post-processing configuration
	AutoTranscribe   bool `envconfig:"AUTO_TRANSCRIBE" default:"true"`
	SegmentDuration  int  `envconfig:"SEGMENT_DURATION" default:"60"`    // seconds, forwarded to /transcribe
	PostProcessDelay int  `envconfig:"POST_PROCESS_DELAY" default:"2000"` // milliseconds to let the backend settle before the catalog check

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Attempts per chunk upload
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"250"`        // Initial backoff in milliseconds
	RetryMaxBackoff            int `envconfig:"RETRY_MAX_BACKOFF" default:"5000"`           // Backoff cap in milliseconds

	// Local record catalog
	CatalogDBPath string `envconfig:"CATALOG_DB_PATH" default:"recordings.db"` // SQLite file; empty disables persistence

	// Status API (health, readiness, metrics, records, events)
	StatusPort string `envconfig:"STATUS_PORT" default:"9090"` // empty disables the status server

	// Observability configuration
	LogConfig
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// LogConfig holds the logging settings. It loads on its own, without the
// backend settings, so logging starts before any command needs a backend.
type LogConfig struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`   // Log level: debug, info, warn, error
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"` // Pretty print logs (for development)
}

// LoadLogConfig reads the logging settings from .env and the environment
func LoadLogConfig() (*LogConfig, error) {
	_ = godotenv.Load()

	var cfg LogConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants the pipeline depends on
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("CHUNK_DURATION must be positive, got %d", c.ChunkDuration)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("CHANNELS must be 1 or 2, got %d", c.Channels)
	}
	switch c.ChunkFormat {
	case "wav", "flac":
	default:
		return fmt.Errorf("CHUNK_FORMAT must be wav or flac, got %q", c.ChunkFormat)
	}
	if c.PollInterval <= 0 || c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_INTERVAL and POLL_MAX_ATTEMPTS must be positive")
	}
	if c.TranscriptionPollInterval <= 0 || c.TranscriptionMaxAttempts <= 0 {
		return fmt.Errorf("TRANSCRIPTION_POLL_INTERVAL and TRANSCRIPTION_MAX_ATTEMPTS must be positive")
	}
	if c.MaxInFlightChunks <= 0 {
		return fmt.Errorf("MAX_INFLIGHT_CHUNKS must be positive, got %d", c.MaxInFlightChunks)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts)
	}
	return nil
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) ChunkDurationValue() time.Duration {
	return time.Duration(c.ChunkDuration) * time.Second
}

func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

func (c *Config) TranscriptionPollIntervalDuration() time.Duration {
	return time.Duration(c.TranscriptionPollInterval) * time.Millisecond
}

func (c *Config) PostProcessDelayDuration() time.Duration {
	return time.Duration(c.PostProcessDelay) * time.Millisecond
}

func (c *Config) CircuitBreakerResetDuration() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
