package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	// Auth
	LabelgestAPIKey string

	// Order ledger; submission is disabled when LedgerURL is empty.
	LedgerURL    string
	LedgerAPIKey string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	ExtractConcurrency int
	MaxConcurrentParse int64

	// Per-client rate limit
	RateLimitEvery time.Duration
	RateLimitBurst int

	// Upload limits
	MaxUploadBytes int64

	// Extraction
	LineTolerance float64
	MinChunkChars int

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// LoadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Port:     envOr("PORT", "8090"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		LabelgestAPIKey: os.Getenv("LABELGEST_API_KEY"),

		LedgerURL:    strings.TrimRight(os.Getenv("LEDGER_URL"), "/"),
		LedgerAPIKey: os.Getenv("LEDGER_API_KEY"),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		ExtractConcurrency: envInt("EXTRACT_CONCURRENCY", 4),
		MaxConcurrentParse: envInt64("MAX_CONCURRENT_PARSE", 4),

		RateLimitEvery: envDuration("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		LineTolerance: envFloat("LINE_TOLERANCE", 1.0),
		MinChunkChars: envInt("MIN_CHUNK_CHARS", 100),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.ExtractConcurrency <= 0 {
		cfg.ExtractConcurrency = 4
	}
	if cfg.MaxConcurrentParse <= 0 {
		cfg.MaxConcurrentParse = 4
	}
	if cfg.RateLimitEvery <= 0 {
		cfg.RateLimitEvery = 600 * time.Millisecond
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.LineTolerance <= 0 {
		cfg.LineTolerance = 1.0
	}
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.LabelgestAPIKey == "" {
		return fmt.Errorf("LABELGEST_API_KEY is required")
	}
	if c.LedgerURL != "" && !strings.HasPrefix(c.LedgerURL, "http://") && !strings.HasPrefix(c.LedgerURL, "https://") {
		return fmt.Errorf("LEDGER_URL must be http/https, got %q", c.LedgerURL)
	}
	return nil
}

// LedgerEnabled reports whether extracted orders can be submitted.
func (c Config) LedgerEnabled() bool {
	return c.LedgerURL != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
