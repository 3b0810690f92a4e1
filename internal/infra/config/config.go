package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string
	CourseFile    string
	ContentDir    string // Base directory for relative slide URLs; defaults to the course file's directory
	DatabaseURL   string // Optional: durable LMS channel
	RedisAddr     string // Optional: volatile session channel, in-memory when empty
	RedisPassword string
	RedisDB       int
	LogLevel      string
	Environment   string

	CronSpecLMSFlush     string
	CronSpecSessionSweep string
	SessionIdleTimeout   time.Duration
	SessionTTL           time.Duration

	SectionVisibilityThreshold float64
	MediaStartDelay            time.Duration
	TOCSettleDelay             time.Duration
	PendingLookupAttempts      int
	PendingLookupInterval      time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.CourseFile = os.Getenv("COURSE_FILE")
	if cfg.CourseFile == "" {
		return nil, fmt.Errorf("COURSE_FILE is not set")
	}
	cfg.ContentDir = os.Getenv("CONTENT_DIR")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecLMSFlush = os.Getenv("CRON_SPEC_LMS_FLUSH")
	if cfg.CronSpecLMSFlush == "" {
		cfg.CronSpecLMSFlush = "@every 30s" // Default: retry failed commits twice a minute
	}
	cfg.CronSpecSessionSweep = os.Getenv("CRON_SPEC_SESSION_SWEEP")
	if cfg.CronSpecSessionSweep == "" {
		cfg.CronSpecSessionSweep = "*/10 * * * *" // Default: every 10 minutes
	}

	if cfg.SessionIdleTimeout, err = durationEnv("SESSION_IDLE_TIMEOUT", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.SectionVisibilityThreshold = 0.3
	if raw := os.Getenv("SECTION_VISIBILITY_THRESHOLD"); raw != "" {
		cfg.SectionVisibilityThreshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || cfg.SectionVisibilityThreshold <= 0 || cfg.SectionVisibilityThreshold > 1 {
			return nil, fmt.Errorf("invalid SECTION_VISIBILITY_THRESHOLD %q: must be in (0, 1]", raw)
		}
	}
	if cfg.MediaStartDelay, err = durationEnv("MEDIA_START_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.TOCSettleDelay, err = durationEnv("TOC_SETTLE_DELAY", 700*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PendingLookupAttempts, err = intEnv("PENDING_LOOKUP_ATTEMPTS", 30); err != nil {
		return nil, err
	}
	if cfg.PendingLookupInterval, err = durationEnv("PENDING_LOOKUP_INTERVAL", 80*time.Millisecond); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
