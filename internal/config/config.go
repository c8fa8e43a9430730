// Package config loads server settings from GRAPIO_* environment variables,
// after an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alfredjeanlab/grapio/internal/detect"
)

// Storage drivers selected by the database URL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrInvalidDatabaseURL is returned when GRAPIO_DATABASE_URL is missing or
// names no supported driver.
var ErrInvalidDatabaseURL = errors.New("database URL is invalid")

type Config struct {
	DatabaseURL string `env:"GRAPIO_DATABASE_URL"` // required
	GRPCAddr    string `env:"GRAPIO_GRPC_ADDR" envDefault:":9090"`
	HTTPAddr    string `env:"GRAPIO_HTTP_ADDR" envDefault:":8080"`
	NATSURL     string `env:"GRAPIO_NATS_URL"`                      // empty = no events
	AuthToken   string `env:"GRAPIO_AUTH_TOKEN"`                    // empty = auth disabled
	Locale      string `env:"GRAPIO_LOCALE" envDefault:"und"`       // number format for detection
	LogLevel    string `env:"GRAPIO_LOG_LEVEL" envDefault:"info"`   // debug|info|warn|error
	LogFormat   string `env:"GRAPIO_LOG_FORMAT" envDefault:"text"`  // text|json
	SeedFile    string `env:"GRAPIO_SEED_FILE"`                     // YAML flags applied at startup
	SeedWatch   bool   `env:"GRAPIO_SEED_WATCH" envDefault:"false"` // re-apply SeedFile on change

	ConsumerIdle time.Duration `env:"GRAPIO_CONSUMER_IDLE" envDefault:"15m"` // roster idle threshold

	Sync SyncConfig
}

// SyncConfig controls periodic snapshot export.
type SyncConfig struct {
	Interval   time.Duration `env:"GRAPIO_SYNC_INTERVAL" envDefault:"3m"` // 0 = disabled
	S3Bucket   string        `env:"GRAPIO_SYNC_S3_BUCKET"`                // enables S3 when set
	S3Endpoint string        `env:"GRAPIO_SYNC_S3_ENDPOINT"`              // custom endpoint for MinIO
	S3Region   string        `env:"GRAPIO_SYNC_S3_REGION" envDefault:"us-east-1"`
	S3Key      string        `env:"GRAPIO_SYNC_S3_KEY" envDefault:"grapio/flags.jsonl"`
	GitRepo    string        `env:"GRAPIO_SYNC_GIT_REPO"` // enables git when set; path to clone
	GitFile    string        `env:"GRAPIO_SYNC_GIT_FILE" envDefault:"flags.jsonl"`
	GitBranch  string        `env:"GRAPIO_SYNC_GIT_BRANCH" envDefault:"main"`
}

// Enabled reports whether any snapshot destination is configured.
func (s SyncConfig) Enabled() bool {
	return s.Interval > 0 && (s.S3Bucket != "" || s.GitRepo != "")
}

// Load reads .env (when present) and the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the database URL, locale and logging settings.
func (c *Config) Validate() error {
	if _, err := c.Driver(); err != nil {
		return err
	}
	if _, err := c.DetectorLocale(); err != nil {
		return fmt.Errorf("GRAPIO_LOCALE: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("GRAPIO_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("GRAPIO_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if c.ConsumerIdle <= 0 {
		return fmt.Errorf("GRAPIO_CONSUMER_IDLE: must be positive")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("GRAPIO_SYNC_INTERVAL: must not be negative")
	}
	return nil
}

// Driver returns the storage driver named by the database URL scheme:
// postgres:// and postgresql:// select Postgres, sqlite:// and file: SQLite.
func (c *Config) Driver() (string, error) {
	raw := strings.TrimSpace(c.DatabaseURL)
	if raw == "" {
		return "", ErrInvalidDatabaseURL
	}
	if strings.HasPrefix(raw, "file:") {
		return DriverSQLite, nil
	}
	if rest, ok := strings.CutPrefix(raw, "sqlite://"); ok {
		if rest == "" {
			return "", ErrInvalidDatabaseURL
		}
		return DriverSQLite, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidDatabaseURL
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		if u.Host == "" && u.Query().Get("host") == "" {
			return "", ErrInvalidDatabaseURL
		}
		return DriverPostgres, nil
	default:
		return "", ErrInvalidDatabaseURL
	}
}

// DetectorLocale parses Locale.
func (c *Config) DetectorLocale() (detect.Locale, error) {
	return detect.ParseLocale(c.Locale)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// NewLogger builds the server logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.Level()
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
