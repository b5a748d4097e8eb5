package infra

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"gaminglibrary.db"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"gaminglibrary"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"gaminglibrary"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"gaminglibrary"`

	// Redis
	RedisURL           string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	LeaderboardEnabled bool   `env:"LEADERBOARD_ENABLED" envDefault:"false"`
	LiveRelayEnabled   bool   `env:"LIVE_RELAY_ENABLED" envDefault:"false"`

	// JWT
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAdminExpiry time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort            int    `env:"API_PORT" envDefault:"8080"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Tracing
	OTelEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`

	// Background work
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	DispatchInProcess  bool          `env:"DISPATCH_IN_PROCESS" envDefault:"true"`
	ReaperInterval     time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// Guards
	SessionStartRate  float64       `env:"SESSION_START_RATE" envDefault:"1"`
	SessionStartBurst int           `env:"SESSION_START_BURST" envDefault:"5"`
	IdempotencyTTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

// Validate rejects unusable settings and insecure configuration that must not
// run in production. Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret
// checks (local dev only).
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of postgres, sqlite, memory", c.StoreDriver)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize)
	}
	if c.OutboxPollInterval <= 0 || c.ReaperInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL and REAPER_INTERVAL must be positive")
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
