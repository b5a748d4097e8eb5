package infra

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, time.Minute, cfg.ReaperInterval)
	assert.Equal(t, 8*time.Hour, cfg.JWTAdminExpiry)
	assert.True(t, cfg.DispatchInProcess)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", " SQLite ")
	t.Setenv("SQLITE_PATH", "/tmp/games.db")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")
	t.Setenv("SESSION_START_RATE", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://games.example.com,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/games.db", cfg.SQLitePath)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 0.5, cfg.SessionStartRate)
	assert.Equal(t, []string{"http://localhost:3000", "https://games.example.com"}, cfg.AllowedOrigins())
}

func validConfig() *Config {
	return &Config{
		StoreDriver:        DriverMemory,
		JWTSecret:          strings.Repeat("s", 32),
		OutboxBatchSize:    100,
		OutboxPollInterval: time.Second,
		ReaperInterval:     time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"sqlite without path", func(c *Config) { c.StoreDriver = DriverSQLite }, "SQLITE_PATH"},
		{"default secret", func(c *Config) { c.JWTSecret = insecureJWTSecret }, "insecure default"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"insecure allowed", func(c *Config) { c.JWTSecret = "short"; c.AllowInsecureDefaults = true }, ""},
		{"zero batch", func(c *Config) { c.OutboxBatchSize = 0 }, "OUTBOX_BATCH_SIZE"},
		{"insecure does not skip driver check", func(c *Config) { c.AllowInsecureDefaults = true; c.StoreDriver = "" }, "STORE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{PGUser: "u", PGPassword: "p", PGHost: "db", PGPort: 5432, PGDatabase: "games"}
	assert.Equal(t, "postgres://u:p@db:5432/games?sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.DSN())
}

func TestConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "verbose"}).SlogLevel())
}
