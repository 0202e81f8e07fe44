package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "STORAGE_BACKEND", "TABLE_PREFIX", "LOG_LEVEL", "SHUTDOWN_TIMEOUT", "RATE_LIMIT_READ_RPS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, "dev_", cfg.TablePrefix)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.ReadRateLimit)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("STORAGE_BACKEND", StoragePostgres)
	t.Setenv("TABLE_PREFIX", "custom_")
	t.Setenv("RATE_LIMIT_WRITE_RPS", "2.5")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()

	assert.Equal(t, StoragePostgres, cfg.StorageBackend)
	assert.Equal(t, "custom_", cfg.TablePrefix)
	assert.Equal(t, 2.5, cfg.WriteRateLimit)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestGetTablePrefix(t *testing.T) {
	t.Setenv("TABLE_PREFIX", "")

	tests := map[string]string{
		"prod":    "prod_",
		"test":    "test_",
		"dev":     "dev_",
		"staging": "dev_",
	}
	for env, want := range tests {
		if got := getTablePrefix(env); got != want {
			t.Errorf("getTablePrefix(%q) = %q, want %q", env, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
