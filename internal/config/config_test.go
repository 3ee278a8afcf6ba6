package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 60, cfg.TickRate)
	assert.Equal(t, 0.5, cfg.MaxSpeed)
	assert.Equal(t, time.Duration(0), cfg.SessionIdleTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, StorageTypeMemory, cfg.StorageType)
	assert.Equal(t, 24*time.Hour, cfg.RecordTTL)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, time.Second/60, cfg.TickPeriod())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DUELSYNC_PORT", "9090")
	t.Setenv("DUELSYNC_TICK_RATE", "30")
	t.Setenv("DUELSYNC_SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("DUELSYNC_LOG_LEVEL", "debug")
	t.Setenv("DUELSYNC_STORAGE_TYPE", "redis")
	t.Setenv("DUELSYNC_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("DUELSYNC_ALLOWED_ORIGINS", "example.com, ,game.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, 10*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, StorageTypeRedis, cfg.StorageType)
	assert.Equal(t, []string{"example.com", "game.example.com"}, cfg.AllowedOrigins)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("DUELSYNC_PORT", "not-an-int")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"), err.Error())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:          8080,
			TickRate:      60,
			SweepInterval: time.Minute,
			LogLevel:      "info",
			StorageType:   StorageTypeMemory,
		}
	}

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"zero tick rate", func(c *Config) { c.TickRate = 0 }},
		{"negative max speed", func(c *Config) { c.MaxSpeed = -1 }},
		{"idle timeout without sweep", func(c *Config) { c.SessionIdleTimeout = time.Minute; c.SweepInterval = 0 }},
		{"redis without url", func(c *Config) { c.StorageType = StorageTypeRedis }},
		{"unknown storage", func(c *Config) { c.StorageType = "postgres" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
