// Package config loads server settings from DUELSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// ErrInvalidConfig is returned when parsed settings are inconsistent
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every server setting
type Config struct {
	Host string `env:"DUELSYNC_HOST" envDefault:""`
	Port int    `env:"DUELSYNC_PORT" envDefault:"8080"`

	// TickRate is the number of simulation passes per second for a playing session
	TickRate int `env:"DUELSYNC_TICK_RATE" envDefault:"60"`
	// MaxSpeed caps client velocity, in position units per tick. Zero disables the cap.
	MaxSpeed float64 `env:"DUELSYNC_MAX_SPEED" envDefault:"0.5"`

	// SessionIdleTimeout evicts sessions with no open connection for this long. Zero never evicts.
	SessionIdleTimeout time.Duration `env:"DUELSYNC_SESSION_IDLE_TIMEOUT" envDefault:"0s"`
	SweepInterval      time.Duration `env:"DUELSYNC_SWEEP_INTERVAL"       envDefault:"1m"`

	LogLevel string `env:"DUELSYNC_LOG_LEVEL" envDefault:"info"`

	StorageType string        `env:"DUELSYNC_STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string        `env:"DUELSYNC_REDIS_URL"`
	RecordTTL   time.Duration `env:"DUELSYNC_RECORD_TTL"   envDefault:"24h"`

	// AllowedOrigins lists websocket Origin hosts accepted besides the server's own. "*" accepts any.
	AllowedOrigins []string `env:"DUELSYNC_ALLOWED_ORIGINS" envSeparator:","`
}

// Load parses and validates the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = trimCSV(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that env tags cannot express
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("%w: tick rate %d must be between 1 and 1000", ErrInvalidConfig, c.TickRate)
	}
	if c.MaxSpeed < 0 {
		return fmt.Errorf("%w: max speed must not be negative", ErrInvalidConfig)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("%w: session idle timeout must not be negative", ErrInvalidConfig)
	}
	if c.SessionIdleTimeout > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep interval required when idle timeout is set", ErrInvalidConfig)
	}
	switch c.StorageType {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: DUELSYNC_REDIS_URL required when DUELSYNC_STORAGE_TYPE=redis", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.StorageType)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converts LogLevel into a slog.Level
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}

// TickPeriod converts TickRate into the nominal time between passes
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// trimCSV drops blank entries from a comma-split list
func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
