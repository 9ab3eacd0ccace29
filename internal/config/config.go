// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/talgya/lifeon/internal/turn"
	"github.com/talgya/lifeon/internal/world"
)

// Config holds everything the command line needs to run a settlement.
type Config struct {
	DBPath       string        `env:"LIFEON_DB_PATH" envDefault:"data/lifeon.db"`
	CatalogPath  string        `env:"LIFEON_CATALOG"` // empty uses the built-in catalog
	Seed         int64         `env:"LIFEON_SEED"`    // 0 picks a random seed
	Radius       int           `env:"LIFEON_RADIUS" envDefault:"16"`
	LogLevel     string        `env:"LIFEON_LOG_LEVEL" envDefault:"info"`
	TurnCooldown time.Duration `env:"LIFEON_TURN_COOLDOWN"`
	AutoTurn     time.Duration `env:"LIFEON_AUTO_TURN"`

	Port      int           `env:"LIFEON_PORT" envDefault:"8080"`
	AdminKey  string        `env:"LIFEON_ADMIN_KEY"` // empty disables POST endpoints
	SaveEvery time.Duration `env:"LIFEON_SAVE_EVERY" envDefault:"5m"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config from the environment and checks it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Radius < 1 {
		return Config{}, fmt.Errorf("LIFEON_RADIUS must be positive, got %d", cfg.Radius)
	}
	if cfg.TurnCooldown < 0 || cfg.AutoTurn < 0 || cfg.SaveEvery < 0 {
		return Config{}, fmt.Errorf("durations must not be negative")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// GenConfig returns the map generation settings for this configuration.
func (c Config) GenConfig() world.GenConfig {
	gen := world.DefaultGenConfig()
	gen.Radius = c.Radius
	gen.Seed = c.Seed
	return gen
}

// TurnConfig returns the turn system settings for this configuration.
func (c Config) TurnConfig() turn.Config {
	return turn.Config{Cooldown: c.TurnCooldown}
}
