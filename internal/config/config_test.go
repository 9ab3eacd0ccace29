package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/lifeon.db", cfg.DBPath)
	assert.Equal(t, 16, cfg.Radius)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.Seed)
	assert.Zero(t, cfg.AutoTurn)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.SaveEvery)
	assert.Empty(t, cfg.AdminKey)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LIFEON_DB_PATH", "/tmp/town.db")
	t.Setenv("LIFEON_SEED", "42")
	t.Setenv("LIFEON_RADIUS", "8")
	t.Setenv("LIFEON_TURN_COOLDOWN", "1s")
	t.Setenv("LIFEON_AUTO_TURN", "250ms")
	t.Setenv("LIFEON_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/town.db", cfg.DBPath)
	assert.Equal(t, time.Second, cfg.TurnConfig().Cooldown)
	assert.Equal(t, 250*time.Millisecond, cfg.AutoTurn)

	gen := cfg.GenConfig()
	assert.Equal(t, 8, gen.Radius)
	assert.Equal(t, int64(42), gen.Seed)

	lvl, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadRejects(t *testing.T) {
	t.Run("bad int", func(t *testing.T) {
		t.Setenv("LIFEON_RADIUS", "wide")
		_, err := Load()
		assert.ErrorContains(t, err, "parse env:")
	})
	t.Run("zero radius", func(t *testing.T) {
		t.Setenv("LIFEON_RADIUS", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "LIFEON_RADIUS")
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("LIFEON_LOG_LEVEL", "loud")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown log level")
	})
}
