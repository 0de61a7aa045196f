package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "REDIS_URL", "MANIFEST_PATH", "GAMESTATE_TTL", "GAME_LOCK_TTL", "WORKER_ID", "WORKERS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "data/game.yaml", cfg.ManifestPath)
	assert.Equal(t, 24*time.Hour, cfg.GameStateTTL)
	assert.Equal(t, 30*time.Second, cfg.GameLockTTL)
	assert.Empty(t, cfg.WorkerID)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("MANIFEST_PATH", "/srv/game.yaml")
	t.Setenv("GAMESTATE_TTL", "90m")
	t.Setenv("GAME_LOCK_TTL", "10s")
	t.Setenv("WORKER_ID", "w1")
	t.Setenv("WORKERS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, "/srv/game.yaml", cfg.ManifestPath)
	assert.Equal(t, 90*time.Minute, cfg.GameStateTTL)
	assert.Equal(t, 10*time.Second, cfg.GameLockTTL)
	assert.Equal(t, "w1", cfg.WorkerID)
	assert.Zero(t, cfg.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad ttl", "GAMESTATE_TTL", "forever"},
		{"negative ttl", "GAMESTATE_TTL", "-1h"},
		{"bad lock ttl", "GAME_LOCK_TTL", "soon"},
		{"zero lock ttl", "GAME_LOCK_TTL", "0s"},
		{"bad workers", "WORKERS", "many"},
		{"negative workers", "WORKERS", "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}
