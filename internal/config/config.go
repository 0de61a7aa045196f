package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         string
	Environment  string
	LogLevel     slog.Level
	RedisURL     string
	ManifestPath string
	GameStateTTL time.Duration
	GameLockTTL  time.Duration
	WorkerID     string
	// Workers is how many loop workers the API process runs in-process.
	// Zero leaves loop events to a separate cmd/worker process.
	Workers int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		ManifestPath: getEnv("MANIFEST_PATH", "data/game.yaml"),
		WorkerID:     os.Getenv("WORKER_ID"),
	}

	ttl, err := time.ParseDuration(getEnv("GAMESTATE_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid GAMESTATE_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("GAMESTATE_TTL must be positive, got %s", ttl)
	}
	cfg.GameStateTTL = ttl

	lockTTL, err := time.ParseDuration(getEnv("GAME_LOCK_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GAME_LOCK_TTL: %w", err)
	}
	if lockTTL <= 0 {
		return nil, fmt.Errorf("GAME_LOCK_TTL must be positive, got %s", lockTTL)
	}
	cfg.GameLockTTL = lockTTL

	workers, err := strconv.Atoi(getEnv("WORKERS", "1"))
	if err != nil || workers < 0 {
		return nil, fmt.Errorf("invalid WORKERS %q", os.Getenv("WORKERS"))
	}
	cfg.Workers = workers

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
