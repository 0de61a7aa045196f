package logger

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/loop-engine/internal/config"
)

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dev := Setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn})
	_, isText := dev.Handler().(*slog.TextHandler)
	assert.True(t, isText)
	assert.False(t, dev.Enabled(t.Context(), slog.LevelInfo))
	assert.Same(t, dev, slog.Default())

	prod := Setup(&config.Config{Environment: "production", LogLevel: slog.LevelDebug})
	_, isJSON := prod.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
	assert.True(t, prod.Enabled(t.Context(), slog.LevelDebug))
}

func TestWithHelpers(t *testing.T) {
	base := slog.New(slog.DiscardHandler)
	assert.NotNil(t, WithGameStateID(base, "abc"))
	assert.NotNil(t, WithError(base, errors.New("boom")))
}
