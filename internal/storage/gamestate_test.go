package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/loop-engine/pkg/state"
)

func setupTestRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	rs, err := NewRedisStorage("redis://"+mr.Addr(), 10*time.Minute, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	return rs, mr
}

func TestRedisStorage_SaveAndLoadGameState(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	gs := state.NewGameState("Mara")
	gs.Loop = 2
	gs.Flags = []string{"met_conductor", "has_ticket"}
	gs.FoundThisLoop = []string{"has_ticket"}
	gs.MarkConsumed("station", "0:0")

	require.NoError(t, rs.SaveGameState(ctx, gs.ID, gs))
	assert.True(t, mr.Exists("gamestate:"+gs.ID.String()))
	assert.Equal(t, 10*time.Minute, mr.TTL("gamestate:"+gs.ID.String()))

	loaded, err := rs.LoadGameState(ctx, gs.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, gs.ID, loaded.ID)
	assert.Equal(t, "Mara", loaded.PlayerName)
	assert.Equal(t, 2, loaded.Loop)
	assert.Equal(t, gs.Flags, loaded.Flags)
	assert.Equal(t, gs.FoundThisLoop, loaded.FoundThisLoop)
	assert.True(t, loaded.IsConsumed("station", "0:0"))
}

func TestRedisStorage_LoadNonExistentGameState(t *testing.T) {
	rs, _ := setupTestRedis(t)

	loaded, err := rs.LoadGameState(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_DeleteGameState(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	gs := state.NewGameState("")
	require.NoError(t, rs.SaveGameState(ctx, gs.ID, gs))
	require.NoError(t, rs.DeleteGameState(ctx, gs.ID))
	assert.False(t, mr.Exists("gamestate:"+gs.ID.String()))

	loaded, err := rs.LoadGameState(ctx, gs.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_GameStateExpires(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	gs := state.NewGameState("")
	require.NoError(t, rs.SaveGameState(ctx, gs.ID, gs))

	mr.FastForward(11 * time.Minute)

	loaded, err := rs.LoadGameState(ctx, gs.ID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_CorruptGameState(t *testing.T) {
	rs, mr := setupTestRedis(t)
	id := uuid.New()
	require.NoError(t, mr.Set("gamestate:"+id.String(), "{not json"))

	_, err := rs.LoadGameState(context.Background(), id)
	assert.Error(t, err)
}

func TestRedisStorage_SaveNil(t *testing.T) {
	rs, _ := setupTestRedis(t)
	assert.Error(t, rs.SaveGameState(context.Background(), uuid.New(), nil))
}

func TestRedisStorage_Ping(t *testing.T) {
	rs, mr := setupTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, rs.Ping(ctx))
	assert.NoError(t, rs.WaitForConnection(ctx, 3, time.Millisecond))

	mr.Close()
	assert.Error(t, rs.Ping(ctx))

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rs.WaitForConnection(ctx, 2, time.Millisecond))
}

func TestNewRedisStorage_Addr(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	rs, err := NewRedisStorage(mr.Addr(), 0, logger)
	require.NoError(t, err)
	defer rs.Close()

	assert.Equal(t, DefaultGameStateTTL, rs.ttl)
	assert.NoError(t, rs.Ping(context.Background()))

	_, err = NewRedisStorage("http://localhost:6379", 0, logger)
	assert.Error(t, err)
}
