package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/loop-engine/internal/services/queue"
)

func newLockedTestServer(t *testing.T) (*testServer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := queue.NewClient("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer()
	s.handler.WithLocker(client)
	return s, mr
}

func TestGameStateHandler_UpdateRejectedWhileLocked(t *testing.T) {
	s, mr := newLockedTestServer(t)
	id := s.create(t)
	require.NoError(t, mr.Set(queue.LockKey(id), "worker-1"))

	rr := s.do(t, http.MethodPost, "/v1/gamestate/"+id.String()+"/choices/station", `{"slot":0}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	gs, err := s.storage.LoadGameState(context.Background(), id)
	require.NoError(t, err)
	assert.NotContains(t, gs.Flags, "has_ticket")
	assert.False(t, gs.IsConsumed("station", "0:0"))

	holder, err := mr.Get(queue.LockKey(id))
	require.NoError(t, err)
	assert.Equal(t, "worker-1", holder, "a foreign lock is left alone")
}

func TestGameStateHandler_UpdateWaitsForLock(t *testing.T) {
	s, mr := newLockedTestServer(t)
	id := s.create(t)
	require.NoError(t, mr.Set(queue.LockKey(id), "worker-1"))

	go func() {
		time.Sleep(2 * lockBackoff)
		mr.Del(queue.LockKey(id))
	}()

	rr := s.do(t, http.MethodPost, "/v1/gamestate/"+id.String()+"/choices/station", `{"slot":0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	gs, err := s.storage.LoadGameState(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, gs.Flags, "has_ticket")
	assert.False(t, mr.Exists(queue.LockKey(id)), "lock released after save")
}

func TestGameStateHandler_ReadsIgnoreLock(t *testing.T) {
	s, mr := newLockedTestServer(t)
	id := s.create(t)
	require.NoError(t, mr.Set(queue.LockKey(id), "worker-1"))

	rr := s.do(t, http.MethodGet, "/v1/gamestate/"+id.String()+"/choices/station", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
