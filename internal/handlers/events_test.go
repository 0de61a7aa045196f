package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/loop-engine/internal/services/events"
)

// readEvent returns the next "event:" name and its data line, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			if name == "" {
				return "keepalive", ""
			}
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsHandler_StreamsLoopEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := NewEventsHandler(rdb, testLogger())
	h.keepalive = 50 * time.Millisecond
	srv := httptest.NewServer(h)
	defer srv.Close()

	gameID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/gamestate/"+gameID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body := bufio.NewReader(resp.Body)

	name, data := readEvent(t, body)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, gameID.String())

	channel := events.Channel(gameID)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	b := events.NewBroadcaster(rdb, testLogger())
	require.NoError(t, b.PublishLoopAdvanced(ctx, gameID, "req-1", 1, 2))

	for {
		name, data = readEvent(t, body)
		if name != "keepalive" {
			break
		}
	}
	assert.Equal(t, string(events.EventTypeLoopAdvanced), name)
	assert.Contains(t, data, `"request_id":"req-1"`)
	assert.Contains(t, data, `"to":2`)

	name, _ = readEvent(t, body)
	assert.Equal(t, "keepalive", name)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	h := NewEventsHandler(nil, testLogger())

	tests := []struct {
		name, method, path string
		expectedStatus     int
	}{
		{"post", http.MethodPost, "/v1/events/gamestate/" + uuid.NewString(), http.StatusMethodNotAllowed},
		{"bad path", http.MethodGet, "/v1/events/other/" + uuid.NewString(), http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/events/gamestate/nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}
