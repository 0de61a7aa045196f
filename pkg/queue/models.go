package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeLoopBoundary is the scene sequencer reporting that a loop ended
	RequestTypeLoopBoundary RequestType = "loop_boundary"

	// RequestTypeLoopReset sends the player back to loop 1
	RequestTypeLoopReset RequestType = "loop_reset"
)

// Request is one loop event waiting for a worker.
// RequestID doubles as the dedupe key: a request is applied at most once.
type Request struct {
	RequestID   string      `json:"request_id"`
	Type        RequestType `json:"type"`
	GameStateID uuid.UUID   `json:"game_state_id"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
}

// NewRequest creates a request with a fresh id.
func NewRequest(t RequestType, gameStateID uuid.UUID) *Request {
	return &Request{
		RequestID:   uuid.New().String(),
		Type:        t,
		GameStateID: gameStateID,
		EnqueuedAt:  time.Now(),
	}
}

// Validate rejects requests a worker could not act on.
func (r *Request) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request has no id")
	}
	if r.GameStateID == uuid.Nil {
		return fmt.Errorf("request %s has no game state id", r.RequestID)
	}
	switch r.Type {
	case RequestTypeLoopBoundary, RequestTypeLoopReset:
		return nil
	default:
		return fmt.Errorf("request %s has unknown type %q", r.RequestID, r.Type)
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
