package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued EventType = "request.queued"
	EventTypeRequestFailed EventType = "request.failed"
	EventTypeLoopAdvanced  EventType = "loop.advanced"
	EventTypeLoopRejected  EventType = "loop.rejected"
	EventTypeLoopReset     EventType = "loop.reset"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	GameID    string         `json:"game_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel is the pub/sub channel for one game's events.
func Channel(gameID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", gameID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, gameID uuid.UUID, requestID string, requestType string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeRequestQueued,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"status": "queued",
			"type":   requestType,
		},
	})
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, gameID uuid.UUID, requestID string, errorMsg string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeRequestFailed,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"status": "failed",
			"error":  errorMsg,
		},
	})
}

// PublishLoopAdvanced publishes a loop.advanced event
func (b *Broadcaster) PublishLoopAdvanced(ctx context.Context, gameID uuid.UUID, requestID string, from, to int) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeLoopAdvanced,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"from": from,
			"to":   to,
		},
	})
}

// PublishLoopRejected publishes a loop.rejected event listing the flags the
// player still has to find before the loop can advance.
func (b *Broadcaster) PublishLoopRejected(ctx context.Context, gameID uuid.UUID, requestID string, loop int, missing []string) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeLoopRejected,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"loop":    loop,
			"missing": missing,
		},
	})
}

// PublishLoopReset publishes a loop.reset event
func (b *Broadcaster) PublishLoopReset(ctx context.Context, gameID uuid.UUID, requestID string, from int) error {
	return b.publishToGame(ctx, gameID, Event{
		Type:      EventTypeLoopReset,
		RequestID: requestID,
		GameID:    gameID.String(),
		Data: map[string]any{
			"from": from,
			"to":   1,
		},
	})
}

// publishToGame publishes an event to the game-specific channel
func (b *Broadcaster) publishToGame(ctx context.Context, gameID uuid.UUID, event Event) error {
	channel := Channel(gameID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}
