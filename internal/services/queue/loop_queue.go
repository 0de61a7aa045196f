package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/loop-engine/pkg/queue"
)

const requestsKey = "loop-requests"

// DefaultDedupeTTL is how long a processed request id is remembered.
const DefaultDedupeTTL = 24 * time.Hour

// LoopQueue is the global queue of loop events shared by all workers
type LoopQueue struct {
	client *Client
	logger *slog.Logger
}

func NewLoopQueue(client *Client, logger *slog.Logger) *LoopQueue {
	return &LoopQueue{
		client: client,
		logger: logger,
	}
}

func processedKey(requestID string) string {
	return fmt.Sprintf("loop-request-done:%s", requestID)
}

// EnqueueRequest adds a request to the end of the queue
func (q *LoopQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		q.logger.Error("Failed to enqueue loop request",
			"error", err,
			"request_id", req.RequestID,
			"game_state_id", req.GameStateID.String())
		return fmt.Errorf("failed to enqueue request: %w", err)
	}

	q.logger.Debug("Enqueued loop request",
		"request_id", req.RequestID,
		"type", req.Type,
		"game_state_id", req.GameStateID.String())
	return nil
}

// DequeueRequest removes and returns the next request.
// Returns nil if queue is empty
func (q *LoopQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parseRequest(result)
}

// BlockingDequeueRequest waits up to timeout for a request.
// Returns nil, nil when the timeout passes with nothing queued.
func (q *LoopQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parseRequest(result[1])
}

func parseRequest(raw string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// RequestQueueDepth returns the number of requests waiting
func (q *LoopQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

// MarkProcessed records a request id and reports whether this is the first
// time it was seen. A boundary that fires twice is applied once.
func (q *LoopQueue) MarkProcessed(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	first, err := q.client.rdb.SetNX(ctx, processedKey(requestID), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark request processed: %w", err)
	}
	if !first {
		q.logger.Info("Duplicate loop request ignored", "request_id", requestID)
	}
	return first, nil
}

// Unmark forgets a request id so it can be retried after a failure.
func (q *LoopQueue) Unmark(ctx context.Context, requestID string) error {
	if err := q.client.rdb.Del(ctx, processedKey(requestID)).Err(); err != nil {
		return fmt.Errorf("failed to unmark request: %w", err)
	}
	return nil
}
