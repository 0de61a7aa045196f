package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/jwebster45206/loop-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/loop-engine/pkg/queue"
)

// test-enqueue pushes loop events straight onto the queue, the way the
// scene sequencer would, for exercising a running worker by hand.
func main() {
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis URL")
	gameID := flag.String("game", "", "game state id (required)")
	reset := flag.Bool("reset", false, "send a loop reset instead of a boundary")
	requestID := flag.String("id", "", "request id; reuse one to test duplicate delivery")
	times := flag.Int("n", 1, "how many times to send the request")
	flag.Parse()

	id, err := uuid.Parse(*gameID)
	if err != nil {
		log.Fatalf("invalid -game %q: %v", *gameID, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client, err := queue.NewClient(*redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer client.Close()

	q := queue.NewLoopQueue(client, logger)
	ctx := context.Background()

	t := queuePkg.RequestTypeLoopBoundary
	if *reset {
		t = queuePkg.RequestTypeLoopReset
	}
	req := queuePkg.NewRequest(t, id)
	if *requestID != "" {
		req.RequestID = *requestID
	}

	for range *times {
		if err := q.EnqueueRequest(ctx, req); err != nil {
			log.Fatal("Failed to enqueue request: ", err)
		}
		fmt.Printf("Enqueued %s request %s for %s\n", req.Type, req.RequestID, id)
	}

	depth, err := q.RequestQueueDepth(ctx)
	if err != nil {
		log.Fatal("Failed to read queue depth: ", err)
	}
	fmt.Printf("Queue depth: %d\n", depth)
}
