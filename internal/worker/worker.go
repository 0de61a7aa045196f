package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/loop-engine/internal/services/events"
	"github.com/jwebster45206/loop-engine/internal/services/queue"
	"github.com/jwebster45206/loop-engine/pkg/engine"
	queuePkg "github.com/jwebster45206/loop-engine/pkg/queue"
	store "github.com/jwebster45206/loop-engine/pkg/storage"
)

const workerTimeout = 5 * time.Second

// ErrGameStateNotFound is reported when a request names a game that is not stored.
var ErrGameStateNotFound = errors.New("game state not found")

// Worker applies loop events from the shared queue to stored games.
// A boundary request advances the loop when the player found everything the
// loop requires; a reset request sends the player back to loop 1.
type Worker struct {
	id          string
	queue       *queue.LoopQueue
	engine      *engine.Engine
	storage     store.Storage
	broadcaster *events.Broadcaster
	client      *queue.Client
	pollTimeout time.Duration
	dedupeTTL   time.Duration
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(q *queue.LoopQueue, eng *engine.Engine, storage store.Storage, client *queue.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		engine:      eng,
		storage:     storage,
		broadcaster: events.NewBroadcaster(client.GetRedisClient(), log),
		client:      client,
		pollTimeout: workerTimeout,
		dedupeTTL:   queue.DefaultDedupeTTL,
		log:         log.With("worker_id", workerID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker id, also used as the lock owner.
func (w *Worker) ID() string {
	return w.id
}

// SetPollTimeout changes how long a dequeue blocks before the worker checks
// for shutdown.
func (w *Worker) SetPollTimeout(d time.Duration) {
	if d > 0 {
		w.pollTimeout = d
	}
}

// Start begins processing requests from the queue. It returns after Stop.
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	ctx, cancel := context.WithTimeout(w.ctx, w.pollTimeout+time.Second)
	defer cancel()

	req, err := w.queue.BlockingDequeueRequest(ctx, w.pollTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	log := w.log.With("request_id", req.RequestID, "type", req.Type, "game_state_id", req.GameStateID.String())
	log.Info("Received request from queue")

	if err := req.Validate(); err != nil {
		log.Warn("Dropping invalid request", "error", err)
		if req.GameStateID != uuid.Nil {
			w.publishFailure(req, err)
		}
		return nil
	}

	locked, err := w.client.LockGame(w.ctx, req.GameStateID, w.id)
	if err != nil {
		return err
	}
	if !locked {
		// Another worker or an API request is writing this gamestate
		log.Info("Game already locked, re-queueing request")
		if err := w.queue.EnqueueRequest(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}
	defer w.releaseGameLock(req.GameStateID)

	first, err := w.queue.MarkProcessed(w.ctx, req.RequestID, w.dedupeTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := w.processRequest(req); err != nil {
		w.publishFailure(req, err)
		if !errors.Is(err, ErrGameStateNotFound) {
			// Let the sequencer resend it.
			if uerr := w.queue.Unmark(w.ctx, req.RequestID); uerr != nil {
				log.Error("Failed to unmark request", "error", uerr)
			}
		}
		return err
	}
	return nil
}

// releaseGameLock releases the lock for a game, only if this worker owns it
func (w *Worker) releaseGameLock(gameStateID uuid.UUID) {
	// The worker context may already be canceled during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := w.client.UnlockGame(ctx, gameStateID, w.id); err != nil {
		w.log.Error("Failed to release game lock", "error", err, "game_state_id", gameStateID.String())
	}
}

// processRequest loads the game, applies the request and saves the result.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	start := time.Now()

	gs, err := w.storage.LoadGameState(w.ctx, req.GameStateID)
	if err != nil {
		return fmt.Errorf("failed to load game state: %w", err)
	}
	if gs == nil {
		return fmt.Errorf("%w: %s", ErrGameStateNotFound, req.GameStateID)
	}

	session, err := w.engine.Restore(gs)
	if err != nil {
		return err
	}

	var publish func() error
	switch req.Type {
	case queuePkg.RequestTypeLoopBoundary:
		res := session.RequestLoopAdvance()
		if res.Advanced {
			publish = func() error {
				return w.broadcaster.PublishLoopAdvanced(w.ctx, req.GameStateID, req.RequestID, res.From, res.To)
			}
		} else {
			publish = func() error {
				return w.broadcaster.PublishLoopRejected(w.ctx, req.GameStateID, req.RequestID, res.From, res.Missing)
			}
		}
	case queuePkg.RequestTypeLoopReset:
		from := session.Loop()
		session.ResetLoop()
		publish = func() error {
			return w.broadcaster.PublishLoopReset(w.ctx, req.GameStateID, req.RequestID, from)
		}
	}

	if err := w.storage.SaveGameState(w.ctx, req.GameStateID, session.State()); err != nil {
		return fmt.Errorf("failed to save game state: %w", err)
	}

	if err := publish(); err != nil {
		// State is already saved; events are best effort.
		w.log.Error("Failed to publish loop event", "error", err, "request_id", req.RequestID)
	}

	w.log.Info("Loop request processed",
		"request_id", req.RequestID,
		"type", req.Type,
		"loop", session.Loop(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) publishFailure(req *queuePkg.Request, cause error) {
	if err := w.broadcaster.PublishRequestFailed(w.ctx, req.GameStateID, req.RequestID, cause.Error()); err != nil {
		w.log.Error("Failed to publish failure event", "error", err)
	}
}
