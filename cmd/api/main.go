package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/loop-engine/internal/config"
	"github.com/jwebster45206/loop-engine/internal/handlers"
	"github.com/jwebster45206/loop-engine/internal/logger"
	"github.com/jwebster45206/loop-engine/internal/middleware"
	"github.com/jwebster45206/loop-engine/internal/services/events"
	"github.com/jwebster45206/loop-engine/internal/services/queue"
	"github.com/jwebster45206/loop-engine/internal/storage"
	"github.com/jwebster45206/loop-engine/internal/worker"
	"github.com/jwebster45206/loop-engine/pkg/engine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Loop Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"manifest", cfg.ManifestPath,
		"workers", cfg.Workers)

	eng, report, err := engine.Load(cfg.ManifestPath, log)
	if err != nil {
		log.Error("Failed to load dialogue corpus", "error", err)
		os.Exit(1)
	}
	if n := report.Problems(); n > 0 {
		log.Warn("Corpus loaded with problems, run cmd/validate for details", "count", n)
	}

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.GameStateTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	queueClient, err := queue.NewClient(cfg.RedisURL, log, queue.WithLockTTL(cfg.GameLockTTL))
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	loopQueue := queue.NewLoopQueue(queueClient, log)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, log))

	gameStateHandler := handlers.NewGameStateHandler(eng, store, log).
		WithQueue(loopQueue, broadcaster).
		WithLocker(queueClient)
	mux.Handle("/v1/gamestate", gameStateHandler)
	mux.Handle("/v1/gamestate/", gameStateHandler)
	mux.Handle("/v1/loops/", handlers.NewLoopsHandler(eng, log))
	mux.Handle("/v1/events/gamestate/", handlers.NewEventsHandler(queueClient.GetRedisClient(), log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream stays open
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	for i := range cfg.Workers {
		id := cfg.WorkerID
		if id != "" {
			id = fmt.Sprintf("%s-%d", id, i)
		}
		w := worker.New(loopQueue, eng, store, queueClient, log, id)
		g.Go(w.Start)
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("API exited with error", "error", err)
	}

	if err := queueClient.Close(); err != nil {
		log.Error("Error closing queue client", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
