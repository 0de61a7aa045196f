package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/loop-engine/internal/config"
	"github.com/jwebster45206/loop-engine/internal/logger"
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

	log.Info("Starting Loop Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"manifest", cfg.ManifestPath)

	eng, _, err := engine.Load(cfg.ManifestPath, log)
	if err != nil {
		log.Error("Failed to load dialogue corpus", "error", err)
		os.Exit(1)
	}

	queueClient, err := queue.NewClient(cfg.RedisURL, log, queue.WithLockTTL(cfg.GameLockTTL))
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	loopQueue := queue.NewLoopQueue(queueClient, log)
	log.Info("Queue service initialized successfully")

	storageService, err := storage.NewRedisStorage(cfg.RedisURL, cfg.GameStateTTL, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer storageService.Close()

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := storageService.WaitForConnection(storageCtx, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	w := worker.New(loopQueue, eng, storageService, queueClient, log, cfg.WorkerID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started, waiting for requests...")

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Let the current request finish
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("Worker did not stop in time")
	}

	log.Info("Worker exited")
}
