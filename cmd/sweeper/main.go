/*
main.go - Background cascade sweeper

PURPOSE:
  Consumes wallet-cascade jobs from the AMQP queue and replays unfinished
  cascades left behind by a crash. Runs alongside the HTTP server against
  the same database.

SEE ALSO:
  - worker/worker.go: job handling and the resume loop
  - ledger/cascade.go: the cascade itself
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pocketbook/ledger-engine/config"
	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/queue"
	"github.com/pocketbook/ledger-engine/store/sqlite"
	"github.com/pocketbook/ledger-engine/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting cascade sweeper")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sweeper")
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	queueClient, err := queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer queueClient.Close()

	deleter := ledger.NewCascadeDeleter(store)
	deleter.BatchSize = cfg.CascadeBatchSize

	w := worker.NewCascadeWorker(deleter)
	w.ResumeInterval = cfg.CascadeResumeInterval

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queueClient.Consume(ctx, w.HandleCascadeMessage)
	})
	g.Go(func() error {
		return w.RunResumeLoop(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweeper exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("sweeper stopped")
}
