/*
main.go - Ledger engine HTTP server

STARTUP SEQUENCE:
  1. Load .env and environment configuration
  2. Open and migrate the SQLite store
  3. Connect optional collaborators (media host, AMQP cascade queue)
  4. Wire the engine and HTTP router
  5. Serve with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the queue and database connections

EXAMPLES:
  # Run with file database
  ./server -db=./data/ledger.db

  # Run with in-memory database
  ./server -db=:memory:

SEE ALSO:
  - api/server.go: Router configuration
  - cmd/sweeper/main.go: Background cascade worker
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pocketbook/ledger-engine/api"
	"github.com/pocketbook/ledger-engine/config"
	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/media"
	"github.com/pocketbook/ledger-engine/queue"
	"github.com/pocketbook/ledger-engine/store/sqlite"
)

func main() {
	// .env is for local development; absent in production.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	// Flags override the environment for local runs.
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.SQLiteDBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.SQLiteDBPath = *dbPath

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var uploader ledger.Uploader
	if cfg.MediaUploadURL != "" {
		uploader = media.NewHTTPUploader(cfg.MediaUploadURL)
		logger.Info("media uploads enabled", "url", cfg.MediaUploadURL)
	} else {
		logger.Info("media uploads disabled - no MEDIA_UPLOAD_URL provided")
	}

	deleter := ledger.NewCascadeDeleter(store)
	deleter.BatchSize = cfg.CascadeBatchSize

	var queueClient *queue.Client
	if cfg.AMQPURL != "" {
		queueClient, err = queue.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer queueClient.Close()
		deleter.Publisher = queueClient
		logger.Info("cascade queue enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("cascade queue disabled - cascades run inline")
	}

	handler := api.NewHandler(
		ledger.NewWalletService(store, uploader, deleter),
		ledger.NewTransactionMutator(store, uploader),
		ledger.NewStatsAggregator(store),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		logger.Info("ledger engine listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
