package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/campuslib/borrowsvc/internal/api"
	"github.com/campuslib/borrowsvc/internal/app"
	"github.com/campuslib/borrowsvc/internal/config"
	"github.com/campuslib/borrowsvc/internal/gateway"
	"github.com/campuslib/borrowsvc/internal/processor"
	"github.com/campuslib/borrowsvc/internal/queue"
	"github.com/campuslib/borrowsvc/internal/store"
)

func main() {
	_ = godotenv.Load() // optional .env for development, real deployments set the environment

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("borrow service exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	poolConfig, err := cfg.PGXPoolConfig()
	if err != nil {
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}
	defer pool.Close()

	borrowStore, err := store.NewBorrowStoreFromPGXPool(pool, store.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := borrowStore.EnsureSchema(ctx); err != nil {
		return err
	}

	lookup, err := gateway.NewClient(
		cfg.StudentServiceURL,
		cfg.BookServiceURL,
		gateway.WithRequestTimeout(cfg.GatewayTimeout),
	)
	if err != nil {
		return err
	}

	borrowProcessor, err := processor.New(
		lookup,
		borrowStore,
		processor.WithBorrowLimit(cfg.BorrowLimit),
		processor.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	consumer, err := queue.NewConsumer(
		cfg.Broker.URL(),
		borrowProcessor,
		queue.WithQueueName(cfg.QueueName),
		queue.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	historyHandler, err := api.NewHandler(borrowStore, api.WithLogger(logger))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: historyHandler.Router(),
	}

	supervisor, err := app.NewSupervisor(server, consumer, app.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
