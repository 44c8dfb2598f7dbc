package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshu-sajeev/queuectl/internal/app"
	"github.com/joshu-sajeev/queuectl/internal/config"
)

func main() {
	ctx := context.Background()

	rt, err := config.LoadRuntimeFromEnv(ctx)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stderr, rt)
	slog.SetDefault(logger)

	a, err := app.Open(ctx, rt, nil, logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	workerPool := a.NewPool(rt.WorkerCount)
	workerPool.Start()
	logger.Info("worker pool active, press Ctrl+C to stop", slog.Any("workers", workerPool.Workers()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	workerPool.Stop()
	logger.Info("shutdown complete")
}
