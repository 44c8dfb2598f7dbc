package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/internal/app"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/middleware"
)

const requestTimeout = 10 * time.Second

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

	r := gin.New()
	r.Use(gin.Recovery(), middleware.ErrorHandler(), middleware.TimeoutMiddleware(requestTimeout))
	job.NewJobHandler(a.Service).Register(r)

	srv := &http.Server{Addr: rt.HTTPAddr, Handler: r}

	go func() {
		logger.Info("api listening", slog.String("addr", rt.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
	logger.Info("shutdown complete")
}
