// Package app wires the store, repositories and services shared by the
// queuectl binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joshu-sajeev/queuectl/internal/backoff"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/pool"
	"github.com/joshu-sajeev/queuectl/internal/storage"
	"github.com/joshu-sajeev/queuectl/internal/worker"
	"gorm.io/gorm"
)

type App struct {
	Runtime  *config.Runtime
	Logger   *slog.Logger
	DB       *gorm.DB
	Jobs     *storage.JobRepository
	Settings *storage.SettingsRepository
	Service  *job.JobService
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(w io.Writer, rt *config.Runtime) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseSlogLevel(rt.LogLevel)}
	if strings.EqualFold(rt.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Open connects to the job store, applies migrations and builds the
// repositories and the job service. A nil dbCfg is loaded from the environment.
func Open(ctx context.Context, rt *config.Runtime, dbCfg *storage.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := storage.Migrate(ctx, db); err != nil {
		closeDB(db)
		return nil, err
	}

	jobs := storage.NewJobRepository(db)
	settings := storage.NewSettingsRepository(db)

	return &App{
		Runtime:  rt,
		Logger:   logger,
		DB:       db,
		Jobs:     jobs,
		Settings: settings,
		Service:  job.NewJobService(jobs, settings),
	}, nil
}

// NewPool builds a worker pool of count workers running shell commands.
func (a *App) NewPool(count int) *pool.WorkerPool {
	policy, err := backoff.New(a.Runtime.BackoffStrategy, a.Runtime.MaxBackoff)
	if err != nil {
		a.Logger.Warn("falling back to exponential backoff", slog.Any("error", err))
		policy = backoff.NewExponential(a.Runtime.MaxBackoff)
	}

	return pool.NewWorkerPool(a.Jobs, worker.NewShellExecutor(a.Runtime.ExecTimeout), a.Settings, pool.Config{
		Count:           count,
		PollInterval:    a.Runtime.PollInterval,
		MaxPollInterval: a.Runtime.MaxPollInterval,
		LeaseTimeout:    a.Runtime.LeaseTimeout,
		ReapInterval:    a.Runtime.ReapInterval,
		Policy:          policy,
		Logger:          a.Logger,
	})
}

func (a *App) Close() error {
	return closeDB(a.DB)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
