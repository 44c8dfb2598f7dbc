package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/backoff"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

const (
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultMaxPollInterval = time.Second
)

// JobStore is the part of the job repository a worker needs.
type JobStore interface {
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error)
	ApplyOutcome(ctx context.Context, id string, out models.Outcome) error
}

type SettingsSource interface {
	Settings(ctx context.Context) (config.Settings, error)
}

type Worker struct {
	ID string

	store    JobStore
	executor Executor
	settings SettingsSource
	policy   backoff.Policy

	pollInterval    time.Duration
	maxPollInterval time.Duration
	now             func() time.Time
	logger          *slog.Logger

	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

type Option func(*Worker)

func WithPolicy(p backoff.Policy) Option {
	return func(w *Worker) { w.policy = p }
}

// WithPollInterval sets the idle wait after an empty claim and the ceiling it
// doubles up to while the queue stays empty.
func WithPollInterval(interval, ceiling time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
		w.maxPollInterval = max(ceiling, interval)
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

func NewWorker(id string, store JobStore, exec Executor, settings SettingsSource, opts ...Option) *Worker {
	w := &Worker{
		ID:              id,
		store:           store,
		executor:        exec,
		settings:        settings,
		policy:          backoff.Default(),
		pollInterval:    DefaultPollInterval,
		maxPollInterval: DefaultMaxPollInterval,
		now:             models.Now,
		logger:          slog.Default(),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(slog.String("worker_id", w.ID))
	return w
}

// Start runs the claim loop in its own goroutine until Stop is called or ctx
// is done. A job that was claimed before shutdown is run to completion and its
// outcome is recorded before the loop exits.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(w.done)
		w.logger.Info("worker started")
		defer w.logger.Info("worker stopped")

		currentDelay := w.pollInterval

		for {
			if w.stopping(ctx) {
				return
			}

			processed, err := w.RunOnce(ctx)
			if err != nil && ctx.Err() == nil {
				w.logger.Error("claim failed", slog.Any("error", err))
			}

			if processed {
				currentDelay = w.pollInterval
				continue
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
			currentDelay = min(currentDelay*2, w.maxPollInterval)
		}
	}()
}

// Stop asks the loop to exit and waits for the in-flight job, if any.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	if w.started.Load() {
		<-w.done
	}
}

// Done is closed once the loop started by Start has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-w.quit:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// RunOnce claims at most one job, runs it and records the outcome. It reports
// whether a job was processed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	j, err := w.store.ClaimNext(ctx, w.ID, w.now())
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if j == nil {
		return false, nil
	}

	w.process(context.WithoutCancel(ctx), j)
	return true, nil
}

func (w *Worker) process(ctx context.Context, j *models.Job) {
	log := w.logger.With(slog.String("job_id", j.ID), slog.Int("attempt", j.Attempts))
	log.Info("job claimed", slog.String("command", j.Command))

	res, execErr := w.executor.Execute(ctx, j.Command)

	settings, err := w.settings.Settings(ctx)
	if err != nil {
		log.Warn("load settings failed, using defaults", slog.Any("error", err))
		settings = config.DefaultSettings()
	}

	out := Decide(j, res, execErr, settings.BackoffBase, w.policy, w.now())

	if out.State != config.JobStatusCompleted {
		log.Warn("job attempt failed",
			slog.String("state", config.JobStatusFailed.String()),
			slog.Int("exit_code", out.ExitCode),
			slog.Any("error", execErr))
	}

	if err := w.store.ApplyOutcome(ctx, j.ID, out); err != nil {
		if errors.Is(err, job.ErrStaleLease) {
			log.Warn("lease lost before outcome was recorded, dropping result")
			return
		}
		log.Error("record outcome failed", slog.Any("error", err))
		return
	}

	attrs := []any{slog.String("state", out.State.String()), slog.Int("exit_code", out.ExitCode)}
	if out.RunAt != nil {
		attrs = append(attrs, slog.Time("run_at", *out.RunAt))
	}
	log.Info("job finished", attrs...)
}
