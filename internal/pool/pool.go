package pool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/queuectl/internal/backoff"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/internal/worker"
)

const (
	DefaultLeaseTimeout = 5 * time.Minute
	DefaultReapInterval = 30 * time.Second
)

// Store is the job repository surface used by the pool: claims and outcomes
// for its workers, stale-lease release for the janitor.
type Store interface {
	worker.JobStore
	ReleaseStale(ctx context.Context, cutoff, now time.Time) ([]models.Job, error)
}

type Config struct {
	Count           int
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	LeaseTimeout    time.Duration
	ReapInterval    time.Duration
	Policy          backoff.Policy
	Logger          *slog.Logger
	// IDPrefix names the workers "<prefix>-<n>". Defaults to host, pid and a
	// random suffix so ids stay unique across processes.
	IDPrefix string
}

type WorkerPool struct {
	workers      []*worker.Worker
	store        Store
	leaseTimeout time.Duration
	reapInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	stopOnce     sync.Once
}

func NewWorkerPool(store Store, exec worker.Executor, settings worker.SettingsSource, cfg Config) *WorkerPool {
	if cfg.Count < 1 {
		cfg.Count = 1
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultLeaseTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = worker.DefaultPollInterval
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = worker.DefaultMaxPollInterval
	}
	if cfg.Policy == nil {
		cfg.Policy = backoff.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = defaultIDPrefix()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		store:        store,
		leaseTimeout: cfg.LeaseTimeout,
		reapInterval: cfg.ReapInterval,
		logger:       cfg.Logger,
		now:          models.Now,
		ctx:          ctx,
		cancel:       cancel,
	}

	for i := 1; i <= cfg.Count; i++ {
		p.workers = append(p.workers, worker.NewWorker(
			fmt.Sprintf("%s-%d", cfg.IDPrefix, i),
			store, exec, settings,
			worker.WithPolicy(cfg.Policy),
			worker.WithPollInterval(cfg.PollInterval, cfg.MaxPollInterval),
			worker.WithLogger(cfg.Logger),
		))
	}
	return p
}

func defaultIDPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Workers returns the ids of the pool's workers.
func (p *WorkerPool) Workers() []string {
	ids := make([]string, len(p.workers))
	for i, w := range p.workers {
		ids[i] = w.ID
	}
	return ids
}

func (p *WorkerPool) Start() {
	p.logger.Info("worker pool starting",
		slog.Int("workers", len(p.workers)),
		slog.Duration("lease_timeout", p.leaseTimeout))

	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(1)
	go p.janitor()
}

func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	p.Reap(p.ctx)
	for {
		select {
		case <-ticker.C:
			p.Reap(p.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

// Reap releases jobs whose lease is older than the lease timeout and returns
// how many were released.
func (p *WorkerPool) Reap(ctx context.Context) int {
	now := p.now()
	released, err := p.store.ReleaseStale(ctx, now.Add(-p.leaseTimeout), now)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("release stale leases failed", slog.Any("error", err))
		}
		return 0
	}
	for _, j := range released {
		p.logger.Warn("recovered job with expired lease",
			slog.String("job_id", j.ID),
			slog.String("state", j.State.String()),
			slog.Int("attempts", j.Attempts))
	}
	return len(released)
}

// Stop stops claiming new jobs, waits for in-flight jobs to finish and for
// the janitor to exit.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("worker pool stopping")
		p.cancel()
		for _, w := range p.workers {
			w.Stop()
		}
		p.wg.Wait()
		p.logger.Info("worker pool stopped")
	})
}
