package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/mocks"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type execFunc func(ctx context.Context, command string) (ExecResult, error)

func (f execFunc) Execute(ctx context.Context, command string) (ExecResult, error) {
	return f(ctx, command)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testStore struct {
	jobs     *storage.JobRepository
	settings *storage.SettingsRepository
}

func newTestStore(t *testing.T) testStore {
	t.Helper()

	db, err := storage.ConnectDB(context.Background(), &storage.Config{
		Driver:   storage.DriverSQLite,
		Path:     ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return testStore{jobs: storage.NewJobRepository(db), settings: storage.NewSettingsRepository(db)}
}

func (s testStore) enqueue(t *testing.T, id, command string, maxRetries int, at time.Time) {
	t.Helper()
	require.NoError(t, s.jobs.Create(context.Background(), &models.Job{
		ID:         id,
		Command:    command,
		State:      config.JobStatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  at,
		UpdatedAt:  at,
	}))
}

func (s testStore) get(t *testing.T, id string) *models.Job {
	t.Helper()
	j, err := s.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	return j
}

func TestWorker_RunOnce_Success(t *testing.T) {
	store := newTestStore(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.enqueue(t, "job1", "echo hello", 3, clock.Now())

	w := NewWorker("w1", store.jobs, NewShellExecutor(0), store.settings, WithClock(clock.Now))

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	got := store.get(t, "job1")
	assert.Equal(t, config.JobStatusCompleted, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "hello\n", got.Stdout)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
	assert.Nil(t, got.WorkerID)

	processed, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_RunOnce_RetriesThenDeadLetters(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.settings.Save(context.Background(), config.KeyBackoffBase, "1"))

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.enqueue(t, "job1", "exit 1", 2, clock.Now())

	runs := 0
	exec := execFunc(func(ctx context.Context, command string) (ExecResult, error) {
		runs++
		return ExecResult{ExitCode: 1, Stderr: "failed"}, nil
	})
	w := NewWorker("w1", store.jobs, exec, store.settings, WithClock(clock.Now))

	// attempt 1 fails and is delayed by 1s * 2^1
	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	got := store.get(t, "job1")
	assert.Equal(t, config.JobStatusPending, got.State)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.RunAt)
	assert.Equal(t, 2*time.Second, got.RunAt.Sub(clock.Now()))

	clock.Advance(time.Second)
	processed, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed, "job must not run before its retry time")

	// attempt 2 fails and is delayed by 1s * 2^2
	clock.Advance(time.Second)
	processed, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	got = store.get(t, "job1")
	assert.Equal(t, config.JobStatusPending, got.State)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.RunAt)
	assert.Equal(t, 4*time.Second, got.RunAt.Sub(clock.Now()))

	// attempt 3 exceeds max_retries
	clock.Advance(4 * time.Second)
	processed, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	got = store.get(t, "job1")
	assert.Equal(t, config.JobStatusDead, got.State)
	assert.Equal(t, 3, got.Attempts)
	assert.Nil(t, got.RunAt)
	assert.Equal(t, "failed", got.Stderr)
	assert.Equal(t, 3, runs)

	history, err := got.AttemptHistory()
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, config.JobStatusDead, history[2].Outcome)

	clock.Advance(time.Hour)
	processed, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_RunOnce_UnknownCommandDeadLetters(t *testing.T) {
	store := newTestStore(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.enqueue(t, "job1", "definitely-not-a-real-command-xyz", 0, clock.Now())

	w := NewWorker("w1", store.jobs, NewShellExecutor(0), store.settings, WithClock(clock.Now))

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	got := store.get(t, "job1")
	assert.Equal(t, config.JobStatusDead, got.State)
	require.NotNil(t, got.ExitCode)
	assert.NotEqual(t, 0, *got.ExitCode)
	assert.NotEmpty(t, got.Stderr)
}

func TestWorker_RunOnce_StaleLeaseIsDropped(t *testing.T) {
	workerID := "w1"
	lockedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	claimed := &models.Job{
		ID: "job1", Command: "true", State: config.JobStatusProcessing,
		Attempts: 1, MaxRetries: 3, WorkerID: &workerID, LockedAt: &lockedAt,
	}

	repo := new(mocks.JobRepoMock)
	repo.On("ClaimNext", mock.Anything, "w1", mock.Anything).Return(claimed, nil).Once()
	repo.On("ApplyOutcome", mock.Anything, "job1", mock.MatchedBy(func(out models.Outcome) bool {
		return out.State == config.JobStatusCompleted && out.WorkerID == "w1" && out.LockedAt.Equal(lockedAt)
	})).Return(job.ErrStaleLease).Once()

	settings := new(mocks.SettingsRepoMock)
	settings.On("Settings", mock.Anything).Return(config.DefaultSettings(), nil)

	exec := execFunc(func(ctx context.Context, command string) (ExecResult, error) {
		return ExecResult{}, nil
	})

	processed, err := NewWorker("w1", repo, exec, settings).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	repo.AssertExpectations(t)
}

func TestWorker_RunOnce_ClaimError(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	repo.On("ClaimNext", mock.Anything, "w1", mock.Anything).Return(nil, errors.New("database is locked"))

	processed, err := NewWorker("w1", repo, nil, nil).RunOnce(context.Background())
	assert.Error(t, err)
	assert.False(t, processed)
}

func TestWorker_StopWaitsForInFlightJob(t *testing.T) {
	store := newTestStore(t)
	store.enqueue(t, "slow", "slow", 3, models.Now())

	started := make(chan struct{})
	release := make(chan struct{})
	exec := execFunc(func(ctx context.Context, command string) (ExecResult, error) {
		close(started)
		<-release
		return ExecResult{ExitCode: 0, Stdout: "done"}, nil
	})

	w := NewWorker("w1", store.jobs, exec, store.settings, WithPollInterval(10*time.Millisecond, 20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never started")
	}

	stopped := make(chan struct{})
	go func() {
		cancel()
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the job finished")
	}

	got := store.get(t, "slow")
	assert.Equal(t, config.JobStatusCompleted, got.State)
	assert.Equal(t, "done", got.Stdout)
}

func TestWorker_StopWhenIdle(t *testing.T) {
	repo := new(mocks.JobRepoMock)
	repo.On("ClaimNext", mock.Anything, "w1", mock.Anything).Return(nil, nil)

	w := NewWorker("w1", repo, nil, nil, WithPollInterval(5*time.Millisecond, 10*time.Millisecond))
	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("idle worker did not stop")
	}
	assert.NotNil(t, w.Done())
}

func TestWorker_DefaultPollPicksUpDelayedRetryPromptly(t *testing.T) {
	store := newTestStore(t)
	now := models.Now()
	runAt := now.Add(1200 * time.Millisecond)
	require.NoError(t, store.jobs.Create(context.Background(), &models.Job{
		ID:         "delayed",
		Command:    "true",
		State:      config.JobStatusPending,
		MaxRetries: 1,
		RunAt:      &runAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	w := NewWorker("w1", store.jobs, NewShellExecutor(0), store.settings)
	w.Start(context.Background())
	defer w.Stop()

	// idle polls back off 0.5s then 1s, so a job due at 1.2s is claimed by 1.5s
	assert.Eventually(t, func() bool {
		j, err := store.jobs.Get(context.Background(), "delayed")
		return err == nil && j.State == config.JobStatusCompleted
	}, 2500*time.Millisecond, 20*time.Millisecond)
}
