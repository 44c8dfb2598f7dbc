package pool

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/internal/storage"
	"github.com/joshu-sajeev/queuectl/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) (*storage.JobRepository, *storage.SettingsRepository) {
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

	return storage.NewJobRepository(db), storage.NewSettingsRepository(db)
}

func enqueue(t *testing.T, jobs *storage.JobRepository, id, command string, maxRetries int) {
	t.Helper()

	now := models.Now()
	require.NoError(t, jobs.Create(context.Background(), &models.Job{
		ID:         id,
		Command:    command,
		State:      config.JobStatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func TestWorkerPool_RunsAllJobsOnce(t *testing.T) {
	jobs, settings := setupStore(t)
	for i := range 5 {
		enqueue(t, jobs, fmt.Sprintf("job-%d", i), fmt.Sprintf("echo %d", i), 3)
	}

	p := NewWorkerPool(jobs, worker.NewShellExecutor(10*time.Second), settings, Config{
		Count:           3,
		PollInterval:    10 * time.Millisecond,
		MaxPollInterval: 50 * time.Millisecond,
		IDPrefix:        "test",
	})
	assert.Equal(t, []string{"test-1", "test-2", "test-3"}, p.Workers())

	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		counts, err := jobs.CountByState(context.Background())
		return err == nil && counts[config.JobStatusCompleted] == 5
	}, 10*time.Second, 20*time.Millisecond)

	p.Stop()

	all, err := jobs.List(context.Background(), "")
	require.NoError(t, err)
	for i, j := range all {
		assert.Equal(t, 1, j.Attempts, "job %s ran more than once", j.ID)
		assert.Equal(t, fmt.Sprintf("%d\n", i), j.Stdout)

		history, err := j.AttemptHistory()
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, strings.HasPrefix(history[0].WorkerID, "test-"))
	}
}

func TestWorkerPool_DeadLettersFailingJob(t *testing.T) {
	jobs, settings := setupStore(t)
	require.NoError(t, settings.Save(context.Background(), config.KeyBackoffBase, "10ms"))
	enqueue(t, jobs, "bad", "exit 1", 2)

	p := NewWorkerPool(jobs, worker.NewShellExecutor(0), settings, Config{
		Count:           2,
		PollInterval:    10 * time.Millisecond,
		MaxPollInterval: 20 * time.Millisecond,
	})
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		j, err := jobs.Get(context.Background(), "bad")
		return err == nil && j.State == config.JobStatusDead
	}, 10*time.Second, 20*time.Millisecond)

	j, err := jobs.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, 3, j.Attempts)
}

func TestWorkerPool_ReapReleasesExpiredLeases(t *testing.T) {
	jobs, settings := setupStore(t)
	enqueue(t, jobs, "orphan", "echo hi", 3)
	enqueue(t, jobs, "exhausted", "echo hi", 0)

	long := models.Now().Add(-2 * time.Hour)
	for range 2 {
		claimed, err := jobs.ClaimNext(context.Background(), "crashed-worker", long)
		require.NoError(t, err)
		require.NotNil(t, claimed)
	}

	p := NewWorkerPool(jobs, worker.NewShellExecutor(0), settings, Config{LeaseTimeout: time.Minute})

	assert.Equal(t, 2, p.Reap(context.Background()))

	orphan, err := jobs.Get(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusPending, orphan.State)
	assert.Nil(t, orphan.WorkerID)

	exhausted, err := jobs.Get(context.Background(), "exhausted")
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusDead, exhausted.State)

	assert.Equal(t, 0, p.Reap(context.Background()))
}

func TestWorkerPool_StopIsIdempotent(t *testing.T) {
	jobs, settings := setupStore(t)

	p := NewWorkerPool(jobs, worker.NewShellExecutor(0), settings, Config{Count: 2, PollInterval: 5 * time.Millisecond})
	p.Start()
	p.Stop()
	p.Stop()
}
