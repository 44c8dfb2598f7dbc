package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, state config.JobStatus) ([]models.Job, error) {
	args := m.Called(ctx, state)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error) {
	args := m.Called(ctx, workerID, now)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) ApplyOutcome(ctx context.Context, id string, outcome models.Outcome) error {
	args := m.Called(ctx, id, outcome)
	return args.Error(0)
}

func (m *JobRepoMock) Requeue(ctx context.Context, id string, now time.Time) (*models.Job, error) {
	args := m.Called(ctx, id, now)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) ReleaseStale(ctx context.Context, cutoff, now time.Time) ([]models.Job, error) {
	args := m.Called(ctx, cutoff, now)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) CountByState(ctx context.Context) (map[config.JobStatus]int64, error) {
	args := m.Called(ctx)

	counts, _ := args.Get(0).(map[config.JobStatus]int64)
	return counts, args.Error(1)
}

type SettingsRepoMock struct {
	mock.Mock
}

func (m *SettingsRepoMock) Settings(ctx context.Context) (config.Settings, error) {
	args := m.Called(ctx)

	s, _ := args.Get(0).(config.Settings)
	return s, args.Error(1)
}

func (m *SettingsRepoMock) Save(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
