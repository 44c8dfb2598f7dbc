package mocks

import (
	"context"

	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id string) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, state string) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, state)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) ListDLQ(ctx context.Context) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) RetryDLQ(ctx context.Context, id string) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetConfig(ctx context.Context, key string) (*dto.ConfigEntryDTO, error) {
	args := m.Called(ctx, key)

	entry, _ := args.Get(0).(*dto.ConfigEntryDTO)
	return entry, args.Error(1)
}

func (m *JobServiceMock) ListConfig(ctx context.Context) ([]dto.ConfigEntryDTO, error) {
	args := m.Called(ctx)

	entries, _ := args.Get(0).([]dto.ConfigEntryDTO)
	return entries, args.Error(1)
}

func (m *JobServiceMock) SetConfig(ctx context.Context, key, value string) (*dto.ConfigEntryDTO, error) {
	args := m.Called(ctx, key, value)

	entry, _ := args.Get(0).(*dto.ConfigEntryDTO)
	return entry, args.Error(1)
}

func (m *JobServiceMock) Stats(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)

	stats, _ := args.Get(0).(map[string]int64)
	return stats, args.Error(1)
}
