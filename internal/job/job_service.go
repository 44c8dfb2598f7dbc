package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/queuectl/common"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

type JobService struct {
	repo     JobRepoInterface
	settings SettingsRepoInterface
	now      func() time.Time
	newID    func() string
}

func NewJobService(repo JobRepoInterface, settings SettingsRepoInterface) *JobService {
	return &JobService{
		repo:     repo,
		settings: settings,
		now:      models.Now,
		newID:    uuid.NewString,
	}
}

var _ JobServiceInterface = (*JobService)(nil)

// CreateJob validates a job specification, applies the configured default for
// max_retries, assigns an id when none was given, and persists the job as
// pending with zero attempts.
func (s *JobService) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request canceled or timed out")
	}

	if req == nil {
		return nil, common.Wrap(http.StatusBadRequest, ErrValidation, "job spec is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	command := strings.TrimSpace(req.Command)
	if command == "" {
		return nil, common.APIError{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Fields:  map[string]any{"command": "must not be blank"},
			Err:     ErrValidation,
		}
	}
	if strings.ContainsAny(req.ID, " \t\r\n") {
		return nil, common.APIError{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Fields:  map[string]any{"id": "must not contain whitespace"},
			Err:     ErrValidation,
		}
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, mapRepoError(err, "load settings")
	}

	maxRetries := settings.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	}

	now := s.now()
	job := models.Job{
		ID:         id,
		Command:    req.Command,
		State:      config.JobStatusPending,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, &job); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return nil, common.Wrap(http.StatusConflict, err, "job with id %q already exists", id)
		}
		return nil, mapRepoError(err, "add job to database")
	}

	resp := dto.NewJobResponse(&job)
	return &resp, nil
}

// GetJobByID retrieves a job by its ID from the repository.
// It maps repository errors to appropriate API errors
// (e.g., not found, timeout, or internal failure).
func (s *JobService) GetJobByID(ctx context.Context, id string) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "get job")
	}

	resp := dto.NewJobResponse(job)
	return &resp, nil
}

// ListJobs returns jobs ordered by creation time, restricted to one state when
// state is non-empty.
func (s *JobService) ListJobs(ctx context.Context, state string) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	status := config.JobStatus(strings.ToLower(strings.TrimSpace(state)))
	if status != "" && !status.Valid() {
		return nil, common.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid state",
			Fields: map[string]any{
				"provided": state,
				"allowed":  config.AllJobStatuses,
			},
			Err: ErrValidation,
		}
	}

	jobs, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, mapRepoError(err, "list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = dto.NewJobResponse(&jobs[i])
	}
	return dtos, nil
}

// ListDLQ returns the jobs in the dead letter queue.
func (s *JobService) ListDLQ(ctx context.Context) ([]dto.JobResponseDTO, error) {
	return s.ListJobs(ctx, string(config.JobStatusDead))
}

// RetryDLQ moves a dead job back to pending with its attempts reset and no
// lease or delay.
func (s *JobService) RetryDLQ(ctx context.Context, id string) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	}

	job, err := s.repo.Requeue(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil, common.Wrap(http.StatusConflict, err, "job %q is not in the dead letter queue", id)
		}
		return nil, mapRepoError(err, "retry job")
	}

	resp := dto.NewJobResponse(job)
	return &resp, nil
}

// GetConfig returns one setting under its canonical key. Unknown keys are
// rejected before the store is read.
func (s *JobService) GetConfig(ctx context.Context, key string) (*dto.ConfigEntryDTO, error) {
	k, err := config.NormalizeKey(key)
	if err != nil {
		return nil, settingError(err)
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, mapRepoError(err, "load settings")
	}

	value, err := settings.Get(k)
	if err != nil {
		return nil, settingError(err)
	}
	return &dto.ConfigEntryDTO{Key: k, Value: value}, nil
}

func (s *JobService) ListConfig(ctx context.Context) ([]dto.ConfigEntryDTO, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, mapRepoError(err, "load settings")
	}

	values := settings.Values()
	entries := make([]dto.ConfigEntryDTO, 0, len(config.SettingKeys))
	for _, k := range config.SettingKeys {
		entries = append(entries, dto.ConfigEntryDTO{Key: k, Value: values[k]})
	}
	return entries, nil
}

// SetConfig validates and persists one setting. The new value applies to jobs
// enqueued or retried afterwards; existing jobs keep their max_retries.
func (s *JobService) SetConfig(ctx context.Context, key, value string) (*dto.ConfigEntryDTO, error) {
	current, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, mapRepoError(err, "load settings")
	}

	next, err := current.With(key, value)
	if err != nil {
		return nil, settingError(err)
	}

	k, _ := config.NormalizeKey(key)
	normalized := next.Values()[k]
	if err := s.settings.Save(ctx, k, normalized); err != nil {
		return nil, mapRepoError(err, "save setting")
	}

	return &dto.ConfigEntryDTO{Key: k, Value: normalized}, nil
}

// Stats returns the number of jobs in every state, including empty ones.
func (s *JobService) Stats(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByState(ctx)
	if err != nil {
		return nil, mapRepoError(err, "count jobs")
	}

	out := make(map[string]int64, len(config.AllJobStatuses))
	for _, st := range config.AllJobStatuses {
		out[string(st)] = counts[st]
	}
	return out, nil
}

func settingError(err error) error {
	return common.Wrap(http.StatusBadRequest, fmt.Errorf("%w: %w", ErrValidation, err), "%s", err.Error())
}

func mapRepoError(err error, action string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return common.Wrap(http.StatusRequestTimeout, err, "request timed out")
	case errors.Is(err, ErrNotFound):
		return common.Wrap(http.StatusNotFound, err, "job not found")
	case errors.Is(err, ErrDuplicateID):
		return common.Wrap(http.StatusConflict, err, "job already exists")
	case errors.Is(err, ErrInvalidState):
		return common.Wrap(http.StatusConflict, err, "invalid job state")
	default:
		return common.Wrap(http.StatusInternalServerError, err, "failed to %s", action)
	}
}
