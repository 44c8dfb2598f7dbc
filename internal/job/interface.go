package job

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

// JobRepoInterface defines the contract for the durable job store.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, state config.JobStatus) ([]models.Job, error)
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error)
	ApplyOutcome(ctx context.Context, id string, outcome models.Outcome) error
	Requeue(ctx context.Context, id string, now time.Time) (*models.Job, error)
	ReleaseStale(ctx context.Context, cutoff, now time.Time) ([]models.Job, error)
	CountByState(ctx context.Context) (map[config.JobStatus]int64, error)
}

// SettingsRepoInterface defines the contract for persisted queue settings.
type SettingsRepoInterface interface {
	Settings(ctx context.Context) (config.Settings, error)
	Save(ctx context.Context, key, value string) error
}

// JobServiceInterface defines the queue operations exposed to the CLI and HTTP layers.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, dto *dto.JobCreateDTO) (*dto.JobResponseDTO, error)
	GetJobByID(ctx context.Context, id string) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, state string) ([]dto.JobResponseDTO, error)
	ListDLQ(ctx context.Context) ([]dto.JobResponseDTO, error)
	RetryDLQ(ctx context.Context, id string) (*dto.JobResponseDTO, error)
	GetConfig(ctx context.Context, key string) (*dto.ConfigEntryDTO, error)
	ListConfig(ctx context.Context) ([]dto.ConfigEntryDTO, error)
	SetConfig(ctx context.Context, key, value string) (*dto.ConfigEntryDTO, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	DLQList(c *gin.Context)
	DLQRetry(c *gin.Context)
	ConfigList(c *gin.Context)
	ConfigGet(c *gin.Context)
	ConfigSet(c *gin.Context)
	Stats(c *gin.Context)
}
