package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// claimRaces bounds how many times ClaimNext retries after losing a candidate
// to a concurrent claimer before reporting that nothing is available.
const claimRaces = 5

var errClaimLost = errors.New("claim lost to concurrent worker")

type JobRepository struct {
	db         *gorm.DB
	skipLocked bool
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{
		db:         db,
		skipLocked: db.Dialector.Name() == DriverPostgres,
	}
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// Create inserts a new job record. It returns job.ErrDuplicateID when a job
// with the same id already exists, whatever its state.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Job{}).Where("id = ?", j.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return job.ErrDuplicateID
		}
		return tx.Create(j).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = job.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a single job record by its ID. Returns job.ErrNotFound if the
// job doesn't exist.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).Take(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get job %s: %w", id, job.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// List retrieves jobs ordered by creation time, oldest first. An empty state
// lists every job.
func (r *JobRepository) List(ctx context.Context, state config.JobStatus) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC")
	if state != "" {
		q = q.Where("state = ?", string(state))
	}

	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNext leases the oldest eligible pending job to workerID. The lease is a
// compare-and-swap on state = pending inside a transaction, so two workers can
// never receive the same job; on PostgreSQL the candidate row is also locked
// with SKIP LOCKED. The attempt counter is incremented as part of the claim.
// It returns nil, nil when no job is eligible.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.Job, error) {
	now = now.UTC().Truncate(time.Microsecond)
	for range claimRaces {
		claimed, err := r.claimOnce(ctx, workerID, now)
		if errors.Is(err, errClaimLost) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		return claimed, nil
	}
	return nil, nil
}

func (r *JobRepository) claimOnce(ctx context.Context, workerID string, now time.Time) (*models.Job, error) {
	var claimed *models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("state = ?", string(config.JobStatusPending)).
			Where("(run_at IS NULL OR run_at <= ?)", now).
			Order("COALESCE(run_at, created_at) ASC").
			Order("created_at ASC").
			Order("id ASC")
		if r.skipLocked {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidate models.Job
		if err := q.Take(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND state = ?", candidate.ID, string(config.JobStatusPending)).
			Updates(map[string]any{
				"state":      string(config.JobStatusProcessing),
				"worker_id":  workerID,
				"locked_at":  now,
				"attempts":   gorm.Expr("attempts + ?", 1),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errClaimLost
		}

		candidate.State = config.JobStatusProcessing
		candidate.WorkerID = &workerID
		candidate.LockedAt = &now
		candidate.Attempts++
		candidate.UpdatedAt = now
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ApplyOutcome records the result of an execution attempt and releases the
// lease in one update. It fails with job.ErrNotFound when the job is gone and
// with job.ErrStaleLease when the reporting worker no longer holds the lease.
func (r *JobRepository) ApplyOutcome(ctx context.Context, id string, out models.Outcome) error {
	switch out.State {
	case config.JobStatusCompleted, config.JobStatusPending, config.JobStatusDead:
	default:
		return fmt.Errorf("apply outcome %s: %w: cannot move to %q", id, job.ErrInvalidState, out.State)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Job
		if err := tx.Take(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return job.ErrNotFound
			}
			return err
		}
		if !current.Leased(out.WorkerID, out.LockedAt) {
			return job.ErrStaleLease
		}

		// a corrupt history column is replaced rather than blocking the outcome
		history, _ := current.AttemptHistory()
		raw, err := json.Marshal(append(history, out.Attempt))
		if err != nil {
			return err
		}

		var runAt any
		if out.RunAt != nil {
			runAt = *out.RunAt
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND state = ? AND worker_id = ?", id, string(config.JobStatusProcessing), out.WorkerID).
			Updates(map[string]any{
				"state":      string(out.State),
				"worker_id":  nil,
				"locked_at":  nil,
				"run_at":     runAt,
				"stdout":     out.Stdout,
				"stderr":     out.Stderr,
				"exit_code":  out.ExitCode,
				"history":    datatypes.JSON(raw),
				"updated_at": out.At,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return job.ErrStaleLease
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply outcome %s: %w", id, err)
	}
	return nil
}

// Requeue moves a dead job back to pending, resetting attempts and clearing
// lease and delay fields. It fails with job.ErrNotFound for unknown ids and
// job.ErrInvalidState for jobs that are not dead.
func (r *JobRepository) Requeue(ctx context.Context, id string, now time.Time) (*models.Job, error) {
	var requeued models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Job{}).
			Where("id = ? AND state = ?", id, string(config.JobStatusDead)).
			Updates(map[string]any{
				"state":      string(config.JobStatusPending),
				"attempts":   0,
				"worker_id":  nil,
				"locked_at":  nil,
				"run_at":     nil,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return job.ErrNotFound
			}
			return job.ErrInvalidState
		}

		return tx.Take(&requeued, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("requeue job %s: %w", id, err)
	}
	return &requeued, nil
}

// ReleaseStale returns every job whose lease was taken before cutoff to the
// pool: to pending when it has attempts left, to dead when its last allowed
// attempt was the one that never reported. The released jobs are returned in
// their new state.
func (r *JobRepository) ReleaseStale(ctx context.Context, cutoff, now time.Time) ([]models.Job, error) {
	var released []models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("state = ? AND locked_at < ?", string(config.JobStatusProcessing), cutoff).
			Order("locked_at ASC")
		if r.skipLocked {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var stale []models.Job
		if err := q.Find(&stale).Error; err != nil {
			return err
		}

		for _, j := range stale {
			next := config.JobStatusPending
			if j.Attempts > j.MaxRetries {
				next = config.JobStatusDead
			}

			res := tx.Model(&models.Job{}).
				Where("id = ? AND state = ? AND locked_at < ?", j.ID, string(config.JobStatusProcessing), cutoff).
				Updates(map[string]any{
					"state":      string(next),
					"worker_id":  nil,
					"locked_at":  nil,
					"run_at":     nil,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}

			j.State = next
			j.WorkerID = nil
			j.LockedAt = nil
			j.RunAt = nil
			j.UpdatedAt = now
			released = append(released, j)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("release stale jobs: %w", err)
	}
	return released, nil
}

// CountByState returns the number of jobs per persisted state. States without
// jobs are absent from the map.
func (r *JobRepository) CountByState(ctx context.Context) (map[config.JobStatus]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("state, COUNT(*) AS count").
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	counts := make(map[config.JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[config.JobStatus(row.State)] = row.Count
	}
	return counts, nil
}
