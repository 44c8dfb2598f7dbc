package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"gorm.io/datatypes"
)

type Job struct {
	ID         string           `gorm:"primaryKey;type:varchar(128)"`
	Command    string           `gorm:"type:text;not null"`
	State      config.JobStatus `gorm:"type:varchar(20);not null"`
	Attempts   int              `gorm:"not null"`
	MaxRetries int              `gorm:"not null"`
	WorkerID   *string          `gorm:"type:varchar(128)"`
	LockedAt   *time.Time
	RunAt      *time.Time
	Stdout     string         `gorm:"type:text;not null"`
	Stderr     string         `gorm:"type:text;not null"`
	ExitCode   *int
	History    datatypes.JSON `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"autoCreateTime:false;not null"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime:false;not null"`
}

// Leased reports whether the job currently holds the given lease.
func (j *Job) Leased(workerID string, lockedAt time.Time) bool {
	return j.State == config.JobStatusProcessing &&
		j.WorkerID != nil && *j.WorkerID == workerID &&
		j.LockedAt != nil && j.LockedAt.Equal(lockedAt)
}

// AttemptHistory returns the decoded attempt history. A malformed column yields an error
// rather than a partial slice.
func (j *Job) AttemptHistory() ([]Attempt, error) {
	if len(j.History) == 0 {
		return nil, nil
	}
	var out []Attempt
	if err := json.Unmarshal(j.History, &out); err != nil {
		return nil, fmt.Errorf("decode history for job %s: %w", j.ID, err)
	}
	return out, nil
}

// Attempt is one execution recorded in a job's history.
type Attempt struct {
	Number     int              `json:"attempt"`
	WorkerID   string           `json:"worker_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	ExitCode   int              `json:"exit_code"`
	Outcome    config.JobStatus `json:"outcome"`
	Error      string           `json:"error,omitempty"`
}

// Outcome is the result of one execution attempt, reported by the lease holder.
type Outcome struct {
	WorkerID string
	LockedAt time.Time
	State    config.JobStatus
	RunAt    *time.Time
	ExitCode int
	Stdout   string
	Stderr   string
	Attempt  Attempt
	At       time.Time
}

// Now returns the store clock: UTC, truncated to the microsecond precision every
// supported database can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
