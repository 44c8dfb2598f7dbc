package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/models"
)

type JobCreateDTO struct {
	ID         string `json:"id,omitempty" validate:"omitempty,max=128,printascii"`
	Command    string `json:"command" validate:"required"`
	MaxRetries *int   `json:"max_retries,omitempty" validate:"omitempty,gte=0"`
}

type JobResponseDTO struct {
	ID         string           `json:"id"`
	Command    string           `json:"command"`
	State      string           `json:"state"`
	Attempts   int              `json:"attempts"`
	MaxRetries int              `json:"max_retries"`
	WorkerID   string           `json:"worker_id,omitempty"`
	LockedAt   *time.Time       `json:"locked_at,omitempty"`
	RunAt      *time.Time       `json:"run_at,omitempty"`
	Stdout     string           `json:"stdout,omitempty"`
	Stderr     string           `json:"stderr,omitempty"`
	ExitCode   *int             `json:"exit_code,omitempty"`
	History    []models.Attempt `json:"history,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type ConfigEntryDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ConfigSetDTO struct {
	Value string `json:"value" validate:"required"`
}

// DecodeJobSpec parses a job specification, rejecting unknown fields and
// trailing data.
func DecodeJobSpec(raw []byte) (*JobCreateDTO, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var spec JobCreateDTO
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("invalid job spec: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid job spec: unexpected data after object")
	}
	return &spec, nil
}

// NewJobResponse maps a stored job to its wire form.
func NewJobResponse(job *models.Job) JobResponseDTO {
	resp := JobResponseDTO{
		ID:         job.ID,
		Command:    job.Command,
		State:      string(job.State),
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		LockedAt:   job.LockedAt,
		RunAt:      job.RunAt,
		Stdout:     job.Stdout,
		Stderr:     job.Stderr,
		ExitCode:   job.ExitCode,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
	if job.WorkerID != nil {
		resp.WorkerID = *job.WorkerID
	}
	// history is informational; a corrupt column must not hide the job
	if history, err := job.AttemptHistory(); err == nil {
		resp.History = history
	}
	return resp
}
