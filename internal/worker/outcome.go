package worker

import (
	"strings"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/backoff"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

// Decide maps the result of running a claimed job to the outcome stored for it.
// j.Attempts already counts the attempt that just ran. A failed attempt is
// retried after a backoff delay while attempts <= max_retries, so a job that
// always fails runs max_retries+1 times before it is dead-lettered.
func Decide(j *models.Job, res ExecResult, execErr error, base time.Duration, policy backoff.Policy, now time.Time) models.Outcome {
	if execErr != nil && res.ExitCode == 0 {
		res.ExitCode = -1
	}
	if execErr != nil && res.Stderr == "" {
		res.Stderr = execErr.Error()
	}

	// text columns reject invalid UTF-8 on PostgreSQL
	out := models.Outcome{
		ExitCode: res.ExitCode,
		Stdout:   strings.ToValidUTF8(res.Stdout, "\uFFFD"),
		Stderr:   strings.ToValidUTF8(res.Stderr, "\uFFFD"),
		At:       now,
	}
	if j.WorkerID != nil {
		out.WorkerID = *j.WorkerID
	}
	if j.LockedAt != nil {
		out.LockedAt = *j.LockedAt
	}

	switch {
	case res.ExitCode == 0:
		out.State = config.JobStatusCompleted
	case j.Attempts <= j.MaxRetries:
		runAt := now.Add(policy.Delay(j.Attempts, base))
		out.State = config.JobStatusPending
		out.RunAt = &runAt
	default:
		out.State = config.JobStatusDead
	}

	out.Attempt = models.Attempt{
		Number:     j.Attempts,
		WorkerID:   out.WorkerID,
		StartedAt:  out.LockedAt,
		FinishedAt: now,
		ExitCode:   res.ExitCode,
		Outcome:    out.State,
	}
	if execErr != nil {
		out.Attempt.Error = strings.ToValidUTF8(execErr.Error(), "\uFFFD")
	}
	return out
}
