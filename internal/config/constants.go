package config

import "slices"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDead       JobStatus = "dead"
)

var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusDead,
}

func (s JobStatus) Valid() bool {
	return slices.Contains(AllJobStatuses, s)
}

func (s JobStatus) String() string {
	return string(s)
}

// Setting keys persisted in the settings table.
const (
	KeyMaxRetries  = "max_retries"
	KeyBackoffBase = "backoff_base"
)

var SettingKeys = []string{KeyMaxRetries, KeyBackoffBase}
