package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a queued job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job type constants
const (
	// JobTypePlanGeneration is the job type for generating a plan's
	// modules and tasks from a reserved attempt.
	JobTypePlanGeneration = "plan_generation"
)

// MaxJobErrorHistory bounds the persisted error history per job. Older
// entries are discarded first.
const MaxJobErrorHistory = 10

// DefaultJobMaxRetries is the number of times a retryable failure requeues
// a job before it is terminally failed.
const DefaultJobMaxRetries = 3

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobType     = errors.New("job type cannot be empty")
	ErrEmptyJobEntityID = errors.New("job entity ID cannot be empty")
	ErrEmptyJobOwnerID  = errors.New("job owner ID cannot be empty")
	ErrInvalidJobStatus = errors.New("invalid job status")
)

// JobError is one entry in a job's bounded error history.
type JobError struct {
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Job is a durable queue entry. Jobs of the same type targeting the same
// entity are deduplicated while one is pending or processing.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	JobType      string     `json:"job_type"`
	EntityID     uuid.UUID  `json:"entity_id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Payload      []byte     `json:"payload"`
	Priority     int        `json:"priority"`
	Status       JobStatus  `json:"status"`
	ErrorHistory []JobError `json:"error_history,omitempty"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewJob creates a pending Job for the given target entity.
func NewJob(jobType string, entityID, ownerID uuid.UUID, payload []byte, priority int) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		JobType:   jobType,
		EntityID:  entityID,
		OwnerID:   ownerID,
		Payload:   payload,
		Priority:  priority,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if j.JobType == "" {
		return ErrEmptyJobType
	}
	if j.EntityID == uuid.Nil {
		return ErrEmptyJobEntityID
	}
	if j.OwnerID == uuid.Nil {
		return ErrEmptyJobOwnerID
	}
	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}
	return nil
}

// IsActive reports whether the job is eligible for dequeue and counts
// toward enqueue deduplication.
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// AppendError records a failure in the job's bounded error history.
func (j *Job) AppendError(message string, retryable bool) {
	j.ErrorHistory = append(j.ErrorHistory, JobError{
		Message:    message,
		Retryable:  retryable,
		OccurredAt: time.Now().UTC(),
	})
	if len(j.ErrorHistory) > MaxJobErrorHistory {
		j.ErrorHistory = j.ErrorHistory[len(j.ErrorHistory)-MaxJobErrorHistory:]
	}
}

func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
