package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// DedupResult is the outcome of a deduplicated enqueue.
type DedupResult struct {
	ID           uuid.UUID
	Deduplicated bool
}

// JobStore defines the persistence interface for the durable job queue.
type JobStore interface {
	// Insert saves a new pending job without deduplication.
	Insert(ctx context.Context, job *domain.Job) error

	// InsertDeduplicated inserts the job unless an active (pending or
	// processing) job with the same (job type, entity ID) already exists,
	// in which case it returns that job's ID with Deduplicated set.
	InsertDeduplicated(ctx context.Context, job *domain.Job) (DedupResult, error)

	// DequeueNext atomically claims the highest-priority pending job
	// (ties broken by earliest creation) and transitions it to
	// processing. Returns ErrJobNotFound when the queue is empty.
	DequeueNext(ctx context.Context) (*domain.Job, error)

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// MarkCompleted transitions a processing job to completed.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailed writes the job's terminal or requeued state after a
	// failure: status is pending (retry) or failed (terminal), together
	// with the updated retry count and bounded error history.
	MarkFailed(
		ctx context.Context,
		id uuid.UUID,
		status domain.JobStatus,
		retryCount int,
		errorHistory []domain.JobError,
	) error

	// ResetStuck requeues processing jobs older than the given age and
	// returns how many were reset.
	ResetStuck(ctx context.Context, olderThan time.Duration) (int, error)
}
