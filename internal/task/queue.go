package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// Executor processes one dequeued job. Returned errors are retryable by
// default; wrap with Terminal to fail the job permanently.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *domain.Job) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, job *domain.Job) error {
	return f(ctx, job)
}

// DrainStats reports what one Drain call did.
type DrainStats struct {
	Processed int
	Completed int
	Failed    int

	// Skipped is set when another drain held the lock and this call did
	// nothing.
	Skipped bool
}

// Queue is the durable priority job queue. State lives entirely in the
// job store; the queue adds the state machine transitions, executor
// dispatch and the inline-drain guard on top.
type Queue struct {
	jobs       store.JobStore
	maxRetries int

	mu        sync.RWMutex
	executors map[string]Executor

	// drainMu serializes inline drains within this process. Concurrent
	// drain triggers skip instead of blocking; cross-process exclusion
	// comes from the store's atomic dequeue.
	drainMu sync.Mutex
}

// NewQueue creates a Queue. maxRetries <= 0 falls back to the default.
func NewQueue(jobs store.JobStore, maxRetries int) (*Queue, error) {
	if jobs == nil {
		return nil, ErrNilJobStore
	}
	if maxRetries <= 0 {
		maxRetries = domain.DefaultJobMaxRetries
	}

	return &Queue{
		jobs:       jobs,
		maxRetries: maxRetries,
		executors:  make(map[string]Executor),
	}, nil
}

// RegisterExecutor binds an executor to a job type. Registration happens
// during startup wiring, before any drain or runner touches the queue.
func (q *Queue) RegisterExecutor(jobType string, executor Executor) error {
	if jobType == "" {
		return domain.ErrEmptyJobType
	}
	if executor == nil {
		return ErrNilExecutor
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.executors[jobType] = executor
	return nil
}

// Enqueue inserts a pending job without deduplication. Used where
// duplicate jobs are tolerable.
func (q *Queue) Enqueue(
	ctx context.Context,
	jobType string,
	entityID, ownerID uuid.UUID,
	payload []byte,
	priority int,
) (uuid.UUID, error) {
	job, err := domain.NewJob(jobType, entityID, ownerID, payload, priority)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build job: %w", err)
	}
	if err := q.jobs.Insert(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// EnqueueWithResult inserts a pending job unless an active job with the
// same (jobType, entityID) already exists, in which case the existing
// job's ID is returned with Deduplicated set and nothing is inserted.
func (q *Queue) EnqueueWithResult(
	ctx context.Context,
	jobType string,
	entityID, ownerID uuid.UUID,
	payload []byte,
	priority int,
) (store.DedupResult, error) {
	job, err := domain.NewJob(jobType, entityID, ownerID, payload, priority)
	if err != nil {
		return store.DedupResult{}, fmt.Errorf("failed to build job: %w", err)
	}
	result, err := q.jobs.InsertDeduplicated(ctx, job)
	if err != nil {
		return store.DedupResult{}, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return result, nil
}

// DequeueNext claims the highest-priority pending job and transitions it
// to processing. Returns store.ErrJobNotFound when the queue is empty.
func (q *Queue) DequeueNext(ctx context.Context) (*domain.Job, error) {
	return q.jobs.DequeueNext(ctx)
}

// Complete transitions a processing job to completed.
func (q *Queue) Complete(ctx context.Context, jobID uuid.UUID) error {
	return q.jobs.MarkCompleted(ctx, jobID)
}

// Fail records a failure on the job. A retryable failure within the retry
// budget requeues the job as pending; otherwise the job fails terminally.
func (q *Queue) Fail(ctx context.Context, job *domain.Job, message string, retryable bool) error {
	job.AppendError(message, retryable)
	job.RetryCount++

	status := domain.JobStatusFailed
	if retryable && job.RetryCount < q.maxRetries {
		status = domain.JobStatusPending
	}

	if err := q.jobs.MarkFailed(ctx, job.ID, status, job.RetryCount, job.ErrorHistory); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	job.Status = status
	return nil
}

// Drain synchronously pulls and processes up to maxJobs jobs inline.
// maxJobs <= 0 is a no-op. If another drain in this process holds the
// lock, the call skips instead of blocking; the jobs stay queued for the
// next drain or the background runner.
func (q *Queue) Drain(ctx context.Context, maxJobs int) (DrainStats, error) {
	var stats DrainStats
	if maxJobs <= 0 {
		return stats, nil
	}

	if !q.drainMu.TryLock() {
		stats.Skipped = true
		return stats, nil
	}
	defer q.drainMu.Unlock()

	for i := 0; i < maxJobs; i++ {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		job, err := q.jobs.DequeueNext(ctx)
		if errors.Is(err, store.ErrJobNotFound) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to dequeue job: %w", err)
		}

		stats.Processed++
		if q.Process(ctx, job) {
			stats.Completed++
		} else {
			stats.Failed++
		}
	}

	return stats, nil
}

// TryDrainAsync triggers a drain in the background, detached from the
// request context so an early client disconnect cannot abandon a
// processing job. Errors are logged, never surfaced to the request.
func (q *Queue) TryDrainAsync(ctx context.Context, maxJobs int) {
	log := logger.FromContext(ctx)
	detached := context.WithoutCancel(ctx)

	go func() {
		stats, err := q.Drain(detached, maxJobs)
		if err != nil {
			log.Error("inline drain failed", "error", err)
			return
		}
		if stats.Processed > 0 {
			log.Debug("inline drain finished",
				"processed", stats.Processed,
				"completed", stats.Completed,
				"failed", stats.Failed)
		}
	}()
}

// Process runs the registered executor for one already-dequeued job and
// records the terminal transition. Reports whether the job completed.
func (q *Queue) Process(ctx context.Context, job *domain.Job) bool {
	log := logger.FromContext(ctx)

	q.mu.RLock()
	executor, ok := q.executors[job.JobType]
	q.mu.RUnlock()

	if !ok {
		// A job type nothing can execute will never succeed; fail it
		// terminally rather than bouncing it through retries.
		if err := q.Fail(ctx, job, ErrNoExecutor.Error()+": "+job.JobType, false); err != nil {
			log.Error("failed to record missing-executor failure",
				"job_id", job.ID,
				"job_type", job.JobType,
				"error", err)
		}
		return false
	}

	if execErr := executor.Execute(ctx, job); execErr != nil {
		retryable := !IsTerminal(execErr)
		if err := q.Fail(ctx, job, execErr.Error(), retryable); err != nil {
			log.Error("failed to record job failure",
				"job_id", job.ID,
				"error", err)
		}
		return false
	}

	if err := q.Complete(ctx, job.ID); err != nil {
		log.Error("failed to mark job completed",
			"job_id", job.ID,
			"error", err)
		return false
	}
	return true
}
