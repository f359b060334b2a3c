package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/attempt"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/quota"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
	"github.com/saldanaj97/atlaris-sub007/internal/task"
)

// Reserver reserves in-progress generation attempts.
// Implemented by attempt.ReservationManager.
type Reserver interface {
	Reserve(
		ctx context.Context,
		planID, userID uuid.UUID,
		input generation.Input,
		allowedStatuses []domain.GenerationStatus,
	) (*attempt.Reservation, error)
}

// Finalizer writes terminal attempt states. Implemented by
// attempt.Finalizer.
type Finalizer interface {
	FinalizeSuccess(
		ctx context.Context,
		attemptID, planID uuid.UUID,
		outline *generation.PlanOutline,
		durationMs int64,
		metadata domain.AttemptMetadata,
	) error
	FinalizeFailure(
		ctx context.Context,
		attemptID, planID uuid.UUID,
		outcome generation.Outcome,
		failureDetail string,
		durationMs int64,
		metadata domain.AttemptMetadata,
	) error
}

// QuotaLedger charges and compensates quota usage. Implemented by
// quota.Ledger.
type QuotaLedger interface {
	CheckAndIncrement(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (quota.Decision, error)
	Compensate(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind)
}

// JobQueue is the enqueue-side surface of the job queue. Implemented by
// task.Queue.
type JobQueue interface {
	EnqueueWithResult(
		ctx context.Context,
		jobType string,
		entityID, ownerID uuid.UUID,
		payload []byte,
		priority int,
	) (store.DedupResult, error)
	TryDrainAsync(ctx context.Context, maxJobs int)
}

// Interface satisfaction checks for the concrete implementations.
var (
	_ Reserver    = (*attempt.ReservationManager)(nil)
	_ Finalizer   = (*attempt.Finalizer)(nil)
	_ QuotaLedger = (*quota.Ledger)(nil)
	_ JobQueue    = (*task.Queue)(nil)
)
