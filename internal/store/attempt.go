package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// AttemptSuccessUpdate carries the terminal fields written when an attempt
// succeeds.
type AttemptSuccessUpdate struct {
	DurationMs       int64
	ModulesCount     int
	TasksCount       int
	NormalizedEffort bool
	Metadata         domain.AttemptMetadata
}

// AttemptFailureUpdate carries the terminal fields written when an attempt
// fails.
type AttemptFailureUpdate struct {
	DurationMs     int64
	Classification domain.FailureClassification
	TimedOut       bool
	Metadata       domain.AttemptMetadata
}

// AttemptStore defines the persistence interface for generation attempts.
type AttemptStore interface {
	// Create inserts a new in-progress attempt row.
	Create(ctx context.Context, attempt *domain.GenerationAttempt) error

	// GetByID retrieves an attempt by its unique ID.
	// Returns ErrAttemptNotFound if the attempt does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationAttempt, error)

	// CountForPlan counts all attempts ever made for the plan.
	CountForPlan(ctx context.Context, planID uuid.UUID) (int, error)

	// CountModuleless counts the plan's attempts that produced no modules.
	// This is the count the attempt cap is enforced against.
	CountModuleless(ctx context.Context, planID uuid.UUID) (int, error)

	// HasInProgress reports whether the plan currently has an in-progress
	// attempt.
	HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error)

	// CountUserAttemptsSince counts attempts by the user across all plans
	// created at or after the given time. Backs the durable rate limiter.
	CountUserAttemptsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// OldestUserAttemptSince returns the creation time of the user's
	// oldest attempt inside the window, for retry-after computation.
	// Returns ErrAttemptNotFound if the window holds no attempts.
	OldestUserAttemptSince(ctx context.Context, userID uuid.UUID, since time.Time) (time.Time, error)

	// FinalizeSuccess transitions an in-progress attempt to success.
	// Returns ErrAttemptNotFound if no in-progress row matches.
	FinalizeSuccess(ctx context.Context, id uuid.UUID, update AttemptSuccessUpdate) error

	// FinalizeFailure transitions an in-progress attempt to failure.
	// Returns ErrAttemptNotFound if no in-progress row matches.
	FinalizeFailure(ctx context.Context, id uuid.UUID, update AttemptFailureUpdate) error

	// WithTx returns an AttemptStore bound to the given transaction.
	WithTx(tx *sql.Tx) AttemptStore
}
