package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// PlanStore defines the persistence interface for plans.
type PlanStore interface {
	// Create saves a new plan.
	Create(ctx context.Context, plan *domain.Plan) error

	// GetByID retrieves a plan by its unique ID.
	// Returns ErrPlanNotFound if the plan does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)

	// GetForUpdate retrieves a plan with a row lock (SELECT ... FOR UPDATE).
	// Must be called inside a transaction; the lock serializes concurrent
	// reservations for the same plan.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Plan, error)

	// UpdateStatus sets the plan's generation status.
	// Returns ErrPlanNotFound if the plan does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GenerationStatus) error

	// UpdateParameters rewrites the plan's generation inputs (topic, notes,
	// skill level, weekly hours, learning style).
	// Returns ErrPlanNotFound if the plan does not exist.
	UpdateParameters(ctx context.Context, plan *domain.Plan) error

	// MarkReady transitions the plan to ready, marks it quota-eligible and
	// stamps the finalization time.
	MarkReady(ctx context.Context, id uuid.UUID, finalizedAt time.Time) error

	// WithTx returns a PlanStore bound to the given transaction.
	WithTx(tx *sql.Tx) PlanStore
}
