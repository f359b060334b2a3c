package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// planColumns are the columns scanned into a domain.Plan, in scan order.
const planColumns = `id, user_id, topic, notes, skill_level, weekly_hours,
	learning_style, status, is_quota_eligible, finalized_at, created_at, updated_at`

// PostgresPlanStore implements the store.PlanStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPlanStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPlanStore creates a new PostgreSQL implementation of the
// PlanStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresPlanStore(db store.DBTX, logger *slog.Logger) *PostgresPlanStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPlanStore{
		db:     db,
		logger: logger.With(slog.String("component", "plan_store")),
	}
}

// Ensure PostgresPlanStore implements store.PlanStore interface
var _ store.PlanStore = (*PostgresPlanStore)(nil)

// WithTx implements store.PlanStore.WithTx
func (s *PostgresPlanStore) WithTx(tx *sql.Tx) store.PlanStore {
	return &PostgresPlanStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.PlanStore.Create
func (s *PostgresPlanStore) Create(ctx context.Context, plan *domain.Plan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := plan.Validate(); err != nil {
		log.Warn("plan validation failed during create",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()))
		return err
	}

	query := `
		INSERT INTO plans (id, user_id, topic, notes, skill_level, weekly_hours,
			learning_style, status, is_quota_eligible, finalized_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		plan.ID,
		plan.UserID,
		plan.Topic,
		plan.Notes,
		plan.SkillLevel,
		plan.WeeklyHours,
		plan.LearningStyle,
		plan.Status,
		plan.IsQuotaEligible,
		plan.FinalizedAt,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, plan.UserID)
		}
		log.Error("failed to create plan",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()))
		return MapError(err)
	}

	log.Debug("plan created",
		slog.String("plan_id", plan.ID.String()),
		slog.String("user_id", plan.UserID.String()))
	return nil
}

// GetByID implements store.PlanStore.GetByID
func (s *PostgresPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return s.scanPlan(ctx, query, id)
}

// GetForUpdate implements store.PlanStore.GetForUpdate
//
// The row lock serializes concurrent reservation transactions for the same
// plan: the second transaction blocks here until the first commits, so its
// in-progress check sees the first transaction's attempt row.
func (s *PostgresPlanStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 FOR UPDATE`
	return s.scanPlan(ctx, query, id)
}

func (s *PostgresPlanStore) scanPlan(
	ctx context.Context,
	query string,
	id uuid.UUID,
) (*domain.Plan, error) {
	var plan domain.Plan
	var finalizedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&plan.ID,
		&plan.UserID,
		&plan.Topic,
		&plan.Notes,
		&plan.SkillLevel,
		&plan.WeeklyHours,
		&plan.LearningStyle,
		&plan.Status,
		&plan.IsQuotaEligible,
		&finalizedAt,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(MapError(err)) {
			return nil, store.ErrPlanNotFound
		}
		return nil, MapError(err)
	}

	if finalizedAt.Valid {
		t := finalizedAt.Time
		plan.FinalizedAt = &t
	}
	return &plan, nil
}

// UpdateStatus implements store.PlanStore.UpdateStatus
func (s *PostgresPlanStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.GenerationStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE plans
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update plan status",
			slog.String("error", err.Error()),
			slog.String("plan_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrPlanNotFound)
}

// UpdateParameters implements store.PlanStore.UpdateParameters
func (s *PostgresPlanStore) UpdateParameters(ctx context.Context, plan *domain.Plan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := plan.Validate(); err != nil {
		log.Warn("plan validation failed during update",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()))
		return err
	}

	query := `
		UPDATE plans
		SET topic = $1, notes = $2, skill_level = $3, weekly_hours = $4,
			learning_style = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		plan.Topic,
		plan.Notes,
		plan.SkillLevel,
		plan.WeeklyHours,
		plan.LearningStyle,
		time.Now().UTC(),
		plan.ID,
	)
	if err != nil {
		log.Error("failed to update plan parameters",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrPlanNotFound)
}

// MarkReady implements store.PlanStore.MarkReady
func (s *PostgresPlanStore) MarkReady(ctx context.Context, id uuid.UUID, finalizedAt time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE plans
		SET status = $1, is_quota_eligible = TRUE, finalized_at = $2, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, domain.GenerationStatusReady, finalizedAt.UTC(), id)
	if err != nil {
		log.Error("failed to mark plan ready",
			slog.String("error", err.Error()),
			slog.String("plan_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrPlanNotFound)
}
