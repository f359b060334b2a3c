package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// PostgresAttemptStore implements the store.AttemptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAttemptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttemptStore creates a new PostgreSQL implementation of the
// AttemptStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller. If logger is nil,
// a default logger will be used.
func NewPostgresAttemptStore(db store.DBTX, logger *slog.Logger) *PostgresAttemptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAttemptStore{
		db:     db,
		logger: logger.With(slog.String("component", "attempt_store")),
	}
}

// Ensure PostgresAttemptStore implements store.AttemptStore interface
var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// WithTx implements store.AttemptStore.WithTx
func (s *PostgresAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore {
	return &PostgresAttemptStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.AttemptStore.Create
func (s *PostgresAttemptStore) Create(ctx context.Context, attempt *domain.GenerationAttempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attempt.Validate(); err != nil {
		log.Warn("attempt validation failed during create",
			slog.String("error", err.Error()),
			slog.String("attempt_id", attempt.ID.String()))
		return err
	}

	metadata, err := json.Marshal(attempt.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt metadata: %w", err)
	}

	query := `
		INSERT INTO generation_attempts (id, plan_id, status, classification,
			duration_ms, modules_count, tasks_count, truncated_topic,
			truncated_notes, normalized_effort, timed_out, prompt_hash,
			metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		attempt.ID,
		attempt.PlanID,
		attempt.Status,
		attempt.Classification,
		attempt.DurationMs,
		attempt.ModulesCount,
		attempt.TasksCount,
		attempt.TruncatedTopic,
		attempt.TruncatedNotes,
		attempt.NormalizedEffort,
		attempt.TimedOut,
		attempt.PromptHash,
		metadata,
		attempt.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: plan with ID %s not found",
				store.ErrInvalidEntity, attempt.PlanID)
		}
		log.Error("failed to create generation attempt",
			slog.String("error", err.Error()),
			slog.String("attempt_id", attempt.ID.String()),
			slog.String("plan_id", attempt.PlanID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.AttemptStore.GetByID
func (s *PostgresAttemptStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationAttempt, error) {
	query := `
		SELECT id, plan_id, status, classification, duration_ms, modules_count,
			tasks_count, truncated_topic, truncated_notes, normalized_effort,
			timed_out, prompt_hash, metadata, created_at
		FROM generation_attempts
		WHERE id = $1
	`

	var attempt domain.GenerationAttempt
	var classification sql.NullString
	var metadata []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&attempt.ID,
		&attempt.PlanID,
		&attempt.Status,
		&classification,
		&attempt.DurationMs,
		&attempt.ModulesCount,
		&attempt.TasksCount,
		&attempt.TruncatedTopic,
		&attempt.TruncatedNotes,
		&attempt.NormalizedEffort,
		&attempt.TimedOut,
		&attempt.PromptHash,
		&metadata,
		&attempt.CreatedAt,
	)
	if err != nil {
		if IsNotFoundError(MapError(err)) {
			return nil, store.ErrAttemptNotFound
		}
		return nil, MapError(err)
	}

	if classification.Valid {
		c := domain.FailureClassification(classification.String)
		attempt.Classification = &c
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &attempt.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempt metadata: %w", err)
		}
	}

	return &attempt, nil
}

// CountForPlan implements store.AttemptStore.CountForPlan
func (s *PostgresAttemptStore) CountForPlan(ctx context.Context, planID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM generation_attempts WHERE plan_id = $1`
	return s.scanCount(ctx, query, planID)
}

// CountModuleless implements store.AttemptStore.CountModuleless
//
// In-progress attempts are excluded: they have not produced anything yet
// and must not consume the attempt cap while still running.
func (s *PostgresAttemptStore) CountModuleless(ctx context.Context, planID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM generation_attempts
		WHERE plan_id = $1 AND status <> $2 AND modules_count = 0
	`
	return s.scanCount(ctx, query, planID, domain.AttemptStatusInProgress)
}

// HasInProgress implements store.AttemptStore.HasInProgress
func (s *PostgresAttemptStore) HasInProgress(ctx context.Context, planID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM generation_attempts
			WHERE plan_id = $1 AND status = $2
		)
	`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, planID, domain.AttemptStatusInProgress).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// CountUserAttemptsSince implements store.AttemptStore.CountUserAttemptsSince
func (s *PostgresAttemptStore) CountUserAttemptsSince(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM generation_attempts a
		JOIN plans p ON p.id = a.plan_id
		WHERE p.user_id = $1 AND a.created_at >= $2
	`
	return s.scanCount(ctx, query, userID, since.UTC())
}

// OldestUserAttemptSince implements store.AttemptStore.OldestUserAttemptSince
func (s *PostgresAttemptStore) OldestUserAttemptSince(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
) (time.Time, error) {
	query := `
		SELECT a.created_at
		FROM generation_attempts a
		JOIN plans p ON p.id = a.plan_id
		WHERE p.user_id = $1 AND a.created_at >= $2
		ORDER BY a.created_at ASC
		LIMIT 1
	`

	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, query, userID, since.UTC()).Scan(&createdAt)
	if err != nil {
		if IsNotFoundError(MapError(err)) {
			return time.Time{}, store.ErrAttemptNotFound
		}
		return time.Time{}, MapError(err)
	}
	return createdAt, nil
}

// FinalizeSuccess implements store.AttemptStore.FinalizeSuccess
//
// The status guard in the WHERE clause makes finalization single-shot: a
// second finalize of the same attempt matches no row and reports
// store.ErrAttemptNotFound instead of silently overwriting the terminal
// state.
func (s *PostgresAttemptStore) FinalizeSuccess(
	ctx context.Context,
	id uuid.UUID,
	update store.AttemptSuccessUpdate,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	metadata, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt metadata: %w", err)
	}

	query := `
		UPDATE generation_attempts
		SET status = $1, duration_ms = $2, modules_count = $3, tasks_count = $4,
			normalized_effort = $5, metadata = $6
		WHERE id = $7 AND status = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.AttemptStatusSuccess,
		update.DurationMs,
		update.ModulesCount,
		update.TasksCount,
		update.NormalizedEffort,
		metadata,
		id,
		domain.AttemptStatusInProgress,
	)
	if err != nil {
		log.Error("failed to finalize attempt as success",
			slog.String("error", err.Error()),
			slog.String("attempt_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrAttemptNotFound)
}

// FinalizeFailure implements store.AttemptStore.FinalizeFailure
func (s *PostgresAttemptStore) FinalizeFailure(
	ctx context.Context,
	id uuid.UUID,
	update store.AttemptFailureUpdate,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	metadata, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt metadata: %w", err)
	}

	query := `
		UPDATE generation_attempts
		SET status = $1, classification = $2, duration_ms = $3, timed_out = $4,
			metadata = $5
		WHERE id = $6 AND status = $7
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.AttemptStatusFailure,
		update.Classification,
		update.DurationMs,
		update.TimedOut,
		metadata,
		id,
		domain.AttemptStatusInProgress,
	)
	if err != nil {
		log.Error("failed to finalize attempt as failure",
			slog.String("error", err.Error()),
			slog.String("attempt_id", id.String()),
			slog.String("classification", string(update.Classification)))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrAttemptNotFound)
}

func (s *PostgresAttemptStore) scanCount(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, MapError(err)
	}
	return count, nil
}
