package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// PostgresQuotaStore implements the store.QuotaStore interface
// using a PostgreSQL database as the storage backend.
type PostgresQuotaStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQuotaStore creates a new PostgreSQL implementation of the
// QuotaStore interface. It accepts a database connection that should be
// initialized and managed by the caller. If logger is nil, a default
// logger will be used.
func NewPostgresQuotaStore(db store.DBTX, logger *slog.Logger) *PostgresQuotaStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresQuotaStore{
		db:     db,
		logger: logger.With(slog.String("component", "quota_store")),
	}
}

// Ensure PostgresQuotaStore implements store.QuotaStore interface
var _ store.QuotaStore = (*PostgresQuotaStore)(nil)

// CheckAndIncrement implements store.QuotaStore.CheckAndIncrement
//
// The check and the increment run as one statement so the cap holds under
// concurrency. The upsert inserts a counter at 1 for a fresh (user, kind,
// period) key; on conflict it increments only while the current value is
// below the cap. A denied increment updates no row, which the RETURNING
// clause surfaces as sql.ErrNoRows.
func (s *PostgresQuotaStore) CheckAndIncrement(
	ctx context.Context,
	userID uuid.UUID,
	kind domain.ResourceKind,
	periodStart time.Time,
	cap int,
) (bool, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO quota_usage (user_id, kind, period_start, used, updated_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, kind, period_start)
		DO UPDATE SET used = quota_usage.used + 1, updated_at = $4
		WHERE quota_usage.used < $5
		RETURNING used
	`

	var used int
	err := s.db.QueryRowContext(
		ctx,
		query,
		userID,
		kind,
		periodStart.UTC(),
		time.Now().UTC(),
		cap,
	).Scan(&used)
	if err != nil {
		if IsNotFoundError(MapError(err)) {
			// Increment refused: the counter is at or above the cap.
			return false, 0, nil
		}
		log.Error("quota check-and-increment failed",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("kind", string(kind)))
		return false, 0, MapError(err)
	}

	remaining := cap - used
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

// Decrement implements store.QuotaStore.Decrement
func (s *PostgresQuotaStore) Decrement(
	ctx context.Context,
	userID uuid.UUID,
	kind domain.ResourceKind,
	periodStart time.Time,
) error {
	query := `
		UPDATE quota_usage
		SET used = GREATEST(used - 1, 0), updated_at = $1
		WHERE user_id = $2 AND kind = $3 AND period_start = $4
	`
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), userID, kind, periodStart.UTC())
	if err != nil {
		return MapError(err)
	}
	return nil
}

// RecordReconciliation implements store.QuotaStore.RecordReconciliation
func (s *PostgresQuotaStore) RecordReconciliation(
	ctx context.Context,
	userID uuid.UUID,
	kind domain.ResourceKind,
	periodStart time.Time,
	reason string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO quota_reconciliation (id, user_id, kind, period_start, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		uuid.New(),
		userID,
		kind,
		periodStart.UTC(),
		reason,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to record quota reconciliation",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("kind", string(kind)))
		return MapError(err)
	}
	return nil
}
