package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

const jobColumns = `id, job_type, entity_id, owner_id, payload, priority,
	status, error_history, retry_count, created_at, updated_at`

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface. It accepts a database connection that should be
// initialized and managed by the caller. If logger is nil, a default
// logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// Insert implements store.JobStore.Insert
func (s *PostgresJobStore) Insert(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		return err
	}

	history, err := json.Marshal(job.ErrorHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal job error history: %w", err)
	}

	query := `
		INSERT INTO jobs (id, job_type, entity_id, owner_id, payload, priority,
			status, error_history, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.JobType,
		job.EntityID,
		job.OwnerID,
		job.Payload,
		job.Priority,
		job.Status,
		history,
		job.RetryCount,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.JobType))
		return MapError(err)
	}

	return nil
}

// InsertDeduplicated implements store.JobStore.InsertDeduplicated
//
// Deduplication is enforced by a partial unique index on
// (job_type, entity_id) over active jobs. The insert uses ON CONFLICT
// DO NOTHING against that index; when the insert is suppressed, the ID of
// the existing active job is looked up and returned instead. The existing
// job can complete between the suppressed insert and the lookup, so the
// pair is retried once before giving up.
func (s *PostgresJobStore) InsertDeduplicated(
	ctx context.Context,
	job *domain.Job,
) (store.DedupResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		return store.DedupResult{}, err
	}

	history, err := json.Marshal(job.ErrorHistory)
	if err != nil {
		return store.DedupResult{}, fmt.Errorf("failed to marshal job error history: %w", err)
	}

	insert := `
		INSERT INTO jobs (id, job_type, entity_id, owner_id, payload, priority,
			status, error_history, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_type, entity_id) WHERE status IN ('pending', 'processing')
		DO NOTHING
	`
	lookup := `
		SELECT id FROM jobs
		WHERE job_type = $1 AND entity_id = $2 AND status IN ('pending', 'processing')
		LIMIT 1
	`

	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.db.ExecContext(
			ctx,
			insert,
			job.ID,
			job.JobType,
			job.EntityID,
			job.OwnerID,
			job.Payload,
			job.Priority,
			job.Status,
			history,
			job.RetryCount,
			job.CreatedAt,
			job.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to insert deduplicated job",
				slog.String("error", err.Error()),
				slog.String("job_type", job.JobType),
				slog.String("entity_id", job.EntityID.String()))
			return store.DedupResult{}, MapError(err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return store.DedupResult{}, MapError(err)
		}
		if rows > 0 {
			return store.DedupResult{ID: job.ID}, nil
		}

		var existingID uuid.UUID
		err = s.db.QueryRowContext(ctx, lookup, job.JobType, job.EntityID).Scan(&existingID)
		if err == nil {
			return store.DedupResult{ID: existingID, Deduplicated: true}, nil
		}
		if !IsNotFoundError(MapError(err)) {
			return store.DedupResult{}, MapError(err)
		}
		// The conflicting job finished between insert and lookup.
	}

	return store.DedupResult{}, fmt.Errorf(
		"deduplicated insert for job type %q entity %s did not converge",
		job.JobType, job.EntityID)
}

// DequeueNext implements store.JobStore.DequeueNext
//
// SKIP LOCKED keeps concurrent workers from blocking on each other's
// candidate row; each worker claims a distinct job or sees an empty queue.
func (s *PostgresJobStore) DequeueNext(ctx context.Context) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $3
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	row := s.db.QueryRowContext(
		ctx,
		query,
		domain.JobStatusProcessing,
		time.Now().UTC(),
		domain.JobStatusPending,
	)

	job, err := scanJob(row)
	if err != nil {
		if IsNotFoundError(MapError(err)) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return job, nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if IsNotFoundError(MapError(err)) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}
	return job, nil
}

// MarkCompleted implements store.JobStore.MarkCompleted
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.JobStatusCompleted,
		time.Now().UTC(),
		id,
		domain.JobStatusProcessing,
	)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

// MarkFailed implements store.JobStore.MarkFailed
func (s *PostgresJobStore) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	retryCount int,
	errorHistory []domain.JobError,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	history, err := json.Marshal(errorHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal job error history: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $1, retry_count = $2, error_history = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		status,
		retryCount,
		history,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to mark job failed",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrJobNotFound)
}

// ResetStuck implements store.JobStore.ResetStuck
func (s *PostgresJobStore) ResetStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	query := `
		UPDATE jobs
		SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.JobStatusPending,
		now,
		domain.JobStatusProcessing,
		now.Add(-olderThan),
	)
	if err != nil {
		return 0, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	if rows > 0 {
		log.Warn("requeued stuck jobs",
			slog.Int64("count", rows),
			slog.Duration("older_than", olderThan))
	}
	return int(rows), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var history []byte

	err := row.Scan(
		&job.ID,
		&job.JobType,
		&job.EntityID,
		&job.OwnerID,
		&job.Payload,
		&job.Priority,
		&job.Status,
		&history,
		&job.RetryCount,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &job.ErrorHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job error history: %w", err)
		}
	}
	return &job, nil
}
