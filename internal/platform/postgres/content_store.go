package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// PostgresContentStore implements the store.ContentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a new PostgreSQL implementation of the
// ContentStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller. If logger is nil,
// a default logger will be used.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

// Ensure PostgresContentStore implements store.ContentStore interface
var _ store.ContentStore = (*PostgresContentStore)(nil)

// WithTx implements store.ContentStore.WithTx
func (s *PostgresContentStore) WithTx(tx *sql.Tx) store.ContentStore {
	return &PostgresContentStore{
		db:     tx,
		logger: s.logger,
	}
}

// DeleteForPlan implements store.ContentStore.DeleteForPlan
//
// Zero deleted rows is not an error here: a plan being finalized for the
// first time has no content to replace.
func (s *PostgresContentStore) DeleteForPlan(ctx context.Context, planID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM modules WHERE plan_id = $1`
	_, err := s.db.ExecContext(ctx, query, planID)
	if err != nil {
		log.Error("failed to delete plan content",
			slog.String("error", err.Error()),
			slog.String("plan_id", planID.String()))
		return MapError(err)
	}
	return nil
}

// InsertModules implements store.ContentStore.InsertModules
func (s *PostgresContentStore) InsertModules(ctx context.Context, modules []*domain.Module) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO modules (id, plan_id, position, title, description,
			estimated_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	inserted := 0
	for _, module := range modules {
		result, err := s.db.ExecContext(
			ctx,
			query,
			module.ID,
			module.PlanID,
			module.Position,
			module.Title,
			module.Description,
			module.EstimatedMinutes,
			module.CreatedAt,
		)
		if err != nil {
			log.Error("failed to insert module",
				slog.String("error", err.Error()),
				slog.String("module_id", module.ID.String()),
				slog.String("plan_id", module.PlanID.String()))
			return inserted, MapError(err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, MapError(err)
		}
		inserted += int(rows)
	}

	return inserted, nil
}

// InsertTasks implements store.ContentStore.InsertTasks
func (s *PostgresContentStore) InsertTasks(ctx context.Context, tasks []*domain.Task) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO tasks (id, module_id, position, title, description,
			estimated_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	inserted := 0
	for _, task := range tasks {
		result, err := s.db.ExecContext(
			ctx,
			query,
			task.ID,
			task.ModuleID,
			task.Position,
			task.Title,
			task.Description,
			task.EstimatedMinutes,
			task.CreatedAt,
		)
		if err != nil {
			log.Error("failed to insert task",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()),
				slog.String("module_id", task.ModuleID.String()))
			return inserted, MapError(err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, MapError(err)
		}
		inserted += int(rows)
	}

	return inserted, nil
}

// ListModules implements store.ContentStore.ListModules
func (s *PostgresContentStore) ListModules(ctx context.Context, planID uuid.UUID) ([]*domain.Module, error) {
	query := `
		SELECT id, plan_id, position, title, description, estimated_minutes, created_at
		FROM modules
		WHERE plan_id = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var modules []*domain.Module
	for rows.Next() {
		var module domain.Module
		if err := rows.Scan(
			&module.ID,
			&module.PlanID,
			&module.Position,
			&module.Title,
			&module.Description,
			&module.EstimatedMinutes,
			&module.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		modules = append(modules, &module)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return modules, nil
}

// ListTasks implements store.ContentStore.ListTasks
func (s *PostgresContentStore) ListTasks(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	query := `
		SELECT t.id, t.module_id, t.position, t.title, t.description,
			t.estimated_minutes, t.created_at
		FROM tasks t
		JOIN modules m ON m.id = t.module_id
		WHERE m.plan_id = $1
		ORDER BY m.position ASC, t.position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(
			&task.ID,
			&task.ModuleID,
			&task.Position,
			&task.Title,
			&task.Description,
			&task.EstimatedMinutes,
			&task.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}
