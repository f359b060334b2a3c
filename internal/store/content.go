package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// ContentStore defines the persistence interface for plan content
// (modules and their tasks). Content is always replaced wholesale inside
// the finalization transaction, never merged.
type ContentStore interface {
	// DeleteForPlan removes all modules for the plan; tasks cascade.
	DeleteForPlan(ctx context.Context, planID uuid.UUID) error

	// InsertModules inserts modules in order and returns the number of
	// rows actually inserted. Callers compare the count against
	// len(modules) and abort the surrounding transaction on mismatch.
	InsertModules(ctx context.Context, modules []*domain.Module) (int, error)

	// InsertTasks inserts tasks in order and returns the number of rows
	// actually inserted.
	InsertTasks(ctx context.Context, tasks []*domain.Task) (int, error)

	// ListModules returns the plan's modules ordered by position.
	ListModules(ctx context.Context, planID uuid.UUID) ([]*domain.Module, error)

	// ListTasks returns all tasks for the plan's modules, ordered by
	// module position then task position.
	ListTasks(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error)

	// WithTx returns a ContentStore bound to the given transaction.
	WithTx(tx *sql.Tx) ContentStore
}
