package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// ErrEmptyOutline is returned by FinalizeSuccess when the generator
// produced no modules. Such a result must be finalized as a failure, not
// a success.
var ErrEmptyOutline = errors.New("generated outline contains no modules")

// Finalizer writes the terminal state of a generation attempt. A success
// replaces the plan's content and marks the plan ready inside a single
// transaction; a failure records the classification and fails the plan
// only when no further attempt is possible.
type Finalizer struct {
	db         *sql.DB
	runTx      store.TxRunner
	plans      store.PlanStore
	attempts   store.AttemptStore
	content    store.ContentStore
	attemptCap int
	now        func() time.Time
}

// NewFinalizer creates a Finalizer. attemptCap <= 0 falls back to the
// default cap.
func NewFinalizer(
	db *sql.DB,
	plans store.PlanStore,
	attempts store.AttemptStore,
	content store.ContentStore,
	attemptCap int,
) (*Finalizer, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if plans == nil {
		return nil, ErrNilPlanStore
	}
	if attempts == nil {
		return nil, ErrNilAttemptStore
	}
	if content == nil {
		return nil, ErrNilContentStore
	}
	if attemptCap <= 0 {
		attemptCap = domain.DefaultAttemptCap
	}

	return &Finalizer{
		db:         db,
		runTx:      store.RunInTransaction,
		plans:      plans,
		attempts:   attempts,
		content:    content,
		attemptCap: attemptCap,
		now:        time.Now,
	}, nil
}

// FinalizeSuccess normalizes the generated outline and, in one
// transaction, replaces the plan's content, transitions the attempt to
// success and the plan to ready. A mismatch between rows requested for
// insertion and rows actually inserted aborts the whole transaction; no
// partial plan content is ever visible.
func (f *Finalizer) FinalizeSuccess(
	ctx context.Context,
	attemptID, planID uuid.UUID,
	outline *generation.PlanOutline,
	durationMs int64,
	metadata domain.AttemptMetadata,
) error {
	if outline == nil || len(outline.Modules) == 0 {
		return ErrEmptyOutline
	}

	modules, tasks, normalized, err := normalizeOutline(planID, outline)
	if err != nil {
		return fmt.Errorf("failed to normalize outline: %w", err)
	}

	return f.runTx(ctx, f.db, func(ctx context.Context, tx *sql.Tx) error {
		content := f.content.WithTx(tx)

		if err := content.DeleteForPlan(ctx, planID); err != nil {
			return fmt.Errorf("failed to delete existing content: %w", err)
		}

		inserted, err := content.InsertModules(ctx, modules)
		if err != nil {
			return fmt.Errorf("failed to insert modules: %w", err)
		}
		if inserted != len(modules) {
			return fmt.Errorf("%w: modules requested %d, inserted %d",
				store.ErrInsertCountMismatch, len(modules), inserted)
		}

		inserted, err = content.InsertTasks(ctx, tasks)
		if err != nil {
			return fmt.Errorf("failed to insert tasks: %w", err)
		}
		if inserted != len(tasks) {
			return fmt.Errorf("%w: tasks requested %d, inserted %d",
				store.ErrInsertCountMismatch, len(tasks), inserted)
		}

		update := store.AttemptSuccessUpdate{
			DurationMs:       durationMs,
			ModulesCount:     len(modules),
			TasksCount:       len(tasks),
			NormalizedEffort: normalized,
			Metadata:         metadata,
		}
		if err := f.attempts.WithTx(tx).FinalizeSuccess(ctx, attemptID, update); err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}

		if err := f.plans.WithTx(tx).MarkReady(ctx, planID, f.now().UTC()); err != nil {
			return fmt.Errorf("failed to mark plan ready: %w", err)
		}

		return nil
	})
}

// FinalizeFailure records the attempt as failed with the given outcome.
// Plan content is untouched. The plan transitions to failed only when the
// failure is terminal or the attempt cap is now reached; a retryable
// failure within the cap leaves the plan eligible for another
// reservation.
func (f *Finalizer) FinalizeFailure(
	ctx context.Context,
	attemptID, planID uuid.UUID,
	outcome generation.Outcome,
	failureDetail string,
	durationMs int64,
	metadata domain.AttemptMetadata,
) error {
	log := logger.FromContext(ctx)
	metadata.FailureDetail = failureDetail

	return f.runTx(ctx, f.db, func(ctx context.Context, tx *sql.Tx) error {
		attempts := f.attempts.WithTx(tx)

		update := store.AttemptFailureUpdate{
			DurationMs:     durationMs,
			Classification: outcome.Classification,
			TimedOut:       outcome.TimedOut,
			Metadata:       metadata,
		}
		if err := attempts.FinalizeFailure(ctx, attemptID, update); err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}

		// The just-failed attempt is moduleless, so this count includes it.
		moduleless, err := attempts.CountModuleless(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to count moduleless attempts: %w", err)
		}

		if !outcome.Retryable || moduleless >= f.attemptCap {
			if err := f.plans.WithTx(tx).UpdateStatus(ctx, planID, domain.GenerationStatusFailed); err != nil {
				return fmt.Errorf("failed to update plan status: %w", err)
			}
			log.Info("plan generation failed terminally",
				"plan_id", planID,
				"attempt_id", attemptID,
				"classification", outcome.Classification,
				"retryable", outcome.Retryable,
				"moduleless_attempts", moduleless)
		}

		return nil
	})
}

// normalizeOutline converts a generated outline into persistable modules
// and tasks, clamping every effort estimate into the domain bounds.
func normalizeOutline(
	planID uuid.UUID,
	outline *generation.PlanOutline,
) ([]*domain.Module, []*domain.Task, bool, error) {
	var (
		modules    []*domain.Module
		tasks      []*domain.Task
		normalized bool
	)

	for i, mo := range outline.Modules {
		module, clamped, err := domain.NewModule(planID, i, mo.Title, mo.Description, mo.EstimatedMinutes)
		if err != nil {
			return nil, nil, false, fmt.Errorf("module %d: %w", i, err)
		}
		normalized = normalized || clamped
		modules = append(modules, module)

		for j, to := range mo.Tasks {
			task, clamped, err := domain.NewTask(module.ID, j, to.Title, to.Description, to.EstimatedMinutes)
			if err != nil {
				return nil, nil, false, fmt.Errorf("module %d task %d: %w", i, j, err)
			}
			normalized = normalized || clamped
			tasks = append(tasks, task)
		}
	}

	return modules, tasks, normalized, nil
}
