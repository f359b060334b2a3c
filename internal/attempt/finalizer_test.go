package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

type finalizerFixture struct {
	finalizer *Finalizer
	plans     *fakePlanStore
	attempts  *fakeAttemptStore
	content   *fakeContentStore
	plan      *domain.Plan
	attemptID uuid.UUID
}

func newFinalizerFixture(t *testing.T, attemptCap int) *finalizerFixture {
	t.Helper()

	plans := newFakePlanStore()
	attempts := newFakeAttemptStore()
	content := newFakeContentStore()
	runner := &serialTxRunner{}

	userID := uuid.New()
	plan, err := domain.NewPlan(userID, "Learn Go", "", domain.SkillLevelBeginner, 5, domain.LearningStyleMixed)
	require.NoError(t, err)
	plans.put(plan)
	attempts.owners[plan.ID] = userID

	record, err := domain.NewGenerationAttempt(plan.ID, "hash", false, false)
	require.NoError(t, err)
	require.NoError(t, attempts.Create(context.Background(), record))

	if attemptCap <= 0 {
		attemptCap = domain.DefaultAttemptCap
	}

	return &finalizerFixture{
		finalizer: &Finalizer{
			runTx:      runner.run,
			plans:      plans,
			attempts:   attempts,
			content:    content,
			attemptCap: attemptCap,
			now:        time.Now,
		},
		plans:     plans,
		attempts:  attempts,
		content:   content,
		plan:      plan,
		attemptID: record.ID,
	}
}

func sampleOutline() *generation.PlanOutline {
	return &generation.PlanOutline{
		Model: "gemini-2.0-flash",
		Modules: []generation.ModuleOutline{
			{
				Title:            "Basics",
				EstimatedMinutes: 120,
				Tasks: []generation.TaskOutline{
					{Title: "Install the toolchain", EstimatedMinutes: 30},
					{Title: "Write hello world", EstimatedMinutes: 20},
				},
			},
			{
				Title:            "Concurrency",
				EstimatedMinutes: 1000,
				Tasks: []generation.TaskOutline{
					{Title: "Goroutines and channels", EstimatedMinutes: 90},
				},
			},
		},
	}
}

func TestFinalizeSuccess(t *testing.T) {
	t.Parallel()

	t.Run("replaces content and marks the plan ready", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 0)
		ctx := context.Background()

		// Stale content from an earlier success that must be replaced.
		staleModule, _, err := domain.NewModule(f.plan.ID, 0, "Stale", "", 60)
		require.NoError(t, err)
		_, err = f.content.InsertModules(ctx, []*domain.Module{staleModule})
		require.NoError(t, err)

		meta := domain.AttemptMetadata{Provider: "gemini", Model: "gemini-2.0-flash"}
		require.NoError(t, f.finalizer.FinalizeSuccess(ctx, f.attemptID, f.plan.ID, sampleOutline(), 1500, meta))

		modules, err := f.content.ListModules(ctx, f.plan.ID)
		require.NoError(t, err)
		require.Len(t, modules, 2)
		assert.Equal(t, "Basics", modules[0].Title)
		assert.Equal(t, domain.ModuleMinutesMax, modules[1].EstimatedMinutes, "oversized estimate must be clamped")

		tasks, err := f.content.ListTasks(ctx, f.plan.ID)
		require.NoError(t, err)
		assert.Len(t, tasks, 3)

		attempt, err := f.attempts.GetByID(ctx, f.attemptID)
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptStatusSuccess, attempt.Status)
		assert.Equal(t, 2, attempt.ModulesCount)
		assert.Equal(t, 3, attempt.TasksCount)
		assert.True(t, attempt.NormalizedEffort)
		assert.Equal(t, int64(1500), attempt.DurationMs)
		assert.Equal(t, "gemini", attempt.Metadata.Provider)

		plan, err := f.plans.GetByID(ctx, f.plan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStatusReady, plan.Status)
		assert.True(t, plan.IsQuotaEligible)
		require.NotNil(t, plan.FinalizedAt)
	})

	t.Run("no clamping leaves the normalized flag unset", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 0)
		outline := &generation.PlanOutline{Modules: []generation.ModuleOutline{
			{Title: "Basics", EstimatedMinutes: 200, Tasks: []generation.TaskOutline{
				{Title: "Read the tour", EstimatedMinutes: 60},
			}},
		}}

		require.NoError(t, f.finalizer.FinalizeSuccess(context.Background(), f.attemptID, f.plan.ID, outline, 900, domain.AttemptMetadata{}))

		attempt, err := f.attempts.GetByID(context.Background(), f.attemptID)
		require.NoError(t, err)
		assert.False(t, attempt.NormalizedEffort)
	})

	t.Run("insert count mismatch aborts finalization", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 0)
		f.content.moduleShortfall = 1

		err := f.finalizer.FinalizeSuccess(context.Background(), f.attemptID, f.plan.ID, sampleOutline(), 1500, domain.AttemptMetadata{})
		require.ErrorIs(t, err, store.ErrInsertCountMismatch)

		attempt, getErr := f.attempts.GetByID(context.Background(), f.attemptID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.AttemptStatusInProgress, attempt.Status, "attempt must not reach success when the transaction aborts")

		plan, getErr := f.plans.GetByID(context.Background(), f.plan.ID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.GenerationStatusGenerating, plan.Status)
	})

	t.Run("empty outline is refused", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 0)

		err := f.finalizer.FinalizeSuccess(context.Background(), f.attemptID, f.plan.ID, &generation.PlanOutline{}, 100, domain.AttemptMetadata{})
		assert.ErrorIs(t, err, ErrEmptyOutline)
	})
}

func TestFinalizeFailure(t *testing.T) {
	t.Parallel()

	retryable := generation.Outcome{
		Classification: domain.FailureProviderError,
		Retryable:      true,
	}
	terminal := generation.Outcome{
		Classification: domain.FailureProviderError,
		Retryable:      false,
	}

	t.Run("retryable failure under the cap keeps the plan generating", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 3)

		require.NoError(t, f.finalizer.FinalizeFailure(context.Background(), f.attemptID, f.plan.ID, retryable, "upstream 503", 800, domain.AttemptMetadata{}))

		attempt, err := f.attempts.GetByID(context.Background(), f.attemptID)
		require.NoError(t, err)
		assert.Equal(t, domain.AttemptStatusFailure, attempt.Status)
		require.NotNil(t, attempt.Classification)
		assert.Equal(t, domain.FailureProviderError, *attempt.Classification)
		assert.Equal(t, "upstream 503", attempt.Metadata.FailureDetail)

		plan, err := f.plans.GetByID(context.Background(), f.plan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStatusGenerating, plan.Status)
	})

	t.Run("terminal failure fails the plan", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 3)

		require.NoError(t, f.finalizer.FinalizeFailure(context.Background(), f.attemptID, f.plan.ID, terminal, "bad request", 200, domain.AttemptMetadata{}))

		plan, err := f.plans.GetByID(context.Background(), f.plan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStatusFailed, plan.Status)
	})

	t.Run("retryable failure that reaches the cap fails the plan", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 3)
		old := time.Now().UTC().Add(-time.Hour)
		for i := 0; i < 2; i++ {
			record, err := domain.NewGenerationAttempt(f.plan.ID, "hash", false, false)
			require.NoError(t, err)
			record.Status = domain.AttemptStatusFailure
			record.CreatedAt = old
			f.attempts.seedAttempt(record)
		}

		require.NoError(t, f.finalizer.FinalizeFailure(context.Background(), f.attemptID, f.plan.ID, retryable, "upstream 503", 800, domain.AttemptMetadata{}))

		plan, err := f.plans.GetByID(context.Background(), f.plan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStatusFailed, plan.Status)
	})

	t.Run("timeout flag is persisted", func(t *testing.T) {
		t.Parallel()

		f := newFinalizerFixture(t, 3)
		outcome := generation.Outcome{
			Classification: domain.FailureTimeout,
			Retryable:      true,
			TimedOut:       true,
		}

		require.NoError(t, f.finalizer.FinalizeFailure(context.Background(), f.attemptID, f.plan.ID, outcome, "deadline exceeded", 30000, domain.AttemptMetadata{UsedExtendedTimeout: true}))

		attempt, err := f.attempts.GetByID(context.Background(), f.attemptID)
		require.NoError(t, err)
		assert.True(t, attempt.TimedOut)
		assert.True(t, attempt.Metadata.UsedExtendedTimeout)
	})
}
