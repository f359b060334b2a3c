package postgres_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/postgres"
	"github.com/saldanaj97/atlaris-sub007/internal/testdb"
)

func quotaPeriod() time.Time {
	return time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
}

func TestQuotaCheckAndIncrementDB(t *testing.T) {
	t.Parallel()

	testdb.WithTx(t, testDB, func(t *testing.T, tx *sql.Tx) {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		userID := insertTestUser(ctx, t, tx)
		quotaStore := postgres.NewPostgresQuotaStore(tx, nil)

		const cap = 3
		for want := cap - 1; want >= 0; want-- {
			allowed, remaining, err := quotaStore.CheckAndIncrement(
				ctx, userID, domain.ResourcePlanGeneration, quotaPeriod(), cap)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, want, remaining)
		}

		allowed, _, err := quotaStore.CheckAndIncrement(
			ctx, userID, domain.ResourcePlanGeneration, quotaPeriod(), cap)
		require.NoError(t, err)
		assert.False(t, allowed, "the counter at the cap must refuse further increments")

		// A compensating decrement frees exactly one slot.
		require.NoError(t, quotaStore.Decrement(ctx, userID, domain.ResourcePlanGeneration, quotaPeriod()))

		allowed, remaining, err := quotaStore.CheckAndIncrement(
			ctx, userID, domain.ResourcePlanGeneration, quotaPeriod(), cap)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Zero(t, remaining)
	})
}

func TestQuotaKindsAndPeriodsCountSeparately(t *testing.T) {
	t.Parallel()

	testdb.WithTx(t, testDB, func(t *testing.T, tx *sql.Tx) {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		userID := insertTestUser(ctx, t, tx)
		quotaStore := postgres.NewPostgresQuotaStore(tx, nil)

		allowed, _, err := quotaStore.CheckAndIncrement(
			ctx, userID, domain.ResourcePlanGeneration, quotaPeriod(), 1)
		require.NoError(t, err)
		require.True(t, allowed)

		// Same user, exhausted kind: refused.
		allowed, _, err = quotaStore.CheckAndIncrement(
			ctx, userID, domain.ResourcePlanGeneration, quotaPeriod(), 1)
		require.NoError(t, err)
		assert.False(t, allowed)

		// A different kind has its own counter.
		allowed, _, err = quotaStore.CheckAndIncrement(
			ctx, userID, domain.ResourceRegeneration, quotaPeriod(), 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		// So does the next period for the exhausted kind.
		nextPeriod := quotaPeriod().AddDate(0, 1, 0)
		allowed, _, err = quotaStore.CheckAndIncrement(
			ctx, userID, domain.ResourcePlanGeneration, nextPeriod, 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

// TestQuotaCheckAndIncrementConcurrentDB drives the upsert from many
// goroutines at once. The cap must hold exactly: concurrency cannot be
// simulated inside a single transaction, so this test commits real rows
// and cleans up after itself.
func TestQuotaCheckAndIncrementConcurrentDB(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userID := insertTestUser(ctx, t, testDB)
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			t.Logf("warning: failed to delete test user: %v", err)
		}
	})

	quotaStore := postgres.NewPostgresQuotaStore(testDB, nil)

	const (
		callers = 50
		cap     = 10
	)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		granted  int
		firstErr error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := quotaStore.CheckAndIncrement(
				ctx, userID, domain.ResourcePlanGeneration, quotaPeriod(), cap)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if allowed {
				granted++
			}
		}()
	}
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, cap, granted, "exactly cap increments may succeed")

	var used int
	err := testDB.QueryRowContext(ctx, `
		SELECT used FROM quota_usage
		WHERE user_id = $1 AND kind = $2 AND period_start = $3
	`, userID, domain.ResourcePlanGeneration, quotaPeriod()).Scan(&used)
	require.NoError(t, err)
	assert.Equal(t, cap, used, "the stored counter must stop at the cap")
}
