package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// RejectionReason identifies why a reservation was refused.
type RejectionReason string

// Possible rejection reasons
const (
	RejectionCapped        RejectionReason = "capped"
	RejectionInProgress    RejectionReason = "in_progress"
	RejectionInvalidStatus RejectionReason = "invalid_status"
	RejectionRateLimited   RejectionReason = "rate_limited"
)

// Rejection is returned when a reservation's preconditions fail. It
// implements error so it flows through transactional plumbing, and callers
// unwrap it with errors.As to read the reason.
type Rejection struct {
	Reason RejectionReason
	PlanID uuid.UUID

	// RetryAfter is set only for rate_limited rejections.
	RetryAfter time.Duration
}

// Error implements the error interface. Rejections raised before a plan
// is in scope carry no plan ID and omit it from the message.
func (r *Rejection) Error() string {
	if r.PlanID == uuid.Nil {
		return fmt.Sprintf("reservation rejected: %s", r.Reason)
	}
	return fmt.Sprintf("reservation rejected: %s (plan %s)", r.Reason, r.PlanID)
}

// Reservation is the value object returned on a successful reservation.
// Input holds the sanitized snapshot that will be handed to the generator;
// raw user input never travels past this point.
type Reservation struct {
	AttemptID     uuid.UUID
	PlanID        uuid.UUID
	AttemptNumber int
	StartedAt     time.Time
	Input         generation.Input
	PromptHash    string
	TruncTopic    bool
	TruncNotes    bool
}

// ReservationParams bounds the reservation checks. Zero values fall back
// to the defaults.
type ReservationParams struct {
	AttemptCap       int
	RateLimitWindow  time.Duration
	RateLimitCeiling int
	TopicMaxLen      int
	NotesMaxLen      int
}

// Reservation defaults
const (
	DefaultRateLimitWindow  = time.Hour
	DefaultRateLimitCeiling = 10
)

func (p ReservationParams) withDefaults() ReservationParams {
	if p.AttemptCap <= 0 {
		p.AttemptCap = domain.DefaultAttemptCap
	}
	if p.RateLimitWindow <= 0 {
		p.RateLimitWindow = DefaultRateLimitWindow
	}
	if p.RateLimitCeiling <= 0 {
		p.RateLimitCeiling = DefaultRateLimitCeiling
	}
	return p
}

// ReservationManager reserves in-progress attempts. All precondition
// checks and the attempt insert happen inside one transaction with the
// plan row locked, so concurrent reservations for the same plan serialize
// at the database.
type ReservationManager struct {
	db       *sql.DB
	runTx    store.TxRunner
	plans    store.PlanStore
	attempts store.AttemptStore
	params   ReservationParams
	now      func() time.Time
}

// Manager construction errors
var (
	ErrNilDB           = errors.New("database cannot be nil")
	ErrNilPlanStore    = errors.New("plan store cannot be nil")
	ErrNilAttemptStore = errors.New("attempt store cannot be nil")
	ErrNilContentStore = errors.New("content store cannot be nil")
)

// NewReservationManager creates a ReservationManager.
func NewReservationManager(
	db *sql.DB,
	plans store.PlanStore,
	attempts store.AttemptStore,
	params ReservationParams,
) (*ReservationManager, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if plans == nil {
		return nil, ErrNilPlanStore
	}
	if attempts == nil {
		return nil, ErrNilAttemptStore
	}

	return &ReservationManager{
		db:       db,
		runTx:    store.RunInTransaction,
		plans:    plans,
		attempts: attempts,
		params:   params.withDefaults(),
		now:      time.Now,
	}, nil
}

// Reserve validates the plan's state against the caller-specified allowed
// status set, enforces the attempt cap, the single-flight rule and the
// durable rate limit, then inserts an in-progress attempt. Precondition
// checks run in a fixed order and the first failure wins.
//
// The plan moves to generating in the same transaction as the attempt
// insert, so by the time the reservation is visible to workers the plan
// status already reflects it. No status write happens on rejection.
//
// Returns *Rejection (as error) when a precondition fails,
// store.ErrPlanNotFound when the plan does not exist or is not owned by
// the user, or another error for infrastructure failures.
func (m *ReservationManager) Reserve(
	ctx context.Context,
	planID, userID uuid.UUID,
	input generation.Input,
	allowedStatuses []domain.GenerationStatus,
) (*Reservation, error) {
	log := logger.FromContext(ctx)

	sanitized, truncTopic, truncNotes, promptHash := SanitizeInput(
		input, m.params.TopicMaxLen, m.params.NotesMaxLen)

	var reservation *Reservation

	err := m.runTx(ctx, m.db, func(ctx context.Context, tx *sql.Tx) error {
		plans := m.plans.WithTx(tx)
		attempts := m.attempts.WithTx(tx)

		plan, err := plans.GetForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		// Ownership failures look identical to missing plans so the API
		// never confirms another user's plan exists.
		if plan.UserID != userID {
			return fmt.Errorf("%w: plan", store.ErrNotFound)
		}

		if !statusAllowed(plan.Status, allowedStatuses) {
			return &Rejection{Reason: RejectionInvalidStatus, PlanID: planID}
		}

		moduleless, err := attempts.CountModuleless(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to count moduleless attempts: %w", err)
		}
		if moduleless >= m.params.AttemptCap {
			return &Rejection{Reason: RejectionCapped, PlanID: planID}
		}

		inProgress, err := attempts.HasInProgress(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to check for in-progress attempt: %w", err)
		}
		if inProgress {
			return &Rejection{Reason: RejectionInProgress, PlanID: planID}
		}

		if rej := m.checkRateLimit(ctx, attempts, userID, planID, log); rej != nil {
			return rej
		}

		total, err := attempts.CountForPlan(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}

		record, err := domain.NewGenerationAttempt(planID, promptHash, truncTopic, truncNotes)
		if err != nil {
			return fmt.Errorf("failed to build attempt: %w", err)
		}
		if err := attempts.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		if plan.Status != domain.GenerationStatusGenerating {
			if err := plans.UpdateStatus(ctx, planID, domain.GenerationStatusGenerating); err != nil {
				return fmt.Errorf("failed to update plan status: %w", err)
			}
		}

		reservation = &Reservation{
			AttemptID:     record.ID,
			PlanID:        planID,
			AttemptNumber: total + 1,
			StartedAt:     record.CreatedAt,
			Input:         sanitized,
			PromptHash:    promptHash,
			TruncTopic:    truncTopic,
			TruncNotes:    truncNotes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

// checkRateLimit enforces the durable sliding-window limit on the user's
// attempts across all plans. A failing count query denies the request
// rather than allowing unbounded generation during a database outage.
func (m *ReservationManager) checkRateLimit(
	ctx context.Context,
	attempts store.AttemptStore,
	userID, planID uuid.UUID,
	log *slog.Logger,
) *Rejection {
	windowStart := m.now().Add(-m.params.RateLimitWindow)

	count, err := attempts.CountUserAttemptsSince(ctx, userID, windowStart)
	if err != nil {
		log.Warn("rate limit count query failed, failing closed",
			"user_id", userID,
			"plan_id", planID,
			"error", err)
		return &Rejection{
			Reason:     RejectionRateLimited,
			PlanID:     planID,
			RetryAfter: m.params.RateLimitWindow,
		}
	}
	if count < m.params.RateLimitCeiling {
		return nil
	}

	retryAfter := m.params.RateLimitWindow
	if oldest, err := attempts.OldestUserAttemptSince(ctx, userID, windowStart); err == nil {
		if until := oldest.Add(m.params.RateLimitWindow).Sub(m.now()); until > 0 {
			retryAfter = until
		}
	}

	return &Rejection{
		Reason:     RejectionRateLimited,
		PlanID:     planID,
		RetryAfter: retryAfter,
	}
}

func statusAllowed(status domain.GenerationStatus, allowed []domain.GenerationStatus) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}
