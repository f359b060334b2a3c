// Package quota implements the atomic quota ledger: per-user, per-resource
// usage counters with check-and-increment semantics and a compensating
// decrement protocol for deduplicated work.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/events"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// Common ledger errors
var (
	ErrNilQuotaStore  = errors.New("quota store cannot be nil")
	ErrNilCapResolver = errors.New("cap resolver cannot be nil")
)

// Decision is the outcome of a check-and-increment.
type Decision struct {
	Allowed   bool
	Remaining int
}

// CapResolver returns the usage cap for a user and resource kind.
// Implementations typically look up the user's subscription tier.
type CapResolver interface {
	CapFor(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (int, error)
}

// CapResolverFunc adapts a function to the CapResolver interface.
type CapResolverFunc func(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (int, error)

// CapFor implements CapResolver.
func (f CapResolverFunc) CapFor(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) (int, error) {
	return f(ctx, userID, kind)
}

// Ledger charges and compensates quota usage. Every charge is one atomic
// database operation; the ledger never reads a counter and writes it back
// in separate round trips.
type Ledger struct {
	quotaStore store.QuotaStore
	caps       CapResolver
	emitter    events.Emitter
	logger     *slog.Logger
	now        func() time.Time
}

// NewLedger creates a Ledger. The emitter may be nil, in which case
// reconciliation failures are only logged.
func NewLedger(
	quotaStore store.QuotaStore,
	caps CapResolver,
	emitter events.Emitter,
	logger *slog.Logger,
) (*Ledger, error) {
	if quotaStore == nil {
		return nil, ErrNilQuotaStore
	}
	if caps == nil {
		return nil, ErrNilCapResolver
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		quotaStore: quotaStore,
		caps:       caps,
		emitter:    emitter,
		logger:     logger.With("component", "quota_ledger"),
		now:        time.Now,
	}, nil
}

// CheckAndIncrement atomically charges one unit of the resource for the
// user's current billing period, if their usage is below the cap.
func (l *Ledger) CheckAndIncrement(
	ctx context.Context,
	userID uuid.UUID,
	kind domain.ResourceKind,
) (Decision, error) {
	usageCap, err := l.caps.CapFor(ctx, userID, kind)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve quota cap: %w", err)
	}

	periodStart := domain.PeriodStart(l.now())

	allowed, remaining, err := l.quotaStore.CheckAndIncrement(ctx, userID, kind, periodStart, usageCap)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to charge quota: %w", err)
	}

	if !allowed {
		l.logger.Info("quota exhausted",
			"user_id", userID,
			"resource_kind", kind,
			"cap", usageCap)
	}

	return Decision{Allowed: allowed, Remaining: remaining}, nil
}

// Compensate reverses a charge whose corresponding work turned out to be
// deduplicated. The compensation is best-effort: the quota counter and
// the job queue are independent resources, so a failed decrement cannot
// be rolled into a transaction. On failure the discrepancy is recorded
// durably as reconciliation debt and surfaced as an event; the caller
// continues regardless.
func (l *Ledger) Compensate(ctx context.Context, userID uuid.UUID, kind domain.ResourceKind) {
	periodStart := domain.PeriodStart(l.now())

	err := l.quotaStore.Decrement(ctx, userID, kind, periodStart)
	if err == nil {
		return
	}

	l.logger.Error("compensating quota decrement failed, recording reconciliation debt",
		"user_id", userID,
		"resource_kind", kind,
		"error", err)

	if recErr := l.quotaStore.RecordReconciliation(ctx, userID, kind, periodStart, err.Error()); recErr != nil {
		l.logger.Error("failed to record quota reconciliation debt",
			"user_id", userID,
			"resource_kind", kind,
			"error", recErr)
	}

	if l.emitter != nil {
		event, evErr := events.NewEvent(events.EventQuotaReconciliationRequired, struct {
			UserID      uuid.UUID           `json:"user_id"`
			Kind        domain.ResourceKind `json:"kind"`
			PeriodStart time.Time           `json:"period_start"`
			Reason      string              `json:"reason"`
		}{userID, kind, periodStart, err.Error()})
		if evErr == nil {
			_ = l.emitter.EmitEvent(ctx, event)
		}
	}
}
