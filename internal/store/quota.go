package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// QuotaStore defines the persistence interface for quota counters.
//
// CheckAndIncrement must execute as a single atomic statement: concurrent
// requests from the same user are a normal occurrence and the cap is a
// hard business rule, so check-then-increment is never split into two
// round trips.
type QuotaStore interface {
	// CheckAndIncrement increments the user's usage counter for the
	// resource kind and period if usage is below the cap. Returns whether
	// the increment was allowed and how much quota remains afterwards.
	CheckAndIncrement(
		ctx context.Context,
		userID uuid.UUID,
		kind domain.ResourceKind,
		periodStart time.Time,
		cap int,
	) (allowed bool, remaining int, err error)

	// Decrement compensates a previous increment, flooring at zero. Used
	// only when a charged enqueue turned out to be deduplicated.
	Decrement(
		ctx context.Context,
		userID uuid.UUID,
		kind domain.ResourceKind,
		periodStart time.Time,
	) error

	// RecordReconciliation durably records that a compensating decrement
	// failed and the user's counter may overstate real usage.
	RecordReconciliation(
		ctx context.Context,
		userID uuid.UUID,
		kind domain.ResourceKind,
		periodStart time.Time,
		reason string,
	) error
}
