package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies a quota-metered resource.
type ResourceKind string

// Quota-metered resource kinds
const (
	ResourcePlanGeneration ResourceKind = "plan_generation"
	ResourceRegeneration   ResourceKind = "regeneration"
	ResourcePDFPlan        ResourceKind = "pdf_plan"
)

// QuotaUsage is a per-user usage counter for one resource kind within one
// billing period. The counter is only ever adjusted through atomic
// check-and-increment (or its compensating decrement); it is never read
// and written in separate round trips.
type QuotaUsage struct {
	UserID      uuid.UUID    `json:"user_id"`
	Kind        ResourceKind `json:"kind"`
	PeriodStart time.Time    `json:"period_start"`
	Used        int          `json:"used"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PeriodStart returns the UTC start of the billing period containing t.
// Periods are calendar months.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
