package domain

import (
	"errors"
	"fmt"
)

// SubscriptionTier identifies a user's billing tier. Tiers feed the job
// queue's priority formula, so the set here must stay in sync with the
// scores in the task package.
type SubscriptionTier string

// Possible subscription tiers
const (
	TierFree    SubscriptionTier = "free"
	TierStarter SubscriptionTier = "starter"
	TierPro     SubscriptionTier = "pro"
)

// ErrUnknownTier is returned by ParseTier for unrecognized tier values.
var ErrUnknownTier = errors.New("unknown subscription tier")

// ParseTier converts a raw string into a SubscriptionTier. Unknown values
// are an error, never silently defaulted.
func ParseTier(raw string) (SubscriptionTier, error) {
	switch SubscriptionTier(raw) {
	case TierFree:
		return TierFree, nil
	case TierStarter:
		return TierStarter, nil
	case TierPro:
		return TierPro, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, raw)
	}
}

// IsValid reports whether the tier is one of the known tiers.
func (t SubscriptionTier) IsValid() bool {
	switch t {
	case TierFree, TierStarter, TierPro:
		return true
	default:
		return false
	}
}
