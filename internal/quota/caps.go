package quota

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// TierResolver looks up a user's subscription tier.
type TierResolver interface {
	TierFor(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error)
}

// TierCaps maps each subscription tier to its monthly cap.
type TierCaps struct {
	Free    int
	Starter int
	Pro     int
}

// TierCapResolver resolves a user's quota cap from their subscription
// tier. The same monthly cap applies to every metered resource kind.
type TierCapResolver struct {
	tiers TierResolver
	caps  TierCaps
}

// NewTierCapResolver creates a TierCapResolver.
func NewTierCapResolver(tiers TierResolver, caps TierCaps) (*TierCapResolver, error) {
	if tiers == nil {
		return nil, fmt.Errorf("tier resolver cannot be nil")
	}
	return &TierCapResolver{tiers: tiers, caps: caps}, nil
}

// CapFor implements CapResolver.
func (r *TierCapResolver) CapFor(ctx context.Context, userID uuid.UUID, _ domain.ResourceKind) (int, error) {
	tier, err := r.tiers.TierFor(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve subscription tier: %w", err)
	}

	switch tier {
	case domain.TierFree:
		return r.caps.Free, nil
	case domain.TierStarter:
		return r.caps.Starter, nil
	case domain.TierPro:
		return r.caps.Pro, nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownTier, tier)
	}
}

var _ CapResolver = (*TierCapResolver)(nil)
