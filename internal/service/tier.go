package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/quota"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// StoreTierResolver resolves subscription tiers from the user store. It
// backs both the quota cap lookup and the job priority formula.
type StoreTierResolver struct {
	users store.UserStore
}

var _ quota.TierResolver = (*StoreTierResolver)(nil)

// NewStoreTierResolver creates a StoreTierResolver.
func NewStoreTierResolver(users store.UserStore) (*StoreTierResolver, error) {
	if users == nil {
		return nil, fmt.Errorf("user store cannot be nil")
	}
	return &StoreTierResolver{users: users}, nil
}

// TierFor implements quota.TierResolver.
func (r *StoreTierResolver) TierFor(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user for tier lookup: %w", err)
	}
	return user.Tier, nil
}
