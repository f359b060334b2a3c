package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

func TestPriorityFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tier  domain.SubscriptionTier
		topic string
		want  int
	}{
		{name: "free", tier: domain.TierFree, topic: "Watercolor painting", want: 1},
		{name: "starter", tier: domain.TierStarter, topic: "Watercolor painting", want: 5},
		{name: "pro", tier: domain.TierPro, topic: "Watercolor painting", want: 10},
		{name: "free with boost", tier: domain.TierFree, topic: "AWS fundamentals", want: 3},
		{name: "pro with boost", tier: domain.TierPro, topic: "System design interview prep", want: 12},
		{name: "boost match is case-insensitive", tier: domain.TierStarter, topic: "KUBERNETES deep dive", want: 7},
		{name: "substring match", tier: domain.TierFree, topic: "preparing for certifications", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PriorityFor(tt.tier, tt.topic))
		})
	}
}

func TestPriorityForUnknownTierPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		PriorityFor("enterprise", "anything")
	})
}

func TestPriorityOrderingStrictlyIncreases(t *testing.T) {
	t.Parallel()

	assert.Greater(t, PriorityStarter, PriorityFree)
	assert.Greater(t, PriorityPro, PriorityStarter)
}
