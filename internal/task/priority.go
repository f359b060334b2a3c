package task

import (
	"fmt"
	"strings"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// Base priority scores by subscription tier. Higher dequeues sooner.
const (
	PriorityFree    = 1
	PriorityStarter = 5
	PriorityPro     = 10

	// PriorityTopicBoost is added when the plan topic matches the curated
	// priority vocabulary.
	PriorityTopicBoost = 2
)

// priorityTopics is the curated vocabulary of topics that get a scheduling
// boost: time-sensitive, conversion-critical subjects. Matching is
// case-insensitive substring.
var priorityTopics = []string{
	"interview",
	"certification",
	"exam",
	"onboarding",
	"aws",
	"kubernetes",
	"machine learning",
	"security",
}

// PriorityFor computes a job's priority from the owner's subscription
// tier and the plan topic. An unrecognized tier is a programming error
// (tiers are validated at the domain boundary) and panics rather than
// silently scheduling at some default.
func PriorityFor(tier domain.SubscriptionTier, topic string) int {
	var base int
	switch tier {
	case domain.TierFree:
		base = PriorityFree
	case domain.TierStarter:
		base = PriorityStarter
	case domain.TierPro:
		base = PriorityPro
	default:
		panic(fmt.Sprintf("unrecognized subscription tier %q", tier))
	}

	if topicHasBoost(topic) {
		base += PriorityTopicBoost
	}
	return base
}

func topicHasBoost(topic string) bool {
	lowered := strings.ToLower(topic)
	for _, t := range priorityTopics {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}
