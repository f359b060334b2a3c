package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus represents the lifecycle state of a generation attempt.
type AttemptStatus string

// Possible attempt status values
const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSuccess    AttemptStatus = "success"
	AttemptStatusFailure    AttemptStatus = "failure"
)

// FailureClassification categorizes why a generation attempt failed.
type FailureClassification string

// Possible failure classifications
const (
	FailureValidation    FailureClassification = "validation"
	FailureTimeout       FailureClassification = "timeout"
	FailureRateLimit     FailureClassification = "rate_limit"
	FailureProviderError FailureClassification = "provider_error"
	FailureUnknown       FailureClassification = "unknown"
)

// DefaultAttemptCap is the number of moduleless attempts allowed per plan
// before further reservations are refused.
const DefaultAttemptCap = 3

// Common validation errors for GenerationAttempt
var (
	ErrEmptyAttemptID       = errors.New("attempt ID cannot be empty")
	ErrEmptyAttemptPlanID   = errors.New("attempt plan ID cannot be empty")
	ErrInvalidAttemptStatus = errors.New("invalid attempt status")
	ErrInvalidClassification = errors.New(
		"invalid attempt failure classification",
	)
)

// AttemptMetadata carries structured provider and timing information about
// an attempt. It is persisted as JSON alongside the attempt row and is
// purely informational (never interpreted by business logic).
type AttemptMetadata struct {
	Provider            string `json:"provider,omitempty"`
	Model               string `json:"model,omitempty"`
	PromptTokens        int    `json:"prompt_tokens,omitempty"`
	CompletionTokens    int    `json:"completion_tokens,omitempty"`
	TotalTokens         int    `json:"total_tokens,omitempty"`
	UsedExtendedTimeout bool   `json:"used_extended_timeout,omitempty"`
	DocumentDigest      string `json:"document_digest,omitempty"`
	FailureDetail       string `json:"failure_detail,omitempty"`
}

// GenerationAttempt is one row per attempt to generate a plan's content.
// It is created in the in_progress state by the reservation manager and
// mutated exactly once by the finalizer into a terminal state. Attempts
// are never deleted; they form the audit trail for the plan.
type GenerationAttempt struct {
	ID               uuid.UUID              `json:"id"`
	PlanID           uuid.UUID              `json:"plan_id"`
	Status           AttemptStatus          `json:"status"`
	Classification   *FailureClassification `json:"classification,omitempty"`
	DurationMs       int64                  `json:"duration_ms"`
	ModulesCount     int                    `json:"modules_count"`
	TasksCount       int                    `json:"tasks_count"`
	TruncatedTopic   bool                   `json:"truncated_topic"`
	TruncatedNotes   bool                   `json:"truncated_notes"`
	NormalizedEffort bool                   `json:"normalized_effort"`
	TimedOut         bool                   `json:"timed_out"`
	PromptHash       string                 `json:"prompt_hash"`
	Metadata         AttemptMetadata        `json:"metadata"`
	CreatedAt        time.Time              `json:"created_at"`
}

// NewGenerationAttempt creates an attempt in the in_progress state for the
// given plan. The prompt hash and truncation flags come from the sanitized
// reservation input.
func NewGenerationAttempt(
	planID uuid.UUID,
	promptHash string,
	truncatedTopic, truncatedNotes bool,
) (*GenerationAttempt, error) {
	attempt := &GenerationAttempt{
		ID:             uuid.New(),
		PlanID:         planID,
		Status:         AttemptStatusInProgress,
		TruncatedTopic: truncatedTopic,
		TruncatedNotes: truncatedNotes,
		PromptHash:     promptHash,
		CreatedAt:      time.Now().UTC(),
	}

	if err := attempt.Validate(); err != nil {
		return nil, err
	}

	return attempt, nil
}

// Validate checks if the GenerationAttempt has valid data.
func (a *GenerationAttempt) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAttemptID
	}
	if a.PlanID == uuid.Nil {
		return ErrEmptyAttemptPlanID
	}
	if !isValidAttemptStatus(a.Status) {
		return ErrInvalidAttemptStatus
	}
	if a.Classification != nil && !isValidClassification(*a.Classification) {
		return ErrInvalidClassification
	}
	return nil
}

// IsTerminal reports whether the attempt has reached a terminal state.
func (a *GenerationAttempt) IsTerminal() bool {
	return a.Status == AttemptStatusSuccess || a.Status == AttemptStatusFailure
}

func isValidAttemptStatus(status AttemptStatus) bool {
	switch status {
	case AttemptStatusInProgress, AttemptStatusSuccess, AttemptStatusFailure:
		return true
	default:
		return false
	}
}

func isValidClassification(c FailureClassification) bool {
	switch c {
	case FailureValidation, FailureTimeout, FailureRateLimit,
		FailureProviderError, FailureUnknown:
		return true
	default:
		return false
	}
}
