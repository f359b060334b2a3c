package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// GenerationStatus represents the generation state of a plan.
type GenerationStatus string

// Possible plan generation status values
const (
	GenerationStatusGenerating GenerationStatus = "generating"
	GenerationStatusReady      GenerationStatus = "ready"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// SkillLevel describes the learner's self-reported starting point.
type SkillLevel string

// Possible skill level values
const (
	SkillLevelBeginner     SkillLevel = "beginner"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelAdvanced     SkillLevel = "advanced"
)

// LearningStyle describes the preferred shape of generated tasks.
type LearningStyle string

// Possible learning style values
const (
	LearningStyleReading  LearningStyle = "reading"
	LearningStyleVideo    LearningStyle = "video"
	LearningStylePractice LearningStyle = "practice"
	LearningStyleMixed    LearningStyle = "mixed"
)

// Common validation errors for Plan
var (
	ErrEmptyPlanID          = errors.New("plan ID cannot be empty")
	ErrEmptyPlanUserID      = errors.New("plan user ID cannot be empty")
	ErrEmptyPlanTopic       = errors.New("plan topic cannot be empty")
	ErrInvalidPlanStatus    = errors.New("invalid plan generation status")
	ErrInvalidSkillLevel    = errors.New("invalid skill level")
	ErrInvalidLearningStyle = errors.New("invalid learning style")
	ErrInvalidWeeklyHours   = errors.New("weekly hours must be between 1 and 80")
)

// Plan represents a user's learning plan. Its content (modules and tasks)
// is produced by AI generation attempts; the plan row tracks the generation
// lifecycle. A plan owns at most one in-flight attempt at a time, and its
// status transitions only through attempt finalization.
type Plan struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Topic           string           `json:"topic"`
	Notes           string           `json:"notes,omitempty"`
	SkillLevel      SkillLevel       `json:"skill_level"`
	WeeklyHours     int              `json:"weekly_hours"`
	LearningStyle   LearningStyle    `json:"learning_style"`
	Status          GenerationStatus `json:"status"`
	IsQuotaEligible bool             `json:"is_quota_eligible"`
	FinalizedAt     *time.Time       `json:"finalized_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewPlan creates a new Plan in the generating state.
// Returns an error if validation fails.
func NewPlan(
	userID uuid.UUID,
	topic, notes string,
	skillLevel SkillLevel,
	weeklyHours int,
	learningStyle LearningStyle,
) (*Plan, error) {
	now := time.Now().UTC()
	plan := &Plan{
		ID:            uuid.New(),
		UserID:        userID,
		Topic:         topic,
		Notes:         notes,
		SkillLevel:    skillLevel,
		WeeklyHours:   weeklyHours,
		LearningStyle: learningStyle,
		Status:        GenerationStatusGenerating,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return plan, nil
}

// Validate checks if the Plan has valid data.
func (p *Plan) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPlanID
	}
	if p.UserID == uuid.Nil {
		return ErrEmptyPlanUserID
	}
	if p.Topic == "" {
		return ErrEmptyPlanTopic
	}
	if !isValidGenerationStatus(p.Status) {
		return ErrInvalidPlanStatus
	}
	if !isValidSkillLevel(p.SkillLevel) {
		return ErrInvalidSkillLevel
	}
	if !isValidLearningStyle(p.LearningStyle) {
		return ErrInvalidLearningStyle
	}
	if p.WeeklyHours < 1 || p.WeeklyHours > 80 {
		return ErrInvalidWeeklyHours
	}
	return nil
}

func isValidGenerationStatus(status GenerationStatus) bool {
	switch status {
	case GenerationStatusGenerating, GenerationStatusReady, GenerationStatusFailed:
		return true
	default:
		return false
	}
}

func isValidSkillLevel(level SkillLevel) bool {
	switch level {
	case SkillLevelBeginner, SkillLevelIntermediate, SkillLevelAdvanced:
		return true
	default:
		return false
	}
}

func isValidLearningStyle(style LearningStyle) bool {
	switch style {
	case LearningStyleReading, LearningStyleVideo, LearningStylePractice, LearningStyleMixed:
		return true
	default:
		return false
	}
}
