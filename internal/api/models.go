package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/service"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"token"`
}

// DocumentRequest carries optional source material a plan is derived from.
type DocumentRequest struct {
	Digest string `json:"digest" validate:"required"`
	Text   string `json:"text"   validate:"required"`
}

// CreatePlanRequest defines the payload for the plan creation endpoint.
// Topic and notes length limits are enforced again (with truncation) at
// reservation time; the validator bounds here just reject absurd input
// early.
type CreatePlanRequest struct {
	Topic         string           `json:"topic"          validate:"required,min=1,max=2000"`
	Notes         string           `json:"notes"          validate:"max=20000"`
	SkillLevel    string           `json:"skill_level"    validate:"required,oneof=beginner intermediate advanced"`
	WeeklyHours   int              `json:"weekly_hours"   validate:"required,min=1,max=80"`
	LearningStyle string           `json:"learning_style" validate:"required,oneof=reading video practice mixed"`
	Document      *DocumentRequest `json:"document,omitempty"`
}

// RegeneratePlanRequest defines the optional payload for the plan
// regeneration endpoint. Every field is optional; set fields replace the
// plan's stored parameters.
type RegeneratePlanRequest struct {
	Topic         *string `json:"topic,omitempty"          validate:"omitempty,min=1,max=2000"`
	Notes         *string `json:"notes,omitempty"          validate:"omitempty,max=20000"`
	SkillLevel    *string `json:"skill_level,omitempty"    validate:"omitempty,oneof=beginner intermediate advanced"`
	WeeklyHours   *int    `json:"weekly_hours,omitempty"   validate:"omitempty,min=1,max=80"`
	LearningStyle *string `json:"learning_style,omitempty" validate:"omitempty,oneof=reading video practice mixed"`
}

func (r RegeneratePlanRequest) overrides() service.RegenerateOverrides {
	o := service.RegenerateOverrides{
		Topic:       r.Topic,
		Notes:       r.Notes,
		WeeklyHours: r.WeeklyHours,
	}
	if r.SkillLevel != nil {
		level := domain.SkillLevel(*r.SkillLevel)
		o.SkillLevel = &level
	}
	if r.LearningStyle != nil {
		style := domain.LearningStyle(*r.LearningStyle)
		o.LearningStyle = &style
	}
	return o
}

// PlanResponse is the wire shape of a plan.
type PlanResponse struct {
	ID            uuid.UUID  `json:"id"`
	Topic         string     `json:"topic"`
	Notes         string     `json:"notes,omitempty"`
	SkillLevel    string     `json:"skill_level"`
	WeeklyHours   int        `json:"weekly_hours"`
	LearningStyle string     `json:"learning_style"`
	Status        string     `json:"status"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TaskResponse is the wire shape of one task within a module.
type TaskResponse struct {
	ID               uuid.UUID `json:"id"`
	Position         int       `json:"position"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
}

// ModuleResponse is the wire shape of one module with its tasks.
type ModuleResponse struct {
	ID               uuid.UUID      `json:"id"`
	Position         int            `json:"position"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	EstimatedMinutes int            `json:"estimated_minutes"`
	Tasks            []TaskResponse `json:"tasks"`
}

// PlanDetailResponse is the wire shape of a plan with its full content.
type PlanDetailResponse struct {
	Plan    PlanResponse     `json:"plan"`
	Modules []ModuleResponse `json:"modules"`
}

func newPlanResponse(plan *domain.Plan) PlanResponse {
	return PlanResponse{
		ID:            plan.ID,
		Topic:         plan.Topic,
		Notes:         plan.Notes,
		SkillLevel:    string(plan.SkillLevel),
		WeeklyHours:   plan.WeeklyHours,
		LearningStyle: string(plan.LearningStyle),
		Status:        string(plan.Status),
		FinalizedAt:   plan.FinalizedAt,
		CreatedAt:     plan.CreatedAt,
	}
}

func newPlanDetailResponse(detail *service.PlanDetail) PlanDetailResponse {
	resp := PlanDetailResponse{
		Plan:    newPlanResponse(detail.Plan),
		Modules: make([]ModuleResponse, 0, len(detail.Modules)),
	}
	for _, m := range detail.Modules {
		module := ModuleResponse{
			ID:               m.Module.ID,
			Position:         m.Module.Position,
			Title:            m.Module.Title,
			Description:      m.Module.Description,
			EstimatedMinutes: m.Module.EstimatedMinutes,
			Tasks:            make([]TaskResponse, 0, len(m.Tasks)),
		}
		for _, t := range m.Tasks {
			module.Tasks = append(module.Tasks, TaskResponse{
				ID:               t.ID,
				Position:         t.Position,
				Title:            t.Title,
				Description:      t.Description,
				EstimatedMinutes: t.EstimatedMinutes,
			})
		}
		resp.Modules = append(resp.Modules, module)
	}
	return resp
}
