package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Effort estimate bounds in minutes. AI-produced estimates are clamped
// into these ranges before persistence.
const (
	ModuleMinutesMin = 15
	ModuleMinutesMax = 480
	TaskMinutesMin   = 5
	TaskMinutesMax   = 240
)

// Common validation errors for Module and Task
var (
	ErrEmptyModuleID     = errors.New("module ID cannot be empty")
	ErrEmptyModulePlanID = errors.New("module plan ID cannot be empty")
	ErrEmptyModuleTitle  = errors.New("module title cannot be empty")
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskModuleID = errors.New("task module ID cannot be empty")
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
)

// Module is one unit of a plan's generated content. Modules exist only as
// the output of a successful generation attempt and are always replaced
// wholesale, never merged.
type Module struct {
	ID               uuid.UUID `json:"id"`
	PlanID           uuid.UUID `json:"plan_id"`
	Position         int       `json:"position"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	CreatedAt        time.Time `json:"created_at"`
}

// Task is one actionable step within a module.
type Task struct {
	ID               uuid.UUID `json:"id"`
	ModuleID         uuid.UUID `json:"module_id"`
	Position         int       `json:"position"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewModule creates a Module at the given position, clamping the effort
// estimate into the module bounds. The returned bool reports whether
// clamping occurred.
func NewModule(
	planID uuid.UUID,
	position int,
	title, description string,
	estimatedMinutes int,
) (*Module, bool, error) {
	clamped, wasClamped := ClampEstimate(estimatedMinutes, ModuleMinutesMin, ModuleMinutesMax)
	module := &Module{
		ID:               uuid.New(),
		PlanID:           planID,
		Position:         position,
		Title:            title,
		Description:      description,
		EstimatedMinutes: clamped,
		CreatedAt:        time.Now().UTC(),
	}

	if err := module.Validate(); err != nil {
		return nil, false, err
	}

	return module, wasClamped, nil
}

// NewTask creates a Task at the given position, clamping the effort
// estimate into the task bounds. The returned bool reports whether
// clamping occurred.
func NewTask(
	moduleID uuid.UUID,
	position int,
	title, description string,
	estimatedMinutes int,
) (*Task, bool, error) {
	clamped, wasClamped := ClampEstimate(estimatedMinutes, TaskMinutesMin, TaskMinutesMax)
	task := &Task{
		ID:               uuid.New(),
		ModuleID:         moduleID,
		Position:         position,
		Title:            title,
		Description:      description,
		EstimatedMinutes: clamped,
		CreatedAt:        time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, false, err
	}

	return task, wasClamped, nil
}

// Validate checks if the Module has valid data.
func (m *Module) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyModuleID
	}
	if m.PlanID == uuid.Nil {
		return ErrEmptyModulePlanID
	}
	if m.Title == "" {
		return ErrEmptyModuleTitle
	}
	return nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.ModuleID == uuid.Nil {
		return ErrEmptyTaskModuleID
	}
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	return nil
}

// ClampEstimate clamps an effort estimate into [lo, hi] minutes and
// reports whether the value was adjusted.
func ClampEstimate(minutes, lo, hi int) (int, bool) {
	if minutes < lo {
		return lo, true
	}
	if minutes > hi {
		return hi, true
	}
	return minutes, false
}
