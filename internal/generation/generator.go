package generation

import (
	"context"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// Input is the sanitized, already-truncated request shape handed to the
// generator. The reservation manager produces it; the core never passes
// raw user input across this boundary.
type Input struct {
	Topic         string               `json:"topic"`
	Notes         string               `json:"notes,omitempty"`
	SkillLevel    domain.SkillLevel    `json:"skill_level"`
	WeeklyHours   int                  `json:"weekly_hours"`
	LearningStyle domain.LearningStyle `json:"learning_style"`

	// Document carries optional provenance from an uploaded document the
	// plan was derived from. Extraction happens upstream; only the digest
	// and extracted text cross this boundary.
	Document *DocumentContext `json:"document,omitempty"`
}

// DocumentContext is the provenance of a document-derived plan.
type DocumentContext struct {
	Digest string `json:"digest"`
	Text   string `json:"text"`
}

// ModuleOutline is one module of a generated plan, pre-normalization.
type ModuleOutline struct {
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	EstimatedMinutes int           `json:"estimated_minutes"`
	Tasks            []TaskOutline `json:"tasks"`
}

// TaskOutline is one task within a generated module, pre-normalization.
type TaskOutline struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// Usage reports the provider's token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PlanOutline is the full structured output of one generation call.
type PlanOutline struct {
	Modules []ModuleOutline `json:"modules"`
	Model   string          `json:"model,omitempty"`
	Usage   Usage           `json:"usage"`
}

// Generator is the AI content-generation capability consumed by the
// orchestrator. Implementations must respect ctx cancellation; the
// orchestrator enforces the call timeout through ctx.
type Generator interface {
	// Generate produces a plan outline for the input, or a classifiable
	// error. Implementations wrap provider failures in ProviderError so
	// the caller can classify them without knowing the provider.
	Generate(ctx context.Context, input Input) (*PlanOutline, error)
}
