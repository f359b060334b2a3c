package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/saldanaj97/atlaris-sub007/internal/config"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
)

// responseSchema is the JSON shape the prompt instructs the model to
// produce.
type responseSchema struct {
	Modules []moduleSchema `json:"modules"`
}

type moduleSchema struct {
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	Tasks            []taskSchema `json:"tasks"`
}

type taskSchema struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API to generate learning plan outlines.
type GeminiGenerator struct {
	logger         *slog.Logger
	promptTemplate *template.Template
	client         *genai.Client
	model          string
}

// Ensure GeminiGenerator implements generation.Generator interface
var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator from the LLM
// configuration. The context is used only for client initialization.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	promptTemplate, err := parsePromptTemplate()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger:         logger.With(slog.String("component", "gemini_generator")),
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// Generate implements generation.Generator.Generate
//
// The call runs under whatever deadline ctx carries; this method does not
// retry. Retry policy lives with the caller, which owns timeout extension
// and job requeue decisions.
func (g *GeminiGenerator) Generate(
	ctx context.Context,
	input generation.Input,
) (*generation.PlanOutline, error) {
	prompt, err := buildPrompt(g.promptTemplate, input)
	if err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "calling Gemini API",
		slog.String("model", g.model),
		slog.Int("prompt_length", len(prompt)))

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		// Context errors pass through untouched so the caller can
		// distinguish timeouts from provider failures.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, wrapAPIError(err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	outline, err := parseOutline(text)
	if err != nil {
		return nil, err
	}

	outline.Model = g.model
	if resp.UsageMetadata != nil {
		outline.Usage = generation.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	g.logger.DebugContext(ctx, "Gemini API call succeeded",
		slog.Int("modules", len(outline.Modules)),
		slog.Int("total_tokens", outline.Usage.TotalTokens))

	return outline, nil
}

// wrapAPIError normalizes a genai error into a generation.ProviderError
// carrying the HTTP status when the SDK exposed one.
func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &generation.ProviderError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &generation.ProviderError{
		Message: err.Error(),
		Err:     err,
	}
}

// extractText pulls the text payload out of the first candidate, mapping
// structural problems and safety blocks to the generation sentinels.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return text, nil
}

// parseOutline decodes and structurally validates the model's JSON output.
// Effort estimates are not range-checked here; clamping happens at
// finalization.
func parseOutline(text string) (*generation.PlanOutline, error) {
	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err)
	}

	if len(parsed.Modules) == 0 {
		return nil, fmt.Errorf("%w: no modules in response", generation.ErrInvalidResponse)
	}

	outline := &generation.PlanOutline{
		Modules: make([]generation.ModuleOutline, 0, len(parsed.Modules)),
	}
	for i, m := range parsed.Modules {
		if strings.TrimSpace(m.Title) == "" {
			return nil, fmt.Errorf("%w: module %d missing title",
				generation.ErrInvalidResponse, i)
		}

		module := generation.ModuleOutline{
			Title:            strings.TrimSpace(m.Title),
			Description:      strings.TrimSpace(m.Description),
			EstimatedMinutes: m.EstimatedMinutes,
			Tasks:            make([]generation.TaskOutline, 0, len(m.Tasks)),
		}
		for j, t := range m.Tasks {
			if strings.TrimSpace(t.Title) == "" {
				return nil, fmt.Errorf("%w: module %d task %d missing title",
					generation.ErrInvalidResponse, i, j)
			}
			module.Tasks = append(module.Tasks, generation.TaskOutline{
				Title:            strings.TrimSpace(t.Title),
				Description:      strings.TrimSpace(t.Description),
				EstimatedMinutes: t.EstimatedMinutes,
			})
		}
		outline.Modules = append(outline.Modules, module)
	}

	return outline, nil
}
