package gemini

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/saldanaj97/atlaris-sub007/internal/generation"
)

// promptTemplateText is the instruction template sent to the model. The
// response schema it describes must stay in sync with responseSchema.
const promptTemplateText = `You are a curriculum designer. Create a structured learning plan for the topic below.

Topic: {{.Topic}}
{{- if .Notes}}
Learner notes: {{.Notes}}
{{- end}}
Skill level: {{.SkillLevel}}
Available time: {{.WeeklyHours}} hours per week
Preferred learning style: {{.LearningStyle}}
{{- if .DocumentText}}

Base the plan on the following source material:
---
{{.DocumentText}}
---
{{- end}}

Respond with ONLY a JSON object, no surrounding text, in this exact shape:
{
  "modules": [
    {
      "title": "string",
      "description": "string",
      "estimated_minutes": 120,
      "tasks": [
        {
          "title": "string",
          "description": "string",
          "estimated_minutes": 30
        }
      ]
    }
  ]
}

Produce between 3 and 8 modules, each with 2 to 6 tasks. Order modules
from foundations to advanced material. Estimated minutes are per module
and per task respectively.`

// promptData is the template context for one generation call.
type promptData struct {
	Topic         string
	Notes         string
	SkillLevel    string
	WeeklyHours   int
	LearningStyle string
	DocumentText  string
}

func parsePromptTemplate() (*template.Template, error) {
	return template.New("plan").Parse(promptTemplateText)
}

// buildPrompt renders the prompt for the given sanitized input.
func buildPrompt(tmpl *template.Template, input generation.Input) (string, error) {
	if input.Topic == "" {
		return "", fmt.Errorf("%w: topic is empty", generation.ErrInvalidConfig)
	}

	data := promptData{
		Topic:         input.Topic,
		Notes:         input.Notes,
		SkillLevel:    string(input.SkillLevel),
		WeeklyHours:   input.WeeklyHours,
		LearningStyle: string(input.LearningStyle),
	}
	if input.Document != nil {
		data.DocumentText = input.Document.Text
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
