package attempt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
)

func baseInput() generation.Input {
	return generation.Input{
		Topic:         "Learn Go",
		Notes:         "focus on concurrency",
		SkillLevel:    domain.SkillLevelBeginner,
		WeeklyHours:   5,
		LearningStyle: domain.LearningStyleMixed,
	}
}

func TestSanitizeInput(t *testing.T) {
	t.Parallel()

	t.Run("passes short input through unchanged", func(t *testing.T) {
		t.Parallel()

		sanitized, truncTopic, truncNotes, hash := SanitizeInput(baseInput(), 0, 0)
		assert.Equal(t, "Learn Go", sanitized.Topic)
		assert.Equal(t, "focus on concurrency", sanitized.Notes)
		assert.False(t, truncTopic)
		assert.False(t, truncNotes)
		assert.Len(t, hash, 64)
	})

	t.Run("truncates oversized fields and flags it", func(t *testing.T) {
		t.Parallel()

		input := baseInput()
		input.Topic = strings.Repeat("a", 300)
		input.Notes = strings.Repeat("b", 3000)

		sanitized, truncTopic, truncNotes, _ := SanitizeInput(input, DefaultTopicMaxLen, DefaultNotesMaxLen)
		assert.Len(t, sanitized.Topic, DefaultTopicMaxLen)
		assert.Len(t, sanitized.Notes, DefaultNotesMaxLen)
		assert.True(t, truncTopic)
		assert.True(t, truncNotes)
	})

	t.Run("strips control characters but keeps newlines and tabs", func(t *testing.T) {
		t.Parallel()

		input := baseInput()
		input.Notes = "line one\nline\ttwo\x00\x1b"

		sanitized, _, _, _ := SanitizeInput(input, 0, 0)
		assert.Equal(t, "line one\nline\ttwo", sanitized.Notes)
	})

	t.Run("hash is stable for identical input", func(t *testing.T) {
		t.Parallel()

		_, _, _, first := SanitizeInput(baseInput(), 0, 0)
		_, _, _, second := SanitizeInput(baseInput(), 0, 0)
		assert.Equal(t, first, second)
	})

	t.Run("hash differs when any field differs", func(t *testing.T) {
		t.Parallel()

		_, _, _, base := SanitizeInput(baseInput(), 0, 0)

		changed := baseInput()
		changed.WeeklyHours = 6
		_, _, _, other := SanitizeInput(changed, 0, 0)
		assert.NotEqual(t, base, other)

		withDoc := baseInput()
		withDoc.Document = &generation.DocumentContext{Digest: "abc123"}
		_, _, _, docHash := SanitizeInput(withDoc, 0, 0)
		assert.NotEqual(t, base, docHash)
	})

	t.Run("hash reflects truncated values, not raw input", func(t *testing.T) {
		t.Parallel()

		long := baseInput()
		long.Topic = strings.Repeat("a", 250)
		_, _, _, longHash := SanitizeInput(long, 200, 0)

		exact := baseInput()
		exact.Topic = strings.Repeat("a", 200)
		_, _, _, exactHash := SanitizeInput(exact, 200, 0)

		assert.Equal(t, exactHash, longHash)
	})
}
