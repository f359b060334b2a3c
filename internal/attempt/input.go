package attempt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/saldanaj97/atlaris-sub007/internal/generation"
)

// Default free-text caps in runes.
const (
	DefaultTopicMaxLen = 200
	DefaultNotesMaxLen = 2000
)

// SanitizeInput trims and truncates the free-text fields of a generation
// input and computes a stable content hash over the sanitized values.
// Control characters other than newline and tab are removed before
// truncation so the hash never depends on invisible bytes.
func SanitizeInput(input generation.Input, topicMaxLen, notesMaxLen int) (generation.Input, bool, bool, string) {
	if topicMaxLen <= 0 {
		topicMaxLen = DefaultTopicMaxLen
	}
	if notesMaxLen <= 0 {
		notesMaxLen = DefaultNotesMaxLen
	}

	sanitized := input
	var truncatedTopic, truncatedNotes bool
	sanitized.Topic, truncatedTopic = sanitizeText(input.Topic, topicMaxLen)
	sanitized.Notes, truncatedNotes = sanitizeText(input.Notes, notesMaxLen)

	return sanitized, truncatedTopic, truncatedNotes, hashInput(sanitized)
}

func sanitizeText(s string, maxLen int) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.TrimSpace(b.String())

	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned, false
	}
	return strings.TrimSpace(string(runes[:maxLen])), true
}

// hashInput derives a stable hash of every field that shapes the prompt.
// Fields are length-prefixed so no two distinct inputs can collide by
// concatenation.
func hashInput(input generation.Input) string {
	h := sha256.New()
	writeField := func(field string) {
		fmt.Fprintf(h, "%d:%s;", len(field), field)
	}

	writeField(input.Topic)
	writeField(input.Notes)
	writeField(string(input.SkillLevel))
	writeField(fmt.Sprintf("%d", input.WeeklyHours))
	writeField(string(input.LearningStyle))
	if input.Document != nil {
		writeField(input.Document.Digest)
	}

	return hex.EncodeToString(h.Sum(nil))
}
