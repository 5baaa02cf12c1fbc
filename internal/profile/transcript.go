package profile

import (
	"strings"

	"github.com/wren-reads/wren/internal/models"
)

// Transcript role labels.
const (
	InterviewerLabel = "INTERVIEWER"
	UserLabel        = "USER"
)

// FormatTranscript renders messages as alternating role-labelled paragraphs.
func FormatTranscript(messages []models.Message) string {
	return RenderTranscript(messages, false)
}

// RenderTranscript is FormatTranscript with optional rationale lines under
// each agent message.
func RenderTranscript(messages []models.Message, withRationale bool) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		label := UserLabel
		if m.Role == models.RoleAgent {
			label = InterviewerLabel
		}
		line := label + ": " + strings.TrimSpace(m.Content)
		if withRationale && m.Rationale != nil && strings.TrimSpace(*m.Rationale) != "" {
			line += "\n  [rationale] " + strings.ReplaceAll(strings.TrimSpace(*m.Rationale), "\n", "\n  ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}
