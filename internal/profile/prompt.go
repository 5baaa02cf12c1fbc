package profile

import (
	"fmt"
	"strings"

	"github.com/wren-reads/wren/internal/models"
)

// schemaDescription is the JSON shape the synthesis model must return.
const schemaDescription = `{
  "taste_anchors": {
    "loves": ["specific books, authors or works the reader loves"],
    "hates": ["books, tropes or styles the reader avoids"],
    "inferred_genres": ["snake_case genre labels"]
  },
  "style_signature": {
    "prose_density": 0-100,
    "pacing": 0-100,
    "tone": 0-100,
    "worldbuilding": 0-100,
    "character_focus": 0-100,
    "ambiguity_tolerance": 0-100
  },
  "narrative_desires": {
    "wish": "one sentence describing the story this reader is hungry for",
    "preferred_ending": "resolved | ambiguous | bittersweet | tragic | open",
    "themes": ["3 to 8 short theme strings"]
  },
  "consumption": {
    "daily_time_minutes": 0-600,
    "delivery_frequency": "daily | several_per_week | weekly | as_discovered",
    "pages_per_delivery": 1-100
  },
  "explanations": {
    "<field name>": "one sentence citing what the reader said"
  },
  "reader_archetype": "a short evocative label, e.g. The Night Archivist"
}`

// systemPreamble frames the synthesis task.
const systemPreamble = `You are a literary analyst. Read the interview transcript below and produce a structured reader profile.

Rules:
- Respond with a single JSON object and nothing else. No prose, no markdown.
- Every integer style score must be chosen using the scoring rubric bands.
- Ground every field in what the reader actually said; extrapolate carefully where they were silent.
- Use the exact enum values listed in the schema.`

// repromptText asks for a corrected answer after unparseable output.
const repromptText = `Your previous reply could not be parsed as the required profile: %v
Reply again with only the JSON object matching the schema. Include every required field: %s.`

// buildSynthesisPrompt renders the system prompt for one synthesis call.
func buildSynthesisPrompt(r *Rubric, transcript []models.Message, meta Metadata) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nSCORING RUBRIC:\n")
	b.WriteString(r.Text())
	b.WriteString("\n\nOUTPUT SCHEMA:\n")
	b.WriteString(schemaDescription)
	b.WriteString("\n\nINTERVIEW TRANSCRIPT:\n")
	b.WriteString(FormatTranscript(transcript))
	b.WriteString("\n\nINTERVIEW METADATA:\n")
	fmt.Fprintf(&b, "- Total turns: %d\n", meta.TurnCount)
	fmt.Fprintf(&b, "- Completion status: %s\n", meta.CompletionStatus())
	fmt.Fprintf(&b, "- Termination reason: %s\n", meta.Reason)
	if meta.EarlyTermination() {
		b.WriteString("- Note: Interview ended early, extrapolate carefully from available data\n")
	}
	fmt.Fprintf(&b, "- Observed vocabulary richness: %.2f\n", meta.Implicit.VocabularyRichness)
	fmt.Fprintf(&b, "- Observed response brevity: %.2f\n", meta.Implicit.ResponseBrevity)
	fmt.Fprintf(&b, "- Observed engagement: %.2f\n", meta.Implicit.Engagement)
	return b.String()
}
