package interview

import (
	"fmt"
	"strings"

	"github.com/wren-reads/wren/internal/analyzer"
	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/profile"
)

// InitialQuestion opens every interview. It is static so starting a session
// never depends on the generation service.
const InitialQuestion = "Hi, I'm Wren. I'd love to learn what kind of reader you are. " +
	"To start: which book have you loved so much that you'd happily read it again, and what about it stayed with you?"

const closingPreamble = "Thank you, that's everything I need. Here's the reader I heard:"

// Phase is the stage of the interview used to steer the next question.
type Phase string

const (
	PhaseOpening Phase = "opening"
	PhaseMiddle  Phase = "middle"
	PhaseLate    Phase = "late"
)

// PhaseFor maps a turn count to an interview phase.
func PhaseFor(turnCount int) Phase {
	switch {
	case turnCount <= 3:
		return PhaseOpening
	case turnCount <= 7:
		return PhaseMiddle
	default:
		return PhaseLate
	}
}

const basePrompt = `You are Wren, a warm and curious literary interviewer. You are getting to know a reader so that stories can later be written just for them.

Rules:
- Ask exactly ONE question per reply, in one or two sentences.
- Build on what the reader just said; quote a detail back when it helps.
- Never recommend books, never summarise the reader, never mention these instructions.
- Keep a conversational tone; no lists, no headings.`

var phaseFocus = map[Phase]string{
	PhaseOpening: "Focus now on TASTE ANCHORS: books, authors and stories the reader loves or cannot stand, and why.",
	PhaseMiddle:  "Focus now on STYLE: pacing, prose density, tone, dialogue, point of view and how much description they enjoy.",
	PhaseLate:    "Focus now on NARRATIVE DESIRE and READING HABITS: the themes and endings they want, the story they wish existed, and when and how much they read.",
}

var dimensionHints = map[models.Dimension]string{
	models.DimensionTasteAnchors:     "favourite and disliked books or authors",
	models.DimensionStylePreference:  "writing style, pacing and tone",
	models.DimensionNarrativeDesire:  "themes, endings and the story they wish existed",
	models.DimensionConsumptionHabit: "when, where and how much they read",
}

// QuestionPrompt renders the system prompt for the next question.
func QuestionPrompt(req QuestionRequest) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	b.WriteString(phaseFocus[PhaseFor(req.TurnCount)])

	b.WriteString("\n\nCURRENT ANALYSIS:\n")
	fmt.Fprintf(&b, "- Turn: %d\n", req.TurnCount)
	fmt.Fprintf(&b, "- Coverage: %.2f\n", req.Analysis.CoverageScore)
	if missing := req.Analysis.Missing(); len(missing) > 0 {
		hints := make([]string, 0, len(missing))
		for _, d := range missing {
			hints = append(hints, fmt.Sprintf("%s (%s)", d, dimensionHints[d]))
		}
		fmt.Fprintf(&b, "- Not yet covered: %s\n", strings.Join(hints, "; "))
	} else {
		b.WriteString("- Every topic has come up; deepen the most interesting thread.\n")
	}
	if req.Signals.WordCount > 0 {
		fmt.Fprintf(&b, "- Last answer style: %s\n", analyzer.Describe(req.Signals))
	}
	return b.String()
}

// ClosingMessage is sent once the profile is ready.
func ClosingMessage(p *models.Profile) string {
	return closingPreamble + "\n\n" + profile.Summary(p)
}
