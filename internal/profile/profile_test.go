package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wren-reads/wren/internal/genai"
	"github.com/wren-reads/wren/internal/models"
)

const validProfileJSON = `{
  "taste_anchors": {"loves": ["Piranesi", "Omelas"], "hates": ["explicit morals"], "inferred_genres": ["literary_fiction"]},
  "style_signature": {"prose_density": 90, "pacing": 30, "tone": 20, "worldbuilding": 10, "character_focus": 85, "ambiguity_tolerance": 140},
  "narrative_desires": {"wish": "Stories that refuse to explain themselves.", "preferred_ending": "ambiguous", "themes": ["complicity", "silence", "memory"]},
  "consumption": {"daily_time_minutes": 30, "delivery_frequency": "as_discovered", "pages_per_delivery": 8},
  "explanations": {"pacing": "Mentioned loving stillness."},
  "reader_archetype": "The Silent Archaeologist"
}`

// fakeGenerator replays canned responses in order.
type fakeGenerator struct {
	responses []*genai.ThinkingResponse
	errs      []error
	calls     int
	lastMsgs  []openai.ChatCompletionMessageParamUnion
}

func (f *fakeGenerator) GenerateThinkingWithMessages(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion) (*genai.ThinkingResponse, error) {
	i := f.calls
	f.calls++
	f.lastMsgs = msgs
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, errors.New("unexpected call")
}

func transcript() []models.Message {
	now := time.Now()
	return []models.Message{
		models.AgentMessage("What have you loved reading?", "", now),
		models.UserMessage("Piranesi, and Omelas.", now),
	}
}

func TestDefaultRubricIsValid(t *testing.T) {
	r := DefaultRubric()
	require.NoError(t, r.Validate())
	assert.Equal(t, "builtin", r.Origin())
	assert.Len(t, r.Dimensions, len(models.StyleScoreNames))
	assert.Contains(t, r.Text(), "prose_density")

	b, ok := r.BandFor("pacing", 95)
	require.True(t, ok)
	assert.Equal(t, "Propulsive", b.Label)
}

func TestRubricValidate(t *testing.T) {
	bands := func(edges ...int) []Band {
		var out []Band
		for i := 0; i+1 < len(edges); i++ {
			out = append(out, Band{Min: edges[i], Max: edges[i+1] - 1, Label: "x"})
		}
		out[len(out)-1].Max = edges[len(edges)-1]
		return out
	}
	full := func(b []Band) *Rubric {
		r := &Rubric{}
		for _, name := range models.StyleScoreNames {
			r.Dimensions = append(r.Dimensions, RubricDimension{Name: name, Bands: b})
		}
		return r
	}

	assert.NoError(t, full(bands(0, 21, 41, 61, 81, 100)).Validate())
	assert.ErrorContains(t, full(bands(0, 25, 50, 75, 100)).Validate(), "has 4 bands")

	gap := bands(0, 21, 41, 61, 81, 100)
	gap[2].Min = 45
	assert.ErrorContains(t, full(gap).Validate(), "starts at 45")

	short := bands(0, 21, 41, 61, 81, 100)
	short[4].Max = 90
	assert.ErrorContains(t, full(short).Validate(), "ends at 90")

	missing := full(bands(0, 21, 41, 61, 81, 100))
	missing.Dimensions = missing.Dimensions[1:]
	assert.ErrorContains(t, missing.Validate(), "missing dimension")
}

func TestLoadRubricOrDefault_FailsClosed(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("dimensions: [{name: pacing, bands: []}]"), 0o644))

	assert.Equal(t, "builtin", LoadRubricOrDefault("").Origin())
	assert.Equal(t, "builtin", LoadRubricOrDefault(bad).Origin())
	assert.Equal(t, "builtin", LoadRubricOrDefault(filepath.Join(dir, "absent.yaml")).Origin())

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, defaultRubricYAML, 0o644))
	assert.Equal(t, good, LoadRubricOrDefault(good).Origin())
}

func TestReloadRubric_SwapsSnapshot(t *testing.T) {
	s := NewSynthesizer(&fakeGenerator{})
	before := s.Rubric()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("not: [valid"), 0o644))
	got, err := s.ReloadRubric(bad)
	require.Error(t, err)
	assert.Same(t, before, got)
	assert.Same(t, before, s.Rubric())

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, defaultRubricYAML, 0o644))
	got, err = s.ReloadRubric(good)
	require.NoError(t, err)
	assert.NotSame(t, before, got)
	assert.Equal(t, good, s.Rubric().Origin())
	assert.Equal(t, "builtin", before.Origin())
}

func TestParseProfile_Forms(t *testing.T) {
	cases := map[string]string{
		"raw":    validProfileJSON,
		"fenced": "Here is the profile:\n```json\n" + validProfileJSON + "\n```\nEnjoy.",
		"braces": "Sure! " + validProfileJSON + " Let me know.",
	}
	for name, raw := range cases {
		p, err := ParseProfile(raw)
		require.NoError(t, err, name)
		assert.Equal(t, "The Silent Archaeologist", p.ReaderArchetype, name)
		assert.Equal(t, models.EndingAmbiguous, p.NarrativeDesires.PreferredEnding, name)
	}
}

func TestParseProfile_Failures(t *testing.T) {
	_, err := ParseProfile("I cannot do that.")
	assert.Error(t, err)

	_, err = ParseProfile(`{"taste_anchors": {}, "style_signature": {}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "narrative_desires")
	assert.Contains(t, err.Error(), "reader_archetype")

	_, err = ParseProfile(strings.Replace(validProfileJSON, `"pacing": 30`, `"pacing": "slow"`, 1))
	assert.Error(t, err)
}

func TestSynthesize_Success(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.ThinkingResponse{{Content: validProfileJSON, Thinking: "weighed stillness"}}}
	s := NewSynthesizer(gen)
	implicit := models.ImplicitScores{VocabularyRichness: 0.8, ResponseBrevity: 0.3, Engagement: 0.6, SampleSize: 3}

	p, err := s.Synthesize(context.Background(), transcript(), Metadata{TurnCount: 3, Reason: models.TerminationEarlyExit, Implicit: implicit})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 100, p.StyleSignature.AmbiguityTolerance, "scores are clamped")
	assert.Equal(t, implicit, p.Implicit)
	assert.Equal(t, models.ProfileMetadata{
		InterviewTurns:    3,
		CompletionStatus:  models.CompletionStatusPartial,
		EarlyTermination:  true,
		TerminationReason: models.TerminationEarlyExit,
	}, p.Metadata)
	assert.Equal(t, "weighed stillness", p.Reasoning)
}

func TestSynthesize_RepromptsOnce(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.ThinkingResponse{{Content: "oops"}, {Content: validProfileJSON}}}
	s := NewSynthesizer(gen)

	p, err := s.Synthesize(context.Background(), transcript(), Metadata{TurnCount: 12, Reason: models.TerminationTurnCap})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Len(t, gen.lastMsgs, 4)
	assert.False(t, p.Metadata.EarlyTermination)
	assert.Equal(t, models.CompletionStatusComplete, p.Metadata.CompletionStatus)
}

func TestSynthesize_ParseErrorAfterReprompt(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.ThinkingResponse{{Content: "oops"}, {Content: "still not json"}, {Content: validProfileJSON}}}
	s := NewSynthesizer(gen)

	_, err := s.Synthesize(context.Background(), transcript(), Metadata{TurnCount: 9, Reason: models.TerminationReadiness})
	var perr *models.SynthesisParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "still not json", perr.Raw)
	assert.Equal(t, 2, gen.calls)
	assert.False(t, models.IsRetryable(err))
}

func TestSynthesize_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("503 upstream")}}
	s := NewSynthesizer(gen)

	_, err := s.Synthesize(context.Background(), transcript(), Metadata{TurnCount: 12, Reason: models.TerminationTurnCap})
	var serr *models.SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.True(t, models.IsRetryable(err))
}

func TestBuildSynthesisPrompt(t *testing.T) {
	prompt := buildSynthesisPrompt(DefaultRubric(), transcript(), Metadata{TurnCount: 2, Reason: models.TerminationEarlyExit})
	assert.Contains(t, prompt, DefaultRubric().Text())
	assert.Contains(t, prompt, "INTERVIEWER: What have you loved reading?\n\nUSER: Piranesi, and Omelas.")
	assert.Contains(t, prompt, "Interview ended early")
	assert.Contains(t, prompt, `"reader_archetype"`)
}

func TestRenderTranscript_Rationale(t *testing.T) {
	now := time.Now()
	msgs := []models.Message{models.AgentMessage("Q?", "coverage gap: pacing", now), models.UserMessage("A.", now)}
	assert.Equal(t, "INTERVIEWER: Q?\n\nUSER: A.", FormatTranscript(msgs))
	assert.Contains(t, RenderTranscript(msgs, true), "[rationale] coverage gap: pacing")
}

func TestSummary(t *testing.T) {
	p, err := ParseProfile(validProfileJSON)
	require.NoError(t, err)
	out := Summary(p)
	assert.Contains(t, out, "Reader type: The Silent Archaeologist")
	assert.Contains(t, out, "Loves: Piranesi, Omelas")
	assert.Contains(t, out, "Avoids: explicit morals")
	assert.Contains(t, out, "as discovered")
	assert.Equal(t, "No profile available yet.", Summary(nil))

	p.Normalize()
	style := StyleSummary(p, DefaultRubric())
	assert.Contains(t, style, "prose density: 90 (Lush)")
	assert.Contains(t, style, "ambiguity tolerance: 100 (Enigmatic)")
}
