package coverage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wren-reads/wren/internal/models"
)

func history(userTurns ...string) []models.Message {
	now := time.Now()
	var msgs []models.Message
	for _, u := range userTurns {
		msgs = append(msgs, models.AgentMessage("Tell me more?", "", now), models.UserMessage(u, now))
	}
	return msgs
}

func TestEvaluate_EmptyHistory(t *testing.T) {
	snap := Evaluate(nil)
	assert.Equal(t, 0, snap.TurnCount)
	assert.Equal(t, 0.0, snap.CoverageScore)
	assert.False(t, snap.ReadyForSummary)
	require.Len(t, snap.Dimensions, len(models.AllDimensions))
	for _, d := range models.AllDimensions {
		assert.False(t, snap.Dimensions[d], "dimension %s", d)
	}
}

func TestEvaluate_OkLeavesCoverageUnchanged(t *testing.T) {
	snap := Evaluate(history("ok"))
	assert.Equal(t, 1, snap.TurnCount)
	assert.Equal(t, 0.0, snap.CoverageScore)
	assert.Len(t, snap.Missing(), len(models.AllDimensions))
	assert.False(t, snap.ReadyForSummary)
}

func TestEvaluate_DetectsEachDimension(t *testing.T) {
	cases := map[models.Dimension]string{
		models.DimensionTasteAnchors:     "My favorite author is Le Guin.",
		models.DimensionStylePreference:  "I like sparse prose.",
		models.DimensionNarrativeDesire:  "I want a bittersweet ending.",
		models.DimensionConsumptionHabit: "About twenty minutes on my commute.",
	}
	for dim, text := range cases {
		snap := Evaluate(history(text))
		assert.True(t, snap.Dimensions[dim], "expected %s from %q", dim, text)
		assert.Equal(t, 0.25, snap.CoverageScore, "only %s should fire for %q", dim, text)
	}
}

func TestEvaluate_WholeTokenMatching(t *testing.T) {
	// "space" contains "pace", "storytelling" contains "story"; neither counts.
	snap := Evaluate(history("Space operas and storytelling podcasts"))
	assert.False(t, snap.Dimensions[models.DimensionStylePreference])
	assert.False(t, snap.Dimensions[models.DimensionNarrativeDesire])
}

func TestEvaluate_MultiWordKeywords(t *testing.T) {
	snap := Evaluate(history("I usually read before bed"))
	assert.True(t, snap.Dimensions[models.DimensionConsumptionHabit])

	snap = Evaluate(history("before I go to bed"))
	assert.False(t, snap.Dimensions[models.DimensionConsumptionHabit])
}

func TestEvaluate_IgnoresAgentMessages(t *testing.T) {
	now := time.Now()
	msgs := []models.Message{
		models.AgentMessage("What's your favorite genre, and how many minutes a day do you read?", "", now),
		models.UserMessage("hmm", now),
	}
	snap := Evaluate(msgs)
	assert.Equal(t, 0.0, snap.CoverageScore)
	assert.Equal(t, 1, snap.TurnCount)
}

func TestEvaluate_Pure(t *testing.T) {
	h := history("I loved Piranesi", "slow burn prose", "a quest with a tragic ending")
	a := Evaluate(h)
	b := Evaluate(h)
	assert.Equal(t, a, b)
}

func TestEvaluate_Readiness(t *testing.T) {
	covered := []string{
		"My favorite novel is Middlemarch",
		"Lyrical prose please",
		"A redemption arc",
	}
	filler := []string{"ok", "sure", "yes", "hmm", "right"}

	// Three dimensions but only three turns: not ready.
	snap := Evaluate(history(covered...))
	assert.Equal(t, 0.75, snap.CoverageScore)
	assert.False(t, snap.ReadyForSummary)

	// Same coverage at eight turns: ready.
	snap = Evaluate(history(append(append([]string{}, covered...), filler...)...))
	assert.Equal(t, 8, snap.TurnCount)
	assert.True(t, snap.ReadyForSummary)

	// Eight turns with half coverage: not ready.
	half := append([]string{covered[0], covered[1]}, filler...)
	half = append(half, "fine")
	snap = Evaluate(history(half...))
	assert.Equal(t, 8, snap.TurnCount)
	assert.Equal(t, 0.5, snap.CoverageScore)
	assert.False(t, snap.ReadyForSummary)
}

func TestTracker_CustomPolicy(t *testing.T) {
	tr, err := NewTracker(Policy{MinTurns: 2, MinCoverage: 0.5})
	require.NoError(t, err)
	snap := tr.Evaluate(history("my favorite author", "dense prose"))
	assert.True(t, snap.ReadyForSummary)
	assert.Equal(t, 2, tr.Policy().MinTurns)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{MinTurns: -1, MinCoverage: 0.5}.Validate())
	assert.Error(t, Policy{MinTurns: 1, MinCoverage: 1.5}.Validate())

	_, err := NewTracker(Policy{MinTurns: 1, MinCoverage: -0.1})
	assert.Error(t, err)
}

func TestKeywordsReturnsCopy(t *testing.T) {
	k := Keywords(models.DimensionTasteAnchors)
	require.NotEmpty(t, k)
	k[0] = "mutated"
	assert.NotEqual(t, "mutated", Keywords(models.DimensionTasteAnchors)[0])
	assert.NotContains(t, Keywords(models.DimensionTasteAnchors), "ok")
}
