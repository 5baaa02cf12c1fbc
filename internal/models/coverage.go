package models

// Dimension names a topical area the interview tries to cover.
type Dimension string

const (
	DimensionTasteAnchors     Dimension = "taste_anchors"
	DimensionStylePreference  Dimension = "style_preference"
	DimensionNarrativeDesire  Dimension = "narrative_desire"
	DimensionConsumptionHabit Dimension = "consumption_habit"
)

// AllDimensions lists the tracked dimensions in a stable order.
var AllDimensions = []Dimension{
	DimensionTasteAnchors,
	DimensionStylePreference,
	DimensionNarrativeDesire,
	DimensionConsumptionHabit,
}

// CoverageSnapshot is the coverage state derived from a full message history.
type CoverageSnapshot struct {
	TurnCount       int                `json:"turn_count"`
	Dimensions      map[Dimension]bool `json:"dimensions"`
	CoverageScore   float64            `json:"coverage_score"`
	ReadyForSummary bool               `json:"ready_for_summary"`
}

// Missing returns the dimensions not yet observed, in AllDimensions order.
func (c CoverageSnapshot) Missing() []Dimension {
	var out []Dimension
	for _, d := range AllDimensions {
		if !c.Dimensions[d] {
			out = append(out, d)
		}
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (c CoverageSnapshot) Clone() CoverageSnapshot {
	out := c
	out.Dimensions = make(map[Dimension]bool, len(c.Dimensions))
	for k, v := range c.Dimensions {
		out.Dimensions[k] = v
	}
	return out
}

// ResponseSignals are heuristic signals computed from a single utterance.
type ResponseSignals struct {
	VocabularyRichness float64 `json:"vocabulary_richness"`
	Brevity            float64 `json:"brevity"`
	Engagement         float64 `json:"engagement"`
	WordCount          int     `json:"word_count"`
}
