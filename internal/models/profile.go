package models

import "strings"

// Style score bounds.
const (
	MinStyleScore = 0
	MaxStyleScore = 100
)

// Consumption bounds.
const (
	MinDailyMinutes     = 0
	MaxDailyMinutes     = 600
	MinPagesPerDelivery = 1
	MaxPagesPerDelivery = 100
)

// Theme count bounds.
const (
	MinThemes = 3
	MaxThemes = 8
)

// EndingPreference enumerates how a reader likes stories to end.
type EndingPreference string

const (
	EndingResolved    EndingPreference = "resolved"
	EndingAmbiguous   EndingPreference = "ambiguous"
	EndingBittersweet EndingPreference = "bittersweet"
	EndingTragic      EndingPreference = "tragic"
	EndingOpen        EndingPreference = "open"
)

// DeliveryCadence enumerates how often a reader wants new material.
type DeliveryCadence string

const (
	CadenceDaily          DeliveryCadence = "daily"
	CadenceSeveralPerWeek DeliveryCadence = "several_per_week"
	CadenceWeekly         DeliveryCadence = "weekly"
	CadenceAsDiscovered   DeliveryCadence = "as_discovered"
)

// TerminationReason records why an interview ended.
type TerminationReason string

const (
	TerminationTurnCap   TerminationReason = "turn_cap"
	TerminationReadiness TerminationReason = "readiness"
	TerminationEarlyExit TerminationReason = "early_exit"
)

// Completion statuses recorded in profile metadata.
const (
	CompletionStatusComplete = "complete"
	CompletionStatusPartial  = "partial"
)

// StyleScoreNames lists the style_signature fields in rubric order.
var StyleScoreNames = []string{
	"prose_density",
	"pacing",
	"tone",
	"worldbuilding",
	"character_focus",
	"ambiguity_tolerance",
}

// RequiredProfileFields are the top-level keys a synthesized profile must carry.
var RequiredProfileFields = []string{
	"taste_anchors",
	"style_signature",
	"narrative_desires",
	"consumption",
	"reader_archetype",
}

type TasteAnchors struct {
	Loves          []string `json:"loves"`
	Hates          []string `json:"hates"`
	InferredGenres []string `json:"inferred_genres"`
}

type StyleSignature struct {
	ProseDensity       int `json:"prose_density"`
	Pacing             int `json:"pacing"`
	Tone               int `json:"tone"`
	Worldbuilding      int `json:"worldbuilding"`
	CharacterFocus     int `json:"character_focus"`
	AmbiguityTolerance int `json:"ambiguity_tolerance"`
}

type NarrativeDesires struct {
	Wish            string           `json:"wish"`
	PreferredEnding EndingPreference `json:"preferred_ending"`
	Themes          []string         `json:"themes"`
}

type Consumption struct {
	DailyTimeMinutes  int             `json:"daily_time_minutes"`
	DeliveryFrequency DeliveryCadence `json:"delivery_frequency"`
	PagesPerDelivery  int             `json:"pages_per_delivery"`
}

// ImplicitScores are ResponseSignals averaged over every user turn of a session.
type ImplicitScores struct {
	VocabularyRichness float64 `json:"vocabulary_richness"`
	ResponseBrevity    float64 `json:"response_brevity_score"`
	Engagement         float64 `json:"engagement_index"`
	SampleSize         int     `json:"sample_size"`
}

type ProfileMetadata struct {
	InterviewTurns    int               `json:"interview_turns"`
	CompletionStatus  string            `json:"completion_status"`
	EarlyTermination  bool              `json:"early_termination"`
	TerminationReason TerminationReason `json:"termination_reason"`
}

// Profile is the structured reader profile synthesized at the end of an interview.
type Profile struct {
	TasteAnchors     TasteAnchors      `json:"taste_anchors"`
	StyleSignature   StyleSignature    `json:"style_signature"`
	NarrativeDesires NarrativeDesires  `json:"narrative_desires"`
	Consumption      Consumption       `json:"consumption"`
	Implicit         ImplicitScores    `json:"implicit"`
	Explanations     map[string]string `json:"explanations,omitempty"`
	ReaderArchetype  string            `json:"reader_archetype"`
	Metadata         ProfileMetadata   `json:"_metadata"`
	Reasoning        string            `json:"_reasoning,omitempty"`
}

// Normalize clamps bounded fields into range and trims string lists. It does
// not judge whether the values make sense.
func (p *Profile) Normalize() {
	s := &p.StyleSignature
	for _, v := range []*int{&s.ProseDensity, &s.Pacing, &s.Tone, &s.Worldbuilding, &s.CharacterFocus, &s.AmbiguityTolerance} {
		*v = clampInt(*v, MinStyleScore, MaxStyleScore)
	}
	p.Consumption.DailyTimeMinutes = clampInt(p.Consumption.DailyTimeMinutes, MinDailyMinutes, MaxDailyMinutes)
	p.Consumption.PagesPerDelivery = clampInt(p.Consumption.PagesPerDelivery, MinPagesPerDelivery, MaxPagesPerDelivery)

	p.TasteAnchors.Loves = compact(p.TasteAnchors.Loves)
	p.TasteAnchors.Hates = compact(p.TasteAnchors.Hates)
	p.TasteAnchors.InferredGenres = compact(p.TasteAnchors.InferredGenres)
	p.NarrativeDesires.Themes = compact(p.NarrativeDesires.Themes)
	if len(p.NarrativeDesires.Themes) > MaxThemes {
		p.NarrativeDesires.Themes = p.NarrativeDesires.Themes[:MaxThemes]
	}
	p.ReaderArchetype = strings.TrimSpace(p.ReaderArchetype)
}

// StyleScores returns the style signature keyed by StyleScoreNames.
func (p *Profile) StyleScores() map[string]int {
	s := p.StyleSignature
	return map[string]int{
		"prose_density":       s.ProseDensity,
		"pacing":              s.Pacing,
		"tone":                s.Tone,
		"worldbuilding":       s.Worldbuilding,
		"character_focus":     s.CharacterFocus,
		"ambiguity_tolerance": s.AmbiguityTolerance,
	}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.TasteAnchors.Loves = append([]string(nil), p.TasteAnchors.Loves...)
	out.TasteAnchors.Hates = append([]string(nil), p.TasteAnchors.Hates...)
	out.TasteAnchors.InferredGenres = append([]string(nil), p.TasteAnchors.InferredGenres...)
	out.NarrativeDesires.Themes = append([]string(nil), p.NarrativeDesires.Themes...)
	if p.Explanations != nil {
		out.Explanations = make(map[string]string, len(p.Explanations))
		for k, v := range p.Explanations {
			out.Explanations[k] = v
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func compact(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
