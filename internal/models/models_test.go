package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSessionCloneIsDeep(t *testing.T) {
	now := time.Now()
	s := NewSession("abc", now)
	s.Messages = append(s.Messages, AgentMessage("q1", "because", now), UserMessage("a1", now))
	s.TurnCount = 1
	s.CurrentAnalysis = &CoverageSnapshot{TurnCount: 1, Dimensions: map[Dimension]bool{DimensionTasteAnchors: true}}

	c := s.Clone()
	c.Messages[0].Content = "changed"
	*c.Messages[0].Rationale = "changed"
	c.CurrentAnalysis.Dimensions[DimensionTasteAnchors] = false
	c.Messages = append(c.Messages, UserMessage("a2", now))

	if s.Messages[0].Content != "q1" {
		t.Errorf("expected original content untouched, got %q", s.Messages[0].Content)
	}
	if *s.Messages[0].Rationale != "because" {
		t.Errorf("expected original rationale untouched, got %q", *s.Messages[0].Rationale)
	}
	if !s.CurrentAnalysis.Dimensions[DimensionTasteAnchors] {
		t.Error("expected original analysis untouched")
	}
	if len(s.Messages) != 2 {
		t.Errorf("expected 2 messages in original, got %d", len(s.Messages))
	}
}

func TestUserMessageCount(t *testing.T) {
	now := time.Now()
	s := NewSession("abc", now)
	s.Messages = []Message{AgentMessage("q", "", now), UserMessage("a", now), AgentMessage("q2", "", now), UserMessage("b", now)}
	if got := s.UserMessageCount(); got != 2 {
		t.Errorf("expected 2 user messages, got %d", got)
	}
	last, ok := s.LastAgentMessage()
	if !ok || last.Content != "q2" {
		t.Errorf("expected last agent message q2, got %+v", last)
	}
}

func TestAgentMessageOmitsEmptyRationale(t *testing.T) {
	m := AgentMessage("hello", "", time.Now())
	if m.Rationale != nil {
		t.Error("expected nil rationale for empty text")
	}
}

func TestProfileNormalize(t *testing.T) {
	p := Profile{
		StyleSignature: StyleSignature{ProseDensity: 140, Pacing: -3, Tone: 50},
		Consumption:    Consumption{DailyTimeMinutes: -10, PagesPerDelivery: 0},
		NarrativeDesires: NarrativeDesires{
			Themes: []string{"a", " ", "b", "c", "d", "e", "f", "g", "h", "i"},
		},
		ReaderArchetype: "  The Night Reader ",
	}
	p.Normalize()

	if p.StyleSignature.ProseDensity != 100 || p.StyleSignature.Pacing != 0 || p.StyleSignature.Tone != 50 {
		t.Errorf("style scores not clamped: %+v", p.StyleSignature)
	}
	if p.Consumption.DailyTimeMinutes != 0 || p.Consumption.PagesPerDelivery != 1 {
		t.Errorf("consumption not clamped: %+v", p.Consumption)
	}
	if len(p.NarrativeDesires.Themes) != MaxThemes {
		t.Errorf("expected %d themes, got %d", MaxThemes, len(p.NarrativeDesires.Themes))
	}
	if p.ReaderArchetype != "The Night Reader" {
		t.Errorf("archetype not trimmed: %q", p.ReaderArchetype)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"generation", &GenerationError{SessionID: "s", Err: errors.New("timeout")}, true},
		{"wrapped synthesis", fmt.Errorf("advance: %w", &SynthesisError{Err: errors.New("503")}), true},
		{"parse", &SynthesisParseError{Raw: "nope", Err: errors.New("bad json")}, false},
		{"store", fmt.Errorf("save: %w", ErrStoreUnavailable), true},
		{"complete", ErrSessionAlreadyComplete, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
