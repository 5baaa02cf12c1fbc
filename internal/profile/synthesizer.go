// Package profile turns a finished interview transcript into a structured
// reader profile using an external text-generation model and a scoring rubric.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/openai/openai-go"

	"github.com/wren-reads/wren/internal/genai"
	"github.com/wren-reads/wren/internal/models"
)

// Generator is the text-generation collaborator used for synthesis.
type Generator interface {
	GenerateThinkingWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*genai.ThinkingResponse, error)
}

// Metadata describes the interview being synthesized.
type Metadata struct {
	TurnCount int
	Reason    models.TerminationReason
	Implicit  models.ImplicitScores
}

// EarlyTermination reports whether the interview was cut short by the caller.
func (m Metadata) EarlyTermination() bool {
	return m.Reason == models.TerminationEarlyExit
}

// CompletionStatus is "partial" for early exits and "complete" otherwise.
func (m Metadata) CompletionStatus() string {
	if m.EarlyTermination() {
		return models.CompletionStatusPartial
	}
	return models.CompletionStatusComplete
}

// Opts holds configuration options for the Synthesizer.
type Opts struct {
	Rubric *Rubric
}

// Option defines a function that modifies Synthesizer options.
type Option func(*Opts)

// WithRubric sets the initial rubric. Without it the built-in rubric is used.
func WithRubric(r *Rubric) Option {
	return func(o *Opts) {
		o.Rubric = r
	}
}

// Synthesizer produces profiles. The rubric is an immutable snapshot that
// can only be replaced as a whole through ReloadRubric.
type Synthesizer struct {
	gen    Generator
	rubric atomic.Pointer[Rubric]
}

// NewSynthesizer creates a Synthesizer around gen.
func NewSynthesizer(gen Generator, opts ...Option) *Synthesizer {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Rubric == nil {
		cfg.Rubric = DefaultRubric()
	}
	s := &Synthesizer{gen: gen}
	s.rubric.Store(cfg.Rubric)
	return s
}

// Rubric returns the current rubric snapshot.
func (s *Synthesizer) Rubric() *Rubric {
	return s.rubric.Load()
}

// ReloadRubric loads path and, if valid, installs it as the new snapshot.
// An invalid document leaves the current rubric in place.
func (s *Synthesizer) ReloadRubric(path string) (*Rubric, error) {
	r, err := LoadRubric(path)
	if err != nil {
		slog.Warn("Synthesizer.ReloadRubric: keeping current rubric", "path", path, "error", err)
		return s.rubric.Load(), err
	}
	s.rubric.Store(r)
	slog.Info("Synthesizer.ReloadRubric: rubric replaced", "path", path)
	return r, nil
}

// Synthesize renders the transcript and rubric into a prompt, calls the
// model and parses the answer into a Profile. One re-prompt is attempted on
// unparseable output; a second failure returns *models.SynthesisParseError.
// Model call failures return *models.SynthesisError.
func (s *Synthesizer) Synthesize(ctx context.Context, transcript []models.Message, meta Metadata) (*models.Profile, error) {
	rubric := s.rubric.Load()
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(buildSynthesisPrompt(rubric, transcript, meta)),
		openai.UserMessage("Produce the reader profile JSON now."),
	}

	slog.Debug("Synthesizer.Synthesize: requesting profile", "turns", meta.TurnCount, "reason", meta.Reason, "rubric", rubric.Origin())
	resp, err := s.gen.GenerateThinkingWithMessages(ctx, messages)
	if err != nil {
		return nil, &models.SynthesisError{Err: err}
	}

	p, parseErr := ParseProfile(resp.Content)
	if parseErr != nil {
		slog.Warn("Synthesizer.Synthesize: unparseable profile, re-prompting", "error", parseErr, "raw_len", len(resp.Content))
		messages = append(messages,
			openai.AssistantMessage(resp.Content),
			openai.UserMessage(fmt.Sprintf(repromptText, parseErr, strings.Join(models.RequiredProfileFields, ", "))),
		)
		resp, err = s.gen.GenerateThinkingWithMessages(ctx, messages)
		if err != nil {
			return nil, &models.SynthesisError{Err: err}
		}
		p, parseErr = ParseProfile(resp.Content)
		if parseErr != nil {
			slog.Error("Synthesizer.Synthesize: profile still unparseable after re-prompt", "error", parseErr)
			return nil, &models.SynthesisParseError{Raw: resp.Content, Err: parseErr}
		}
	}

	p.Normalize()
	p.Implicit = meta.Implicit
	p.Metadata = models.ProfileMetadata{
		InterviewTurns:    meta.TurnCount,
		CompletionStatus:  meta.CompletionStatus(),
		EarlyTermination:  meta.EarlyTermination(),
		TerminationReason: meta.Reason,
	}
	p.Reasoning = resp.Thinking
	slog.Info("Synthesizer.Synthesize: profile generated", "archetype", p.ReaderArchetype, "turns", meta.TurnCount)
	return p, nil
}
