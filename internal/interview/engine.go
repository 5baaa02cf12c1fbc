// Package interview runs the literary interview: it advances one session a
// turn at a time, decides when to stop and hands the transcript to the
// profile synthesizer.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wren-reads/wren/internal/analyzer"
	"github.com/wren-reads/wren/internal/coverage"
	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/profile"
	"github.com/wren-reads/wren/internal/store"
	"github.com/wren-reads/wren/internal/telemetry"
)

// DefaultCallTimeout bounds each generation or synthesis call.
const DefaultCallTimeout = 60 * time.Second

// ProfileSynthesizer turns a finished transcript into a profile.
type ProfileSynthesizer interface {
	Synthesize(ctx context.Context, transcript []models.Message, meta profile.Metadata) (*models.Profile, error)
}

// Opts holds configuration options for the Engine.
type Opts struct {
	Tracker     *coverage.Tracker
	MaxTurns    int
	CallTimeout time.Duration
	Clock       func() time.Time
}

// Option defines a function that modifies Engine options.
type Option func(*Opts)

// WithTracker sets the coverage tracker and therefore the readiness policy.
func WithTracker(t *coverage.Tracker) Option {
	return func(o *Opts) {
		o.Tracker = t
	}
}

// WithMaxTurns sets the turn cap.
func WithMaxTurns(n int) Option {
	return func(o *Opts) {
		o.MaxTurns = n
	}
}

// WithCallTimeout bounds each collaborator call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.CallTimeout = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = now
	}
}

// Engine advances interview sessions. It is safe for concurrent use; calls
// for the same session id are serialised, calls for different ids run in
// parallel.
type Engine struct {
	store       store.Store
	tracker     *coverage.Tracker
	questions   QuestionGenerator
	synth       ProfileSynthesizer
	maxTurns    int
	callTimeout time.Duration
	now         func() time.Time
	locks       *sessionLocks

	tracer       trace.Tracer
	turns        metric.Int64Counter
	terminations metric.Int64Counter
	advanceDur   metric.Float64Histogram
}

// NewEngine wires the engine to its store and collaborators.
func NewEngine(st store.Store, questions QuestionGenerator, synth ProfileSynthesizer, opts ...Option) (*Engine, error) {
	if st == nil || questions == nil || synth == nil {
		return nil, errors.New("interview: store, question generator and synthesizer are required")
	}
	cfg := Opts{MaxTurns: DefaultMaxTurns, CallTimeout: DefaultCallTimeout, Clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxTurns < 1 {
		return nil, fmt.Errorf("interview: max turns must be at least 1, got %d", cfg.MaxTurns)
	}
	if cfg.Tracker == nil {
		t, err := coverage.NewTracker(coverage.DefaultPolicy())
		if err != nil {
			return nil, err
		}
		cfg.Tracker = t
	}

	meter := telemetry.Meter("wren/interview")
	turns, _ := meter.Int64Counter("wren.turns",
		metric.WithDescription("User turns accepted"))
	terminations, _ := meter.Int64Counter("wren.terminations",
		metric.WithDescription("Interviews completed, by termination reason"))
	advanceDur, _ := meter.Float64Histogram("wren.advance.duration",
		metric.WithDescription("Time to advance one turn"),
		metric.WithUnit("ms"))

	return &Engine{
		store:        st,
		tracker:      cfg.Tracker,
		questions:    questions,
		synth:        synth,
		maxTurns:     cfg.MaxTurns,
		callTimeout:  cfg.CallTimeout,
		now:          cfg.Clock,
		locks:        newSessionLocks(),
		tracer:       telemetry.Tracer("wren/interview"),
		turns:        turns,
		terminations: terminations,
		advanceDur:   advanceDur,
	}, nil
}

// MaxTurns returns the configured turn cap.
func (e *Engine) MaxTurns() int { return e.maxTurns }

// Synthesizer returns the profile synthesizer the engine was built with.
func (e *Engine) Synthesizer() ProfileSynthesizer { return e.synth }

// Start opens a session. A new session receives the static initial question
// and is persisted; an unfinished one is resumed with its last question.
func (e *Engine) Start(ctx context.Context, sessionID string) (_ *models.TurnResult, err error) {
	ctx, span := e.startSpan(ctx, "interview.Start", sessionID)
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	unlock, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		if sess.IsComplete {
			return nil, models.ErrSessionAlreadyComplete
		}
		msg := InitialQuestion
		if last, ok := sess.LastAgentMessage(); ok {
			msg = last.Content
		}
		slog.Info("Engine.Start: resuming session", "sessionID", sessionID, "turn", sess.TurnCount)
		return &models.TurnResult{SessionID: sessionID, Message: msg, TurnCount: sess.TurnCount}, nil
	}

	sess = e.newSession(sessionID)
	if err := e.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	slog.Info("Engine.Start: session created", "sessionID", sessionID)
	return &models.TurnResult{SessionID: sessionID, Message: InitialQuestion}, nil
}

// Advance records one user utterance and produces either the next question
// or, when the interview should end, the profile. Nothing is persisted
// unless the whole turn succeeds, so a failed call can be retried with the
// same utterance.
func (e *Engine) Advance(ctx context.Context, sessionID, utterance string) (_ *models.TurnResult, err error) {
	started := e.now()
	ctx, span := e.startSpan(ctx, "interview.Advance", sessionID)
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	if !utf8.ValidString(utterance) {
		return nil, fmt.Errorf("%w: utterance is not valid UTF-8", models.ErrMalformedInput)
	}
	unlock, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	loaded, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = e.newSession(sessionID)
	}
	if loaded.IsComplete {
		return nil, models.ErrSessionAlreadyComplete
	}

	work := loaded.Clone()
	now := e.now()
	work.Messages = append(work.Messages, models.UserMessage(utterance, now))
	work.TurnCount = work.UserMessageCount()

	signals, err := analyzer.Analyze(utterance)
	if err != nil {
		return nil, err
	}
	snap := e.tracker.Evaluate(work.Messages)
	work.CurrentAnalysis = &snap

	decision := Decide(work.TurnCount, snap, e.maxTurns)
	span.SetAttributes(
		attribute.Int("wren.turn", work.TurnCount),
		attribute.Float64("wren.coverage", snap.CoverageScore),
		attribute.Bool("wren.terminate", decision.Terminate),
	)
	slog.Debug("Engine.Advance: turn analysed", "sessionID", sessionID, "turn", work.TurnCount,
		"utterance_len", len(utterance), "coverage", snap.CoverageScore, "ready", snap.ReadyForSummary,
		"terminate", decision.Terminate, "reason", decision.Reason)

	result := &models.TurnResult{SessionID: sessionID, TurnCount: work.TurnCount}
	if decision.Terminate {
		if err := e.finish(ctx, work, decision.Reason); err != nil {
			return nil, err
		}
		result.IsComplete = true
		result.Profile = work.Profile
		result.Message = work.Messages[len(work.Messages)-1].Content
	} else {
		q, err := e.nextQuestion(ctx, QuestionRequest{
			SessionID: sessionID,
			TurnCount: work.TurnCount,
			History:   work.Messages,
			Analysis:  snap,
			Signals:   signals,
		})
		if err != nil {
			return nil, err
		}
		work.Messages = append(work.Messages, models.AgentMessage(q.Text, q.Rationale, e.now()))
		result.Message = q.Text
	}

	if err := e.persist(ctx, work); err != nil {
		return nil, err
	}

	e.turns.Add(ctx, 1)
	e.advanceDur.Record(ctx, float64(e.now().Sub(started).Milliseconds()))
	slog.Info("Engine.Advance: turn completed", "sessionID", sessionID, "turn", work.TurnCount, "complete", work.IsComplete)
	return result, nil
}

// ForceComplete ends an interview immediately and synthesizes a profile from
// whatever has been said so far.
func (e *Engine) ForceComplete(ctx context.Context, sessionID string) (_ *models.TurnResult, err error) {
	ctx, span := e.startSpan(ctx, "interview.ForceComplete", sessionID)
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	unlock, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	loaded, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return nil, models.ErrSessionNotFound
	}
	if loaded.IsComplete {
		return nil, models.ErrSessionAlreadyComplete
	}

	work := loaded.Clone()
	snap := e.tracker.Evaluate(work.Messages)
	work.CurrentAnalysis = &snap
	if err := e.finish(ctx, work, models.TerminationEarlyExit); err != nil {
		return nil, err
	}
	if err := e.persist(ctx, work); err != nil {
		return nil, err
	}
	slog.Info("Engine.ForceComplete: session completed early", "sessionID", sessionID, "turn", work.TurnCount)
	return &models.TurnResult{
		SessionID:  sessionID,
		Message:    work.Messages[len(work.Messages)-1].Content,
		TurnCount:  work.TurnCount,
		IsComplete: true,
		Profile:    work.Profile,
	}, nil
}

// Get returns the stored session or models.ErrSessionNotFound.
func (e *Engine) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	sess, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// List returns a summary of every live session in the store.
func (e *Engine) List(ctx context.Context) ([]store.SessionInfo, error) {
	return e.store.List(ctx)
}

// State returns the lifecycle state of a session.
func (e *Engine) State(s *models.Session) State {
	return StateOf(s, e.maxTurns)
}

func (e *Engine) newSession(id string) *models.Session {
	now := e.now()
	s := models.NewSession(id, now)
	s.Messages = append(s.Messages, models.AgentMessage(InitialQuestion, "", now))
	return s
}

func (e *Engine) nextQuestion(ctx context.Context, req QuestionRequest) (Question, error) {
	ctx, cancel := e.withCallTimeout(ctx)
	defer cancel()
	q, err := e.questions.NextQuestion(ctx, req)
	if err != nil {
		slog.Error("Engine.nextQuestion: generation failed", "sessionID", req.SessionID, "turn", req.TurnCount, "error", err)
		return Question{}, &models.GenerationError{SessionID: req.SessionID, Err: err}
	}
	return q, nil
}

// finish synthesizes the profile into work and appends the closing message.
func (e *Engine) finish(ctx context.Context, work *models.Session, reason models.TerminationReason) error {
	meta := profile.Metadata{
		TurnCount: work.TurnCount,
		Reason:    reason,
		Implicit:  analyzer.AggregateSession(work.Messages),
	}
	callCtx, cancel := e.withCallTimeout(ctx)
	defer cancel()

	p, err := e.synth.Synthesize(callCtx, work.Messages, meta)
	if err != nil {
		slog.Error("Engine.finish: synthesis failed", "sessionID", work.ID, "reason", reason, "error", err)
		var parseErr *models.SynthesisParseError
		var synthErr *models.SynthesisError
		if errors.As(err, &parseErr) || errors.As(err, &synthErr) {
			return err
		}
		return &models.SynthesisError{Err: err}
	}

	work.Profile = p
	work.IsComplete = true
	work.Messages = append(work.Messages, models.AgentMessage(ClosingMessage(p), "", e.now()))
	e.terminations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
	return nil
}

// persist saves work unless the caller has already given up on the call.
func (e *Engine) persist(ctx context.Context, work *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	work.UpdatedAt = e.now()
	return e.store.Save(ctx, work)
}

func (e *Engine) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

func (e *Engine) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("wren.session_id", sessionID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
