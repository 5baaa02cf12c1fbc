// Package api exposes interview sessions over HTTP.
//
// Routes:
//
//	POST /sessions                 start (or resume) a session
//	GET  /sessions                 list stored sessions
//	GET  /sessions/{id}            session with its lifecycle state
//	POST /sessions/{id}/turns      record an answer
//	POST /sessions/{id}/complete   end the interview early
//	GET  /sessions/{id}/profile    profile of a finished session
//	GET  /health                   liveness and store backend
//	POST /webhooks/twilio          inbound Twilio messages, when enabled
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wren-reads/wren/internal/interview"
	"github.com/wren-reads/wren/internal/models"
	"github.com/wren-reads/wren/internal/store"
)

// Server defaults.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 2 * time.Minute // covers a synthesis call
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 64 << 10
)

// Interviewer is the engine surface the HTTP layer drives.
type Interviewer interface {
	Start(ctx context.Context, sessionID string) (*models.TurnResult, error)
	Advance(ctx context.Context, sessionID, utterance string) (*models.TurnResult, error)
	ForceComplete(ctx context.Context, sessionID string) (*models.TurnResult, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	List(ctx context.Context) ([]store.SessionInfo, error)
	State(s *models.Session) interview.State
}

// Opts holds optional server settings.
type Opts struct {
	Addr          string
	Backend       string
	TwilioWebhook http.HandlerFunc
	MaxBodyBytes  int64
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithBackend sets the store backend name reported by /health.
func WithBackend(name string) Option {
	return func(o *Opts) { o.Backend = name }
}

// WithTwilioWebhook mounts h at POST /webhooks/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// WithMaxBodyBytes limits JSON request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *Opts) { o.MaxBodyBytes = n }
}

// Server is the Wren HTTP server.
type Server struct {
	interviewer Interviewer
	opts        Opts
	handler     http.Handler
	httpServer  *http.Server
}

// NewServer builds a server with all routes wired.
func NewServer(interviewer Interviewer, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, MaxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{interviewer: interviewer, opts: cfg}
	s.handler = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware, tracingMiddleware)

	r.Get("/health", s.healthHandler)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.startSessionHandler)
		r.Get("/", s.listSessionsHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSessionHandler)
			r.Post("/turns", s.advanceHandler)
			r.Post("/complete", s.completeHandler)
			r.Get("/profile", s.profileHandler)
		})
	})
	if s.opts.TwilioWebhook != nil {
		r.Post("/webhooks/twilio", s.opts.TwilioWebhook)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	slog.Info("Server.Run: shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
