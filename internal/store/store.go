// Package store provides checkpoint backends for interview sessions.
//
// Every backend persists a versioned JSON encoding of models.Session keyed by
// session id. Durable backends (Redis, Postgres, SQLite) expire entries after
// a configurable TTL; the in-memory backend keeps entries for the process
// lifetime. The store never interprets session contents and provides no
// mutual exclusion: callers serialize access per session id.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/wren-reads/wren/internal/models"
)

// Defaults for checkpoint keys and retention.
const (
	DefaultNamespace = "wren"
	DefaultTTL       = 24 * time.Hour
)

// Backend names reported by Store.Backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Store is the checkpoint contract shared by all backends.
type Store interface {
	// Save writes the full session, replacing any previous checkpoint and
	// restarting its TTL.
	Save(ctx context.Context, s *models.Session) error
	// Load returns the session, or (nil, nil) when it never existed or expired.
	Load(ctx context.Context, sessionID string) (*models.Session, error)
	// List summarizes every live session.
	List(ctx context.Context) ([]SessionInfo, error)
	// Backend names the implementation.
	Backend() string
	Close() error
}

// SessionInfo is a listing row for one checkpoint.
type SessionInfo struct {
	SessionID       string        `json:"session_id"`
	TurnCount       int           `json:"turn_count"`
	IsComplete      bool          `json:"is_complete"`
	MessageCount    int           `json:"message_count"`
	ReaderArchetype string        `json:"reader_archetype,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ExpiresIn       time.Duration `json:"expires_in,omitempty"` // zero when the backend does not expire entries
}

// infoFor builds the listing row for a decoded session.
func infoFor(s *models.Session, expiresIn time.Duration) SessionInfo {
	info := SessionInfo{
		SessionID:    s.ID,
		TurnCount:    s.TurnCount,
		IsComplete:   s.IsComplete,
		MessageCount: len(s.Messages),
		UpdatedAt:    s.UpdatedAt,
		ExpiresIn:    expiresIn,
	}
	if s.Profile != nil {
		info.ReaderArchetype = s.Profile.ReaderArchetype
	}
	return info
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN            string        // Postgres or SQLite DSN
	RedisURL       string        // redis:// URL
	Namespace      string        // key prefix for Redis
	TTL            time.Duration // checkpoint lifetime; zero disables expiry on SQL backends
	RequireDurable bool          // refuse the in-memory fallback
	now            func() time.Time
}

// Option defines a function that modifies store options.
type Option func(*Opts)

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(o *Opts) {
		o.RedisURL = url
	}
}

// WithNamespace sets the key namespace used by Redis.
func WithNamespace(ns string) Option {
	return func(o *Opts) {
		o.Namespace = ns
	}
}

// WithTTL sets how long checkpoints survive after their last save.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.TTL = ttl
	}
}

// WithRequireDurable makes Open fail instead of falling back to memory.
func WithRequireDurable(required bool) Option {
	return func(o *Opts) {
		o.RequireDurable = required
	}
}

// withClock overrides the time source for expiry tests.
func withClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.now = now
	}
}

func applyOpts(opts []Option) Opts {
	cfg := Opts{Namespace: DefaultNamespace, TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return cfg
}

// DetectDSNType returns "postgres" for Postgres URLs or key/value DSNs and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return BackendPostgres
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return BackendPostgres
	}
	return BackendSQLite
}

// Key returns the checkpoint key for a session: "{namespace}:{session_id}".
func Key(namespace, sessionID string) string {
	return namespace + ":" + sessionID
}
