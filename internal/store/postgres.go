package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/wren-reads/wren/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists checkpoints in PostgreSQL with a JSONB payload.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "", "ttl", cfg.TTL)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore.NewPostgresStore: open failed", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		slog.Error("PostgresStore.NewPostgresStore: ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		_ = db.Close()
		slog.Error("PostgresStore.NewPostgresStore: migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")
	return &PostgresStore{sqlStore: &sqlStore{db: db, ttl: cfg.TTL, now: cfg.now, name: "PostgresStore", dollars: true}}, nil
}

// Save upserts the checkpoint and resets its expiry.
func (s *PostgresStore) Save(ctx context.Context, sess *models.Session) error {
	return s.save(ctx, sess)
}

// Load returns the live checkpoint or nil.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.load(ctx, sessionID)
}

// List summarizes live checkpoints.
func (s *PostgresStore) List(ctx context.Context) ([]SessionInfo, error) {
	return s.list(ctx)
}

// Backend returns "postgres".
func (s *PostgresStore) Backend() string { return BackendPostgres }

// Close closes the Postgres connection pool.
func (s *PostgresStore) Close() error {
	return s.close()
}
