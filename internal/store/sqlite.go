package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wren-reads/wren/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists checkpoints in a local SQLite file.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("SQLiteStore.NewSQLiteStore: creating store", "DSN_set", cfg.DSN != "", "ttl", cfg.TTL)

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: open failed", "error", err)
		return nil, err
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		slog.Error("SQLiteStore.NewSQLiteStore: ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		_ = db.Close()
		slog.Error("SQLiteStore.NewSQLiteStore: migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied", "path", dsn)

	return &SQLiteStore{sqlStore: &sqlStore{db: db, ttl: cfg.TTL, now: cfg.now, name: "SQLiteStore"}}, nil
}

// Save upserts the checkpoint and resets its expiry.
func (s *SQLiteStore) Save(ctx context.Context, sess *models.Session) error {
	return s.save(ctx, sess)
}

// Load returns the live checkpoint or nil.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.load(ctx, sessionID)
}

// List summarizes live checkpoints.
func (s *SQLiteStore) List(ctx context.Context) ([]SessionInfo, error) {
	return s.list(ctx)
}

// Backend returns "sqlite".
func (s *SQLiteStore) Backend() string { return BackendSQLite }

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.close()
}
