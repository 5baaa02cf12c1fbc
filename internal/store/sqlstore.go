package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wren-reads/wren/internal/models"
)

// Expirer is implemented by backends whose expired rows must be removed explicitly.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// sqlStore holds the checkpoint logic shared by the SQLite and Postgres
// backends. Queries are written with "?" placeholders and rebound per dialect.
// Timestamps are stored as Unix milliseconds so expiry comparisons behave the
// same on both engines.
type sqlStore struct {
	db      *sql.DB
	ttl     time.Duration
	now     func() time.Time
	name    string
	dollars bool
}

func (s *sqlStore) rebind(query string) string {
	if !s.dollars {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullableMillis(t time.Time, ttl time.Duration) interface{} {
	if ttl <= 0 {
		return nil
	}
	return t.Add(ttl).UnixMilli()
}

func (s *sqlStore) save(ctx context.Context, sess *models.Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	now := s.now()
	archetype := ""
	if sess.Profile != nil {
		archetype = sess.Profile.ReaderArchetype
	}
	query := s.rebind(`
		INSERT INTO sessions (session_id, schema_version, payload, turn_count, message_count, is_complete, reader_archetype, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			payload = excluded.payload,
			turn_count = excluded.turn_count,
			message_count = excluded.message_count,
			is_complete = excluded.is_complete,
			reader_archetype = excluded.reader_archetype,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`)
	_, err = s.db.ExecContext(ctx, query,
		sess.ID, SchemaVersion, string(data), sess.TurnCount, len(sess.Messages), sess.IsComplete,
		nilIfEmpty(archetype), now.UnixMilli(), nullableMillis(now, s.ttl),
	)
	if err != nil {
		slog.Error(s.name+".Save: upsert failed", "sessionID", sess.ID, "error", err)
		return fmt.Errorf("%w: save %s: %v", models.ErrStoreUnavailable, sess.ID, err)
	}
	slog.Debug(s.name+".Save: checkpoint stored", "sessionID", sess.ID, "bytes", len(data))
	return nil
}

func (s *sqlStore) load(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT payload FROM sessions WHERE session_id = ? AND (expires_at IS NULL OR expires_at > ?)`),
		sessionID, s.now().UnixMilli(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+".Load: query failed", "sessionID", sessionID, "error", err)
		return nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, sessionID, err)
	}
	return Decode([]byte(payload))
}

func (s *sqlStore) list(ctx context.Context) ([]SessionInfo, error) {
	now := s.now()
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT session_id, turn_count, message_count, is_complete, reader_archetype, updated_at, expires_at
		FROM sessions WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY session_id`), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := []SessionInfo{}
	for rows.Next() {
		var (
			info      SessionInfo
			archetype sql.NullString
			updated   int64
			expires   sql.NullInt64
		)
		if err := rows.Scan(&info.SessionID, &info.TurnCount, &info.MessageCount, &info.IsComplete, &archetype, &updated, &expires); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		info.ReaderArchetype = archetype.String
		info.UpdatedAt = time.UnixMilli(updated)
		if expires.Valid {
			info.ExpiresIn = time.UnixMilli(expires.Int64).Sub(now)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

// DeleteExpired removes rows whose TTL has passed and returns how many were removed.
func (s *sqlStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?`),
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info(s.name+".DeleteExpired: removed expired checkpoints", "count", n)
	}

	if _, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM inbound_dedup WHERE expires_at <= ?`),
		s.now().UnixMilli(),
	); err != nil {
		return n, fmt.Errorf("delete expired inbound ids: %w", err)
	}
	return n, nil
}

func (s *sqlStore) close() error {
	slog.Debug(s.name + ".Close: closing database connection")
	if err := s.db.Close(); err != nil {
		slog.Error(s.name+".Close: close failed", "error", err)
		return err
	}
	return nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
