package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wren-reads/wren/internal/models"
)

// DefaultDedupTTL is how long an inbound message id is remembered when the
// store has no checkpoint TTL.
const DefaultDedupTTL = 24 * time.Hour

// Deduper records inbound chat message ids so a message redelivered by the
// transport advances an interview at most once.
type Deduper interface {
	// RecordInbound records messageID for sessionID. It returns false when
	// the id was already recorded.
	RecordInbound(ctx context.Context, messageID, sessionID string) (bool, error)
	// Forget drops messageID so a message whose processing failed can be
	// handled again if it is redelivered.
	Forget(ctx context.Context, messageID string) error
}

// Compile-time checks that every backend deduplicates.
var (
	_ Deduper = (*InMemoryStore)(nil)
	_ Deduper = (*RedisStore)(nil)
	_ Deduper = (*SQLiteStore)(nil)
	_ Deduper = (*PostgresStore)(nil)
)

// DedupKey is the Redis key for an inbound message id. It lives outside the
// "{namespace}:" prefix so session listing never sees it.
func DedupKey(namespace, messageID string) string {
	return namespace + "-inbound:" + messageID
}

func dedupTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultDedupTTL
	}
	return ttl
}

// RecordInbound implements Deduper.
func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inbound[messageID]; ok {
		return false, nil
	}
	s.inbound[messageID] = sessionID
	return true, nil
}

// Forget implements Deduper.
func (s *InMemoryStore) Forget(ctx context.Context, messageID string) error {
	s.mu.Lock()
	delete(s.inbound, messageID)
	s.mu.Unlock()
	return nil
}

// RecordInbound implements Deduper with SET NX.
func (s *RedisStore) RecordInbound(ctx context.Context, messageID, sessionID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, DedupKey(s.namespace, messageID), sessionID, dedupTTL(s.ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis setnx: %v", models.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// Forget implements Deduper.
func (s *RedisStore) Forget(ctx context.Context, messageID string) error {
	if err := s.client.Del(ctx, DedupKey(s.namespace, messageID)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// RecordInbound implements Deduper. The insert is a no-op for a known id.
func (s *sqlStore) RecordInbound(ctx context.Context, messageID, sessionID string) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO inbound_dedup (message_id, session_id, received_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (message_id) DO NOTHING`),
		messageID, nilIfEmpty(sessionID), now.UnixMilli(), now.Add(dedupTTL(s.ttl)).UnixMilli(),
	)
	if err != nil {
		slog.Error(s.name+".RecordInbound: insert failed", "messageID", messageID, "error", err)
		return false, fmt.Errorf("%w: record inbound: %v", models.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Forget implements Deduper.
func (s *sqlStore) Forget(ctx context.Context, messageID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM inbound_dedup WHERE message_id = ?`), messageID); err != nil {
		return fmt.Errorf("%w: forget inbound: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}
