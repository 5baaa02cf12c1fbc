package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/wren-reads/wren/internal/models"
)

// InMemoryStore keeps encoded checkpoints for the lifetime of the process.
// Entries never expire.
type InMemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	inbound map[string]string // message id -> session id
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte), inbound: make(map[string]string)}
}

// Save stores an encoded copy of the session, so later mutation by the
// caller does not leak into the store.
func (s *InMemoryStore) Save(ctx context.Context, sess *models.Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[sess.ID] = data
	s.mu.Unlock()
	slog.Debug("InMemoryStore.Save: checkpoint stored", "sessionID", sess.ID, "bytes", len(data))
	return nil
}

// Load returns a fresh copy of the session, or nil when absent.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	s.mu.RLock()
	data, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return Decode(data)
}

// List summarizes every stored session ordered by id.
func (s *InMemoryStore) List(ctx context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionInfo, 0, len(s.data))
	for id, data := range s.data {
		sess, err := Decode(data)
		if err != nil {
			slog.Warn("InMemoryStore.List: skipping undecodable checkpoint", "sessionID", id, "error", err)
			continue
		}
		out = append(out, infoFor(sess, 0))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// Backend returns "memory".
func (s *InMemoryStore) Backend() string { return BackendMemory }

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
