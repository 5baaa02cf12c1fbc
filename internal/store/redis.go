package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wren-reads/wren/internal/models"
)

// Redis connection settings.
const (
	redisDialTimeout = 5 * time.Second
	redisIOTimeout   = 5 * time.Second
	redisScanCount   = 100
)

// RedisStore persists checkpoints as "{namespace}:{session_id}" keys with a TTL.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	ownClient bool
}

// NewRedisStore connects to the Redis URL from opts and verifies the
// connection with PING.
func NewRedisStore(ctx context.Context, opts ...Option) (*RedisStore, error) {
	cfg := applyOpts(opts)
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL not set")
	}
	ropts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	ropts.DialTimeout = redisDialTimeout
	ropts.ReadTimeout = redisIOTimeout
	ropts.WriteTimeout = redisIOTimeout

	client := redis.NewClient(ropts)
	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		slog.Error("RedisStore.NewRedisStore: ping failed", "addr", ropts.Addr, "error", err)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Debug("RedisStore.NewRedisStore: connected", "addr", ropts.Addr, "namespace", cfg.Namespace, "ttl", cfg.TTL)
	return &RedisStore{client: client, namespace: cfg.Namespace, ttl: cfg.TTL, ownClient: true}, nil
}

// NewRedisStoreWithClient wraps an existing client. Close does not close it.
func NewRedisStoreWithClient(client *redis.Client, opts ...Option) *RedisStore {
	cfg := applyOpts(opts)
	return &RedisStore{client: client, namespace: cfg.Namespace, ttl: cfg.TTL}
}

func (s *RedisStore) key(sessionID string) string {
	return Key(s.namespace, sessionID)
}

// Save writes the checkpoint with SET ... EX ttl.
func (s *RedisStore) Save(ctx context.Context, sess *models.Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore.Save: SET failed", "sessionID", sess.ID, "error", err)
		return fmt.Errorf("%w: redis set %s: %v", models.ErrStoreUnavailable, sess.ID, err)
	}
	slog.Debug("RedisStore.Save: checkpoint stored", "sessionID", sess.ID, "bytes", len(data))
	return nil
}

// Load reads a checkpoint. Missing and expired keys both return (nil, nil).
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore.Load: GET failed", "sessionID", sessionID, "error", err)
		return nil, fmt.Errorf("%w: redis get %s: %v", models.ErrStoreUnavailable, sessionID, err)
	}
	return Decode(data)
}

// List scans the namespace and summarizes each live checkpoint.
func (s *RedisStore) List(ctx context.Context) ([]SessionInfo, error) {
	prefix := s.namespace + ":"
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: redis scan: %v", models.ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return []SessionInfo{}, nil
	}

	pipe := s.client.Pipeline()
	gets := make([]*redis.StringCmd, len(keys))
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, k := range keys {
		gets[i] = pipe.Get(ctx, k)
		ttls[i] = pipe.TTL(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis pipeline: %v", models.ErrStoreUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(keys))
	for i, k := range keys {
		data, err := gets[i].Bytes()
		if err != nil {
			// Expired between SCAN and GET.
			continue
		}
		sess, err := Decode(data)
		if err != nil {
			slog.Warn("RedisStore.List: skipping undecodable checkpoint", "key", k, "error", err)
			continue
		}
		if sess.ID == "" {
			sess.ID = strings.TrimPrefix(k, prefix)
		}
		ttl := ttls[i].Val()
		if ttl < 0 {
			ttl = 0
		}
		out = append(out, infoFor(sess, ttl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// Backend returns "redis".
func (s *RedisStore) Backend() string { return BackendRedis }

// Close closes the client if this store created it.
func (s *RedisStore) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}
