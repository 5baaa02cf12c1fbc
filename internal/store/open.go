package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wren-reads/wren/internal/models"
)

// Open selects the checkpoint backend once, at startup. Configured durable
// backends are tried in order (Redis, then the SQL DSN); if none connects the
// in-memory store is returned and the failure is logged, unless
// WithRequireDurable was given, in which case the error is returned wrapped
// in models.ErrStoreUnavailable. The choice never changes afterwards.
func Open(ctx context.Context, opts ...Option) (Store, error) {
	cfg := applyOpts(opts)

	var failures []error
	if cfg.RedisURL != "" {
		s, err := NewRedisStore(ctx, opts...)
		if err == nil {
			slog.Info("Store.Open: using redis checkpoint store", "namespace", cfg.Namespace, "ttl", cfg.TTL)
			return s, nil
		}
		failures = append(failures, fmt.Errorf("redis: %w", err))
	}

	if cfg.DSN != "" {
		var (
			s   Store
			err error
		)
		switch DetectDSNType(cfg.DSN) {
		case BackendPostgres:
			s, err = NewPostgresStore(opts...)
		default:
			s, err = NewSQLiteStore(opts...)
		}
		if err == nil {
			slog.Info("Store.Open: using SQL checkpoint store", "backend", s.Backend(), "ttl", cfg.TTL)
			return s, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", DetectDSNType(cfg.DSN), err))
	}

	if len(failures) == 0 {
		if cfg.RequireDurable {
			return nil, fmt.Errorf("%w: no durable backend configured", models.ErrStoreUnavailable)
		}
		slog.Info("Store.Open: no durable backend configured, using in-memory store")
		return NewInMemoryStore(), nil
	}

	err := fmt.Errorf("%w: %w", models.ErrStoreUnavailable, errors.Join(failures...))
	if cfg.RequireDurable {
		slog.Error("Store.Open: durable store required but unavailable", "error", err)
		return nil, err
	}
	slog.Warn("Store.Open: durable store unavailable, falling back to in-memory store", "error", err)
	return NewInMemoryStore(), nil
}
