package cache

import (
	"fmt"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreOption configures NewIdempotencyStore
type IdempotencyStoreOption func(*storeOptions)

type storeOptions struct {
	logger        *zap.Logger
	allowFallback bool
}

// WithLogger sets the logger used to report which store was chosen
func WithLogger(logger *zap.Logger) IdempotencyStoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// the in-memory store. Fallback is allowed unless disabled.
func WithInMemoryFallback(allow bool) IdempotencyStoreOption {
	return func(o *storeOptions) {
		o.allowFallback = allow
	}
}

// NewIdempotencyStore returns the Redis store when Redis is enabled and
// reachable, and the in-memory store otherwise. With fallback disabled an
// unreachable Redis is an error.
func NewIdempotencyStore(cfg config.RedisConfig, opts ...IdempotencyStoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.logger.Info("Using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(cfg)
	if err == nil {
		o.logger.Info("Using Redis idempotency store",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
		)
		return store, nil
	}
	if !o.allowFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	o.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
		"retried movements are only deduplicated per instance",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
