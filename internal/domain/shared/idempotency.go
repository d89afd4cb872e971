package shared

import (
	"context"
	"time"
)

// IdempotencyStore records client-supplied idempotency keys for
// money-moving requests so that a retried request is not applied twice.
type IdempotencyStore interface {
	// Claim reserves key for ttl. It returns false if the key was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim, used when the guarded operation failed and the
	// client must be allowed to retry with the same key.
	Release(ctx context.Context, key string) error

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
