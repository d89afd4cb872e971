package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// RedisIdempotencyStore shares idempotency keys between server instances.
// A key is claimed with SET NX, so of two concurrent retries of the same
// deposit or transfer exactly one reaches the ledger.
type RedisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisIdempotencyStore connects to Redis and verifies the connection
func NewRedisIdempotencyStore(cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisIdempotencyStore{client: client}, nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client
func NewRedisIdempotencyStoreWithClient(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// Claim reserves key for ttl. The stored value is the claim time, which
// helps when tracing a rejected retry.
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release drops a claim so the key can be used again
func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisIdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *RedisIdempotencyStore) Client() *redis.Client {
	return s.client
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
