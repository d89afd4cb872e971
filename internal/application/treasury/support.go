package treasury

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Metrics receives business measurements from the money-moving services
type Metrics interface {
	// RecordEntry counts a posted ledger entry and its absolute amount
	RecordEntry(ctx context.Context, tenantID uuid.UUID, entryType string, amount decimal.Decimal)
	// RecordRejection counts an operation refused with a domain error code
	RecordRejection(ctx context.Context, tenantID uuid.UUID, operation, code string)
}

type noopMetrics struct{}

func (noopMetrics) RecordEntry(context.Context, uuid.UUID, string, decimal.Decimal) {}
func (noopMetrics) RecordRejection(context.Context, uuid.UUID, string, string)      {}

// NoopMetrics returns a Metrics that discards everything
func NoopMetrics() Metrics {
	return noopMetrics{}
}

const idempotencyKeyPrefix = "treasury:idempotency:"

// IdempotencyGuard runs money-moving operations at most once per
// client-supplied key within a tenant
type IdempotencyGuard struct {
	store shared.IdempotencyStore
	cfg   shared.IdempotencyConfig
}

// NewIdempotencyGuard creates a guard. A nil store disables the guard.
func NewIdempotencyGuard(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, cfg: cfg}
}

// Run executes fn unless key was already used. An empty key always runs fn.
// When fn fails the key is released so the client can retry.
func (g *IdempotencyGuard) Run(ctx context.Context, tenantID uuid.UUID, key string, fn func() error) error {
	if g == nil || g.store == nil || !g.cfg.Enabled || key == "" {
		return fn()
	}
	if len(key) > 128 {
		return shared.NewValidationError("idempotency key cannot exceed 128 characters")
	}

	fullKey := idempotencyKeyPrefix + tenantID.String() + ":" + key
	ttl := g.cfg.TTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	claimed, err := g.store.Claim(ctx, fullKey, ttl)
	if err != nil {
		return fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		return shared.NewConflictError("a request with this idempotency key was already processed")
	}

	if err := fn(); err != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if releaseErr := g.store.Release(releaseCtx, fullKey); releaseErr != nil {
			logger.L(ctx).Warn("failed to release idempotency key",
				zap.String("key", fullKey),
				zap.Error(releaseErr),
			)
		}
		return err
	}
	return nil
}

// ReportFailure classifies an operation failure. Domain errors pass through
// untouched and are counted as rejections. Anything else, and domain errors coded
// Unexpected, is logged with the operation context and wrapped.
func ReportFailure(ctx context.Context, log *zap.Logger, metrics Metrics, op string, tenantID uuid.UUID, err error, fields ...zap.Field) error {
	code := shared.CodeOf(err)
	metrics.RecordRejection(ctx, tenantID, op, code)
	if code != shared.CodeUnexpected {
		return err
	}
	fields = append(fields,
		zap.String("operation", op),
		zap.String("tenant_id", tenantID.String()),
		zap.Error(err),
	)
	logger.WithLogger(ctx, log).Error("treasury operation failed", fields...)
	if shared.IsDomainError(err) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
