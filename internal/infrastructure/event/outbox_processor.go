package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// Sent entries older than CleanupRetention are purged every CleanupInterval
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor relays committed ledger and installment events from the
// outbox table to a publisher. Delivery is at least once: an entry that
// fails is retried with backoff until its retry budget is spent, then it
// stays in the table as a dead letter.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	defaults := DefaultOutboxProcessorConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
		now:        time.Now,
	}
}

// Start launches the relay loop and, when enabled, the cleanup loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.every(ctx, p.config.PollInterval, func(ctx context.Context) { p.ProcessBatch(ctx) })
	if p.config.CleanupEnabled && p.config.CleanupInterval > 0 {
		p.every(ctx, p.config.CleanupInterval, p.cleanup)
	}

	p.logger.Info("relay started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop cancels the loops and waits for the in-flight batch or ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// ProcessBatch claims one batch of due entries and publishes them. It
// returns how many were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	due, err := p.repo.FindDeliverable(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("find deliverable entries", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, entry := range due {
		ids = append(ids, entry.ID)
	}
	// Another replica may win some of the rows; only what we claimed is ours
	claimed, err := p.repo.Claim(ctx, ids)
	if err != nil {
		p.logger.Error("claim entries", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, entry := range claimed {
		if p.deliver(ctx, entry) {
			delivered++
		}
	}
	return delivered
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := p.logger.With(
		zap.Stringer("event_id", entry.EventID),
		zap.String("event_type", entry.EventType),
	)

	publishErr := p.publish(ctx, entry)
	if publishErr == nil {
		entry.MarkSent()
	} else {
		entry.MarkFailed(publishErr.Error())
		log.Error("delivery failed", zap.Int("retry_count", entry.RetryCount), zap.Error(publishErr))
		if entry.IsDead() {
			log.Warn("entry dead-lettered",
				zap.String("aggregate_type", entry.AggregateType),
				zap.Stringer("aggregate_id", entry.AggregateID),
			)
		}
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("persist delivery state", zap.String("status", string(entry.Status)), zap.Error(err))
		return false
	}
	if publishErr != nil {
		return false
	}
	log.Debug("delivered")
	return true
}

func (p *OutboxProcessor) publish(ctx context.Context, entry *shared.OutboxEntry) error {
	evt, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, evt)
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("purge sent entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("purged sent entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
