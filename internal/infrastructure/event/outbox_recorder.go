package event

import (
	"context"
	"fmt"

	"github.com/erp/treasury/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxRecorder writes domain events to the outbox table inside the
// caller's transaction, so they are persisted atomically with the ledger
// rows that produced them.
type OutboxRecorder struct {
	serializer *EventSerializer
	repo       *GormOutboxRepository
}

// NewOutboxRecorder creates a recorder bound to tx
func NewOutboxRecorder(serializer *EventSerializer, tx *gorm.DB) *OutboxRecorder {
	return &OutboxRecorder{
		serializer: serializer,
		repo:       NewGormOutboxRepository(tx),
	}
}

// RecorderFactory returns a constructor of transaction-bound recorders,
// suitable for persistence.NewGormTransactionScope
func RecorderFactory(serializer *EventSerializer) func(tx *gorm.DB) shared.EventRecorder {
	return func(tx *gorm.DB) shared.EventRecorder {
		return NewOutboxRecorder(serializer, tx)
	}
}

// Record serializes events into outbox entries
func (r *OutboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := r.serializer.Serialize(event)
		if err != nil {
			return fmt.Errorf("failed to serialize %s: %w", event.EventType(), err)
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload))
	}
	return r.repo.Save(ctx, entries...)
}

var _ shared.EventRecorder = (*OutboxRecorder)(nil)
