package event

import (
	"context"
	"sync"

	"github.com/erp/treasury/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus dispatches events to in-process handlers
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler // eventType -> handlers
	wildcard []shared.EventHandler
	logger   *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]shared.EventHandler),
		logger:   logger,
	}
}

// Publish dispatches events synchronously. A failing or panicking handler is
// logged and does not stop the others.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used; an empty list subscribes to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
		return
	}
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], handler)
	}
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]shared.EventHandler, 0, len(b.handlers[eventType])+len(b.wildcard))
	result = append(result, b.handlers[eventType]...)
	return append(result, b.wildcard...)
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, event)
}

// FanoutPublisher publishes every event to each of its publishers in order
// and fails on the first error, so the outbox entry is retried.
type FanoutPublisher []shared.EventPublisher

// Publish implements shared.EventPublisher
func (f FanoutPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil {
			return err
		}
	}
	return nil
}

// AuditLogHandler writes every delivered event to the structured log
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// Handle implements shared.EventHandler
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info("domain event",
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

// EventTypes implements shared.EventHandler; the handler sees every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

var (
	_ shared.EventBus       = (*InMemoryEventBus)(nil)
	_ shared.EventPublisher = FanoutPublisher(nil)
	_ shared.EventHandler   = (*AuditLogHandler)(nil)
)
