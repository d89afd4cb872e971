package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in.
	// An empty slice means every event.
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus combines publishing with handler subscription
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
}

// EventRecorder persists domain events as part of the caller's unit of
// work. Events are only delivered once the surrounding transaction commits.
type EventRecorder interface {
	Record(ctx context.Context, events ...DomainEvent) error
}
