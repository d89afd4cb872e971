package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
)

// EventSerializer handles JSON serialization of domain events for the outbox
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// NewDomainEventSerializer creates a serializer with every treasury and
// installment event registered
func NewDomainEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(treasury.EventTypeLedgerEntryRecorded, &treasury.LedgerEntryRecordedEvent{})
	s.Register(treasury.EventTypeLedgerEntryReversed, &treasury.LedgerEntryReversedEvent{})
	s.Register(installment.EventTypePlanCreated, &installment.PlanCreatedEvent{})
	s.Register(installment.EventTypePlanCompleted, &installment.PlanCompletedEvent{})
	s.Register(installment.EventTypePaymentRecorded, &installment.PaymentRecordedEvent{})
	return s
}

// Register registers an event type for deserialization.
// eventType must match what EventType() returns on the event.
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize serializes a domain event to JSON. Only registered types are
// accepted so that every outbox row can be read back.
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("unknown event type: %s", event.EventType())
	}
	return json.Marshal(event)
}

// Deserialize decodes an outbox payload into its registered event type
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	eventPtr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
