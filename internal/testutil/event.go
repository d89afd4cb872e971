package testutil

import (
	"github.com/google/uuid"

	"github.com/erp/treasury/internal/domain/shared"
)

// TestEvent is a minimal domain event for outbox and transaction tests.
type TestEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

// NewTestEvent creates a test event raised by a cash box.
func NewTestEvent(eventType string, tenantID uuid.UUID) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "CashBox", uuid.New(), tenantID),
		Data:            "test-data",
	}
}
