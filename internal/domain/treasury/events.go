package treasury

import (
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeLedgerEntryRecorded = "treasury.ledger.entry_recorded"
	EventTypeLedgerEntryReversed = "treasury.ledger.entry_reversed"
)

// AggregateTypeCashBox names the aggregate in events
const AggregateTypeCashBox = "CashBox"

// LedgerEntryRecordedEvent is raised for every ledger entry appended
type LedgerEntryRecordedEvent struct {
	shared.BaseDomainEvent
	EntryID         uuid.UUID       `json:"entry_id"`
	CashBoxID       uuid.UUID       `json:"cash_box_id"`
	UserID          uuid.UUID       `json:"user_id"`
	EntryType       EntryType       `json:"entry_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	OperationID     uuid.UUID       `json:"operation_id"`
	OriginalEntryID *uuid.UUID      `json:"original_entry_id,omitempty"`
}

// NewLedgerEntryRecordedEvent creates the event for an appended entry
func NewLedgerEntryRecordedEvent(e *LedgerEntry) *LedgerEntryRecordedEvent {
	return &LedgerEntryRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryRecorded, AggregateTypeCashBox, e.CashBoxID, e.TenantID),
		EntryID:         e.ID,
		CashBoxID:       e.CashBoxID,
		UserID:          e.UserID,
		EntryType:       e.Type,
		Amount:          e.Amount,
		BalanceAfter:    e.BalanceAfter,
		OperationID:     e.OperationID,
		OriginalEntryID: e.OriginalEntryID,
	}
}

// LedgerEntryReversedEvent is raised once an entry has been compensated
type LedgerEntryReversedEvent struct {
	shared.BaseDomainEvent
	OriginalEntryID  uuid.UUID   `json:"original_entry_id"`
	ReversalEntryIDs []uuid.UUID `json:"reversal_entry_ids"`
	ReversedBy       uuid.UUID   `json:"reversed_by"`
}

// NewLedgerEntryReversedEvent creates the event for a completed reversal
func NewLedgerEntryReversedEvent(original *LedgerEntry, reversals []*LedgerEntry, reversedBy uuid.UUID) *LedgerEntryReversedEvent {
	ids := make([]uuid.UUID, 0, len(reversals))
	for _, r := range reversals {
		ids = append(ids, r.ID)
	}
	return &LedgerEntryReversedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeLedgerEntryReversed, AggregateTypeCashBox, original.CashBoxID, original.TenantID),
		OriginalEntryID:  original.ID,
		ReversalEntryIDs: ids,
		ReversedBy:       reversedBy,
	}
}
