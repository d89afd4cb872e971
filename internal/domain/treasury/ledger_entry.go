package treasury

import (
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger entry
type EntryType string

const (
	EntryTypeDeposit         EntryType = "deposit"
	EntryTypeWithdraw        EntryType = "withdraw"
	EntryTypeTransferOut     EntryType = "transfer_out"
	EntryTypeTransferIn      EntryType = "transfer_in"
	EntryTypeReverseDeposit  EntryType = "reverse_deposit"
	EntryTypeReverseWithdraw EntryType = "reverse_withdraw"
	EntryTypeReverseTransfer EntryType = "reverse_transfer"
)

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// IsValid returns true if the entry type is known
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeDeposit,
		EntryTypeWithdraw,
		EntryTypeTransferOut,
		EntryTypeTransferIn,
		EntryTypeReverseDeposit,
		EntryTypeReverseWithdraw,
		EntryTypeReverseTransfer:
		return true
	}
	return false
}

// IsReversal returns true for compensating entry types
func (t EntryType) IsReversal() bool {
	switch t {
	case EntryTypeReverseDeposit, EntryTypeReverseWithdraw, EntryTypeReverseTransfer:
		return true
	}
	return false
}

// Counterparty identifies the other side of a transfer leg
type Counterparty struct {
	UserID    uuid.UUID
	CashBoxID uuid.UUID
}

// LedgerEntry is one immutable, signed monetary record against a cash box.
// A negative Amount debits the cash box, a positive Amount credits it.
// Entries are never updated or deleted; corrections are new entries.
type LedgerEntry struct {
	ID                    uuid.UUID
	TenantID              uuid.UUID
	UserID                uuid.UUID // owner of the cash box at posting time
	CashBoxID             uuid.UUID
	CounterpartyUserID    *uuid.UUID
	CounterpartyCashBoxID *uuid.UUID
	CreatedBy             uuid.UUID
	Type                  EntryType
	Amount                decimal.Decimal
	BalanceBefore         decimal.Decimal
	BalanceAfter          decimal.Decimal
	Description           string
	OriginalEntryID       *uuid.UUID
	// OperationID groups every entry written by one financial operation,
	// e.g. both legs of a transfer.
	OperationID uuid.UUID
	// Sequence is the 1-based position of the entry in its cash box's ledger
	Sequence  int64
	CreatedAt time.Time
}

// IsDebit returns true if the entry takes money out of its cash box
func (e *LedgerEntry) IsDebit() bool {
	return e.Amount.IsNegative()
}

// Counterparty returns the other side of the entry, if any
func (e *LedgerEntry) Counterparty() *Counterparty {
	if e.CounterpartyUserID == nil || e.CounterpartyCashBoxID == nil {
		return nil
	}
	return &Counterparty{UserID: *e.CounterpartyUserID, CashBoxID: *e.CounterpartyCashBoxID}
}

// IsConsistent reports whether the balance snapshots agree with the amount
func (e *LedgerEntry) IsConsistent() bool {
	return e.BalanceBefore.Add(e.Amount).Equal(e.BalanceAfter)
}

// Posting describes a movement to be applied to a cash box. Amount is always
// positive; the direction is given by whether it is credited or debited.
type Posting struct {
	Type            EntryType
	Amount          decimal.Decimal
	CreatedBy       uuid.UUID
	Counterparty    *Counterparty
	Description     string
	OriginalEntryID *uuid.UUID
	OperationID     uuid.UUID
}

func (p Posting) validate() error {
	if !p.Type.IsValid() {
		return shared.NewValidationError("invalid ledger entry type")
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if p.CreatedBy == uuid.Nil {
		return shared.NewValidationError("creator is required")
	}
	if p.OperationID == uuid.Nil {
		return shared.NewValidationError("operation id is required")
	}
	return nil
}

// AmountScale is the number of fractional digits money is stored with
const AmountScale = 2

// ValidateAmount checks that a requested amount is positive and representable
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("amount must be positive")
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return shared.NewValidationError("amount cannot have more than 2 decimal places")
	}
	return nil
}
