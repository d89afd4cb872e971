package treasury

import (
	"strings"
	"time"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashBox is a named monetary bucket owned by a user within a company.
//
// Its balance is derived from the ledger. Balance and LastSequence are a
// projection that is refreshed from the ledger (Sync) every time the box is
// locked for writing, and then advanced by each posting in the same
// transaction. They are never trusted on their own.
type CashBox struct {
	shared.TenantAggregateRoot
	OwnerID       uuid.UUID
	TypeID        uuid.UUID
	Name          string
	AccountNumber string
	IsDefault     bool
	Balance       decimal.Decimal
	LastSequence  int64

	synced bool
}

var errNotSynced = shared.NewDomainError(shared.CodeUnexpected, "cash box balance was not loaded from the ledger")

// NewCashBox creates a new, empty cash box
func NewCashBox(tenantID, ownerID, createdBy, typeID uuid.UUID, name string) (*CashBox, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID cannot be empty")
	}
	if ownerID == uuid.Nil {
		return nil, shared.NewValidationError("owner cannot be empty")
	}
	if typeID == uuid.Nil {
		return nil, shared.NewValidationError("cash box type is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("cash box name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("cash box name cannot exceed 100 characters")
	}
	return &CashBox{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		OwnerID:             ownerID,
		TypeID:              typeID,
		Name:                name,
		Balance:             decimal.Zero,
	}, nil
}

// WithAccountNumber links an external account number
func (b *CashBox) WithAccountNumber(accountNumber string) *CashBox {
	b.AccountNumber = strings.TrimSpace(accountNumber)
	return b
}

// Ownership returns the ownership predicates used by the permission ladder
func (b *CashBox) Ownership() access.Ownership {
	return access.Ownership{
		TenantID:  b.TenantID,
		OwnerID:   b.OwnerID,
		CreatedBy: b.CreatedBy,
	}
}

// MarkDefault flags this box as its owner's default
func (b *CashBox) MarkDefault() {
	if b.IsDefault {
		return
	}
	b.IsDefault = true
	b.IncrementVersion()
}

// Sync loads the authoritative ledger tally into the box. It must be called
// while the box is locked, before any posting.
func (b *CashBox) Sync(t Tally) {
	b.Balance = t.Balance
	b.LastSequence = t.LastSequence
	b.synced = true
}

// IsSynced reports whether the balance has been loaded from the ledger
func (b *CashBox) IsSynced() bool {
	return b.synced
}

// Credit appends a positive entry to the box
func (b *CashBox) Credit(p Posting) (*LedgerEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return b.post(p, p.Amount)
}

// Debit appends a negative entry to the box. It fails with InsufficientFunds
// when the derived balance does not cover the amount.
func (b *CashBox) Debit(p Posting) (*LedgerEntry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !b.synced {
		return nil, errNotSynced
	}
	if b.Balance.LessThan(p.Amount) {
		return nil, shared.ErrInsufficientFunds
	}
	return b.post(p, p.Amount.Neg())
}

func (b *CashBox) post(p Posting, signed decimal.Decimal) (*LedgerEntry, error) {
	if !b.synced {
		return nil, errNotSynced
	}
	entry := &LedgerEntry{
		ID:              uuid.New(),
		TenantID:        b.TenantID,
		UserID:          b.OwnerID,
		CashBoxID:       b.ID,
		CreatedBy:       p.CreatedBy,
		Type:            p.Type,
		Amount:          signed,
		BalanceBefore:   b.Balance,
		BalanceAfter:    b.Balance.Add(signed),
		Description:     p.Description,
		OriginalEntryID: p.OriginalEntryID,
		OperationID:     p.OperationID,
		Sequence:        b.LastSequence + 1,
		CreatedAt:       time.Now(),
	}
	if p.Counterparty != nil {
		userID, boxID := p.Counterparty.UserID, p.Counterparty.CashBoxID
		entry.CounterpartyUserID = &userID
		entry.CounterpartyCashBoxID = &boxID
	}

	b.Balance = entry.BalanceAfter
	b.LastSequence = entry.Sequence
	b.IncrementVersion()
	b.AddDomainEvent(NewLedgerEntryRecordedEvent(entry))
	return entry, nil
}

// EnsureDeletable returns Conflict if the box has ledger history or its type is protected
func (b *CashBox) EnsureDeletable(entries int64, boxType *CashBoxType) error {
	if entries > 0 {
		return shared.NewConflictError("cannot delete a cash box with ledger entries")
	}
	if boxType != nil && boxType.Protected {
		return shared.NewConflictError("cannot delete a cash box of a protected type")
	}
	return nil
}
