package installment

import (
	"strings"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how an installment payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid returns true if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCheque, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is one payment operation, however many installments it covers
type Payment struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	CustomerID    uuid.UUID
	Amount        decimal.Decimal
	Method        PaymentMethod
	CashBoxID     uuid.UUID
	LedgerEntryID *uuid.UUID
	PaidAt        time.Time
	Notes         string
	CreatedBy     uuid.UUID
	Details       []PaymentDetail
}

// PaymentDetail is the portion of a payment allocated to one installment
type PaymentDetail struct {
	ID            uuid.UUID
	PaymentID     uuid.UUID
	InstallmentID uuid.UUID
	PlanID        uuid.UUID
	Amount        decimal.Decimal
}

// NewPayment creates a payment and its details from an allocation result.
// planOf maps each allocated installment to its plan.
func NewPayment(
	tenantID, customerID, cashBoxID, createdBy uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	result AllocationResult,
	planOf map[uuid.UUID]uuid.UUID,
) (*Payment, error) {
	if !method.IsValid() {
		return nil, shared.NewValidationError("invalid payment method")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("payment amount must be positive")
	}
	if !result.TotalAllocated.Equal(amount) {
		return nil, shared.NewValidationError("allocated total does not match payment amount")
	}

	p := &Payment{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Amount:     amount,
		Method:     method,
		CashBoxID:  cashBoxID,
		PaidAt:     time.Now(),
		CreatedBy:  createdBy,
		Details:    make([]PaymentDetail, 0, len(result.Allocations)),
	}
	for _, a := range result.Allocations {
		p.Details = append(p.Details, PaymentDetail{
			ID:            uuid.New(),
			PaymentID:     p.ID,
			InstallmentID: a.InstallmentID,
			PlanID:        planOf[a.InstallmentID],
			Amount:        a.Amount,
		})
	}
	return p, nil
}

// WithNotes attaches free-text notes
func (p *Payment) WithNotes(notes string) *Payment {
	p.Notes = strings.TrimSpace(notes)
	return p
}

// WithPaidAt overrides the payment timestamp
func (p *Payment) WithPaidAt(at time.Time) *Payment {
	if !at.IsZero() {
		p.PaidAt = at
	}
	return p
}

// LinkLedgerEntry records the deposit entry created for this payment
func (p *Payment) LinkLedgerEntry(entryID uuid.UUID) {
	p.LedgerEntryID = &entryID
}

// DetailTotal sums the detail amounts
func (p *Payment) DetailTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range p.Details {
		total = total.Add(d.Amount)
	}
	return total
}

// PlanIDs returns the distinct plans touched by the payment
func (p *Payment) PlanIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, d := range p.Details {
		if _, ok := seen[d.PlanID]; ok {
			continue
		}
		seen[d.PlanID] = struct{}{}
		ids = append(ids, d.PlanID)
	}
	return ids
}
