package installment

import (
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentStatus represents the payment state of one installment
type InstallmentStatus string

const (
	InstallmentStatusPending  InstallmentStatus = "pending"
	InstallmentStatusPartial  InstallmentStatus = "partial"
	InstallmentStatusPaid     InstallmentStatus = "paid"
	InstallmentStatusLate     InstallmentStatus = "late"
	InstallmentStatusCanceled InstallmentStatus = "canceled"
)

// String returns the string representation of InstallmentStatus
func (s InstallmentStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusPending,
		InstallmentStatusPartial,
		InstallmentStatusPaid,
		InstallmentStatusLate,
		InstallmentStatusCanceled:
		return true
	}
	return false
}

// Installment is one scheduled partial obligation within a plan.
// Only the allocation engine changes its paid/remaining amounts.
type Installment struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	PlanID          uuid.UUID
	Number          int
	DueDate         time.Time
	Amount          decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          InstallmentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPayable reports whether the installment can still receive money
func (i *Installment) IsPayable() bool {
	return i.Status != InstallmentStatusCanceled && i.RemainingAmount.IsPositive()
}

// Obligation returns the allocation view of the installment
func (i *Installment) Obligation() Obligation {
	return Obligation{
		InstallmentID: i.ID,
		Number:        i.Number,
		DueDate:       i.DueDate,
		Remaining:     i.RemainingAmount,
	}
}

// apply records an allocated portion against the installment
func (i *Installment) apply(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("allocated amount must be positive")
	}
	if i.Status == InstallmentStatusCanceled {
		return shared.NewConflictError("installment is canceled")
	}
	if amount.GreaterThan(i.RemainingAmount) {
		return shared.NewValidationError("allocated amount exceeds installment remaining amount")
	}
	i.PaidAmount = i.PaidAmount.Add(amount)
	i.RemainingAmount = i.RemainingAmount.Sub(amount)
	switch {
	case i.RemainingAmount.IsZero():
		i.Status = InstallmentStatusPaid
	case i.Status != InstallmentStatusLate:
		// A late installment stays late until it is fully paid
		i.Status = InstallmentStatusPartial
	}
	i.UpdatedAt = time.Now()
	return nil
}

// markLate flags an unpaid installment whose due date has passed
func (i *Installment) markLate(asOf time.Time) bool {
	if !i.IsPayable() || i.Status == InstallmentStatusLate {
		return false
	}
	if !i.DueDate.Before(asOf) {
		return false
	}
	i.Status = InstallmentStatusLate
	i.UpdatedAt = time.Now()
	return true
}
