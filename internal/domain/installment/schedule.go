package installment

import (
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxInstallments bounds the size of a generated schedule
const MaxInstallments = 360

// Schedule describes how a plan's total is split over time
type Schedule struct {
	Total          decimal.Decimal
	Count          int
	FirstDueDate   time.Time
	IntervalMonths int
}

// ScheduledInstallment is one line of a generated schedule
type ScheduledInstallment struct {
	Number  int
	DueDate time.Time
	Amount  decimal.Decimal
}

// Generate splits Total into Count equal installments rounded down to
// cents, adding the rounding remainder to the last installment. Due dates
// are IntervalMonths apart starting at FirstDueDate.
func (s Schedule) Generate() ([]ScheduledInstallment, error) {
	if !s.Total.IsPositive() {
		return nil, shared.NewValidationError("plan total must be positive")
	}
	if s.Count < 1 || s.Count > MaxInstallments {
		return nil, shared.NewValidationError("installment count must be between 1 and 360")
	}
	if s.FirstDueDate.IsZero() {
		return nil, shared.NewValidationError("first due date is required")
	}
	interval := s.IntervalMonths
	if interval <= 0 {
		interval = 1
	}

	share := s.Total.Div(decimal.NewFromInt(int64(s.Count))).RoundDown(2)
	if !share.IsPositive() {
		return nil, shared.NewValidationError("plan total is too small for the installment count")
	}

	lines := make([]ScheduledInstallment, s.Count)
	allocated := decimal.Zero
	for i := 0; i < s.Count; i++ {
		amount := share
		if i == s.Count-1 {
			amount = s.Total.Sub(allocated)
		}
		lines[i] = ScheduledInstallment{
			Number:  i + 1,
			DueDate: s.FirstDueDate.AddDate(0, i*interval, 0),
			Amount:  amount,
		}
		allocated = allocated.Add(amount)
	}
	return lines, nil
}
