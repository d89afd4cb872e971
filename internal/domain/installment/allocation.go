package installment

import (
	"sort"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Obligation is the outstanding part of one installment
type Obligation struct {
	InstallmentID uuid.UUID
	Number        int
	DueDate       time.Time
	Remaining     decimal.Decimal
}

// Allocation is the portion of a payment assigned to one installment
type Allocation struct {
	InstallmentID   uuid.UUID
	Amount          decimal.Decimal
	RemainingBefore decimal.Decimal
	RemainingAfter  decimal.Decimal
}

// AllocationResult is the outcome of distributing a payment
type AllocationResult struct {
	Allocations    []Allocation
	TotalAllocated decimal.Decimal
}

// Allocate distributes amount over the obligations, earliest due date first
// (ties broken by installment number, then by the caller's order). Each
// obligation receives min(remaining, amount left); obligations that would
// receive nothing are omitted from the result.
//
// The amount must be positive and must not exceed the total outstanding:
// there is no credit-forward of overpayments. Duplicate installments are
// rejected.
func Allocate(amount decimal.Decimal, obligations []Obligation) (AllocationResult, error) {
	if !amount.IsPositive() {
		return AllocationResult{}, shared.NewValidationError("payment amount must be positive")
	}
	if len(obligations) == 0 {
		return AllocationResult{}, shared.NewValidationError("at least one installment is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(obligations))
	outstanding := decimal.Zero
	for _, o := range obligations {
		if _, dup := seen[o.InstallmentID]; dup {
			return AllocationResult{}, shared.NewValidationError("duplicate installment " + o.InstallmentID.String())
		}
		seen[o.InstallmentID] = struct{}{}
		if o.Remaining.IsPositive() {
			outstanding = outstanding.Add(o.Remaining)
		}
	}
	if amount.GreaterThan(outstanding) {
		return AllocationResult{}, shared.NewValidationError(
			"payment of " + amount.String() + " exceeds outstanding balance of " + outstanding.String())
	}

	ordered := make([]Obligation, len(obligations))
	copy(ordered, obligations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].DueDate.Equal(ordered[j].DueDate) {
			return ordered[i].DueDate.Before(ordered[j].DueDate)
		}
		return ordered[i].Number < ordered[j].Number
	})

	left := amount
	result := AllocationResult{TotalAllocated: decimal.Zero}
	for _, o := range ordered {
		if !left.IsPositive() {
			break
		}
		if !o.Remaining.IsPositive() {
			continue
		}
		portion := decimal.Min(left, o.Remaining)
		result.Allocations = append(result.Allocations, Allocation{
			InstallmentID:   o.InstallmentID,
			Amount:          portion,
			RemainingBefore: o.Remaining,
			RemainingAfter:  o.Remaining.Sub(portion),
		})
		left = left.Sub(portion)
		result.TotalAllocated = result.TotalAllocated.Add(portion)
	}
	return result, nil
}
