package installment

import (
	"time"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanStatus represents the lifecycle state of an installment plan
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCanceled  PlanStatus = "canceled"
)

// String returns the string representation of PlanStatus
func (s PlanStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusCanceled:
		return true
	}
	return false
}

// Plan is an installment plan: a customer debt split into scheduled
// installments. It is the aggregate root of its installments.
type Plan struct {
	shared.TenantAggregateRoot
	CustomerID      uuid.UUID
	InvoiceID       *uuid.UUID
	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          PlanStatus
	Installments    []Installment
}

// NewPlan creates a plan and generates its installments from schedule
func NewPlan(tenantID, createdBy, customerID uuid.UUID, invoiceID *uuid.UUID, schedule Schedule) (*Plan, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer is required")
	}
	lines, err := schedule.Generate()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		CustomerID:          customerID,
		InvoiceID:           invoiceID,
		TotalAmount:         schedule.Total,
		RemainingAmount:     schedule.Total,
		Status:              PlanStatusActive,
		Installments:        make([]Installment, 0, len(lines)),
	}
	for _, line := range lines {
		p.Installments = append(p.Installments, Installment{
			ID:              uuid.New(),
			TenantID:        tenantID,
			PlanID:          p.ID,
			Number:          line.Number,
			DueDate:         line.DueDate,
			Amount:          line.Amount,
			PaidAmount:      decimal.Zero,
			RemainingAmount: line.Amount,
			Status:          InstallmentStatusPending,
			CreatedAt:       p.CreatedAt,
			UpdatedAt:       p.CreatedAt,
		})
	}
	p.AddDomainEvent(NewPlanCreatedEvent(p))
	return p, nil
}

// Ownership returns the ownership predicates used by the permission ladder.
// A plan is owned by the user who created it.
func (p *Plan) Ownership() access.Ownership {
	return access.Ownership{
		TenantID:  p.TenantID,
		OwnerID:   p.CreatedBy,
		CreatedBy: p.CreatedBy,
	}
}

// Installment returns the plan's installment with the given id
func (p *Plan) Installment(id uuid.UUID) *Installment {
	for i := range p.Installments {
		if p.Installments[i].ID == id {
			return &p.Installments[i]
		}
	}
	return nil
}

// ApplyAllocation records an allocated portion against one of the plan's
// installments and refreshes the plan's remaining amount and status.
func (p *Plan) ApplyAllocation(a Allocation) error {
	if p.Status == PlanStatusCanceled {
		return shared.NewConflictError("installment plan is canceled")
	}
	inst := p.Installment(a.InstallmentID)
	if inst == nil {
		return shared.NewNotFoundError("installment does not belong to plan")
	}
	if err := inst.apply(a.Amount); err != nil {
		return err
	}
	p.RemainingAmount = p.RemainingAmount.Sub(a.Amount)
	p.IncrementVersion()

	if p.allPaid() && p.Status != PlanStatusCompleted {
		p.Status = PlanStatusCompleted
		p.AddDomainEvent(NewPlanCompletedEvent(p))
	}
	return nil
}

func (p *Plan) allPaid() bool {
	for i := range p.Installments {
		if p.Installments[i].Status != InstallmentStatusPaid {
			return false
		}
	}
	return true
}

// Cancel cancels the plan and its open installments. A plan that has
// received payments cannot be canceled.
func (p *Plan) Cancel(paymentCount int64) error {
	if p.Status != PlanStatusActive {
		return shared.NewConflictError("only active plans can be canceled")
	}
	if paymentCount > 0 {
		return shared.NewConflictError("cannot cancel a plan that has payments")
	}
	now := time.Now()
	for i := range p.Installments {
		p.Installments[i].Status = InstallmentStatusCanceled
		p.Installments[i].UpdatedAt = now
	}
	p.Status = PlanStatusCanceled
	p.IncrementVersion()
	return nil
}

// MarkOverdue flags unpaid installments due before asOf as late and
// returns how many changed.
func (p *Plan) MarkOverdue(asOf time.Time) int {
	if p.Status != PlanStatusActive {
		return 0
	}
	changed := 0
	for i := range p.Installments {
		if p.Installments[i].markLate(asOf) {
			changed++
		}
	}
	if changed > 0 {
		p.IncrementVersion()
	}
	return changed
}

// OutstandingFromInstallments recomputes the remaining amount from the installments
func (p *Plan) OutstandingFromInstallments() decimal.Decimal {
	total := decimal.Zero
	for i := range p.Installments {
		if p.Installments[i].Status != InstallmentStatusCanceled {
			total = total.Add(p.Installments[i].RemainingAmount)
		}
	}
	return total
}
