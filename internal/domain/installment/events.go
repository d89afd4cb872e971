package installment

import (
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePlanCreated     = "installment.plan.created"
	EventTypePlanCompleted   = "installment.plan.completed"
	EventTypePaymentRecorded = "installment.payment.recorded"
	AggregateTypePlan        = "InstallmentPlan"
	AggregateTypePayment     = "InstallmentPayment"
)

// PlanCreatedEvent is raised when a plan and its schedule are generated
type PlanCreatedEvent struct {
	shared.BaseDomainEvent
	PlanID           uuid.UUID       `json:"plan_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	InstallmentCount int             `json:"installment_count"`
}

// NewPlanCreatedEvent creates a PlanCreatedEvent
func NewPlanCreatedEvent(p *Plan) *PlanCreatedEvent {
	return &PlanCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePlanCreated, AggregateTypePlan, p.ID, p.TenantID),
		PlanID:           p.ID,
		CustomerID:       p.CustomerID,
		TotalAmount:      p.TotalAmount,
		InstallmentCount: len(p.Installments),
	}
}

// PlanCompletedEvent is raised when the last installment of a plan is paid
type PlanCompletedEvent struct {
	shared.BaseDomainEvent
	PlanID     uuid.UUID `json:"plan_id"`
	CustomerID uuid.UUID `json:"customer_id"`
}

// NewPlanCompletedEvent creates a PlanCompletedEvent
func NewPlanCompletedEvent(p *Plan) *PlanCompletedEvent {
	return &PlanCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlanCompleted, AggregateTypePlan, p.ID, p.TenantID),
		PlanID:          p.ID,
		CustomerID:      p.CustomerID,
	}
}

// PaymentRecordedEvent is raised for every installment payment
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	CashBoxID     uuid.UUID       `json:"cash_box_id"`
	LedgerEntryID *uuid.UUID      `json:"ledger_entry_id,omitempty"`
	Installments  []uuid.UUID     `json:"installments"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	ids := make([]uuid.UUID, 0, len(p.Details))
	for _, d := range p.Details {
		ids = append(ids, d.InstallmentID)
	}
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		CashBoxID:       p.CashBoxID,
		LedgerEntryID:   p.LedgerEntryID,
		Installments:    ids,
	}
}
