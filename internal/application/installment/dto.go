package installment

import (
	"time"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePlanRequest creates an installment plan
type CreatePlanRequest struct {
	Actor          access.Actor
	CustomerID     uuid.UUID
	InvoiceID      *uuid.UUID
	TotalAmount    decimal.Decimal
	Count          int
	FirstDueDate   time.Time
	IntervalMonths int
}

// PayInstallmentsRequest pays one amount across a list of installments.
// CashBoxID defaults to the payer's default cash box.
type PayInstallmentsRequest struct {
	Actor          access.Actor
	InstallmentIDs []uuid.UUID
	Amount         decimal.Decimal
	Method         installment.PaymentMethod
	CashBoxID      *uuid.UUID
	Notes          string
	PaidAt         time.Time
	IdempotencyKey string
}

// InstallmentResponse is the read model of an installment
type InstallmentResponse struct {
	ID              uuid.UUID       `json:"id"`
	PlanID          uuid.UUID       `json:"plan_id"`
	Number          int             `json:"number"`
	DueDate         time.Time       `json:"due_date"`
	Amount          decimal.Decimal `json:"amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
}

// ToInstallmentResponse converts an installment to its read model
func ToInstallmentResponse(i *installment.Installment) InstallmentResponse {
	return InstallmentResponse{
		ID:              i.ID,
		PlanID:          i.PlanID,
		Number:          i.Number,
		DueDate:         i.DueDate,
		Amount:          i.Amount,
		PaidAmount:      i.PaidAmount,
		RemainingAmount: i.RemainingAmount,
		Status:          string(i.Status),
	}
}

// PlanResponse is the read model of a plan and its installments
type PlanResponse struct {
	ID              uuid.UUID             `json:"id"`
	TenantID        uuid.UUID             `json:"tenant_id"`
	CustomerID      uuid.UUID             `json:"customer_id"`
	InvoiceID       *uuid.UUID            `json:"invoice_id,omitempty"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	RemainingAmount decimal.Decimal       `json:"remaining_amount"`
	Status          string                `json:"status"`
	CreatedBy       uuid.UUID             `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Installments    []InstallmentResponse `json:"installments,omitempty"`
}

// ToPlanResponse converts a plan to its read model
func ToPlanResponse(p *installment.Plan) PlanResponse {
	resp := PlanResponse{
		ID:              p.ID,
		TenantID:        p.TenantID,
		CustomerID:      p.CustomerID,
		InvoiceID:       p.InvoiceID,
		TotalAmount:     p.TotalAmount,
		RemainingAmount: p.RemainingAmount,
		Status:          string(p.Status),
		CreatedBy:       p.CreatedBy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Installments:    make([]InstallmentResponse, 0, len(p.Installments)),
	}
	for i := range p.Installments {
		resp.Installments = append(resp.Installments, ToInstallmentResponse(&p.Installments[i]))
	}
	return resp
}

// PaymentDetailResponse is the portion of a payment applied to one installment
type PaymentDetailResponse struct {
	InstallmentID uuid.UUID       `json:"installment_id"`
	PlanID        uuid.UUID       `json:"plan_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// PaymentResponse is the read model of a payment
type PaymentResponse struct {
	ID            uuid.UUID               `json:"id"`
	TenantID      uuid.UUID               `json:"tenant_id"`
	CustomerID    uuid.UUID               `json:"customer_id"`
	Amount        decimal.Decimal         `json:"amount"`
	Method        string                  `json:"method"`
	CashBoxID     uuid.UUID               `json:"cash_box_id"`
	LedgerEntryID *uuid.UUID              `json:"ledger_entry_id,omitempty"`
	PaidAt        time.Time               `json:"paid_at"`
	Notes         string                  `json:"notes,omitempty"`
	CreatedBy     uuid.UUID               `json:"created_by"`
	Details       []PaymentDetailResponse `json:"details"`
}

// ToPaymentResponse converts a payment to its read model
func ToPaymentResponse(p *installment.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		TenantID:      p.TenantID,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		CashBoxID:     p.CashBoxID,
		LedgerEntryID: p.LedgerEntryID,
		PaidAt:        p.PaidAt,
		Notes:         p.Notes,
		CreatedBy:     p.CreatedBy,
		Details:       make([]PaymentDetailResponse, 0, len(p.Details)),
	}
	for _, d := range p.Details {
		resp.Details = append(resp.Details, PaymentDetailResponse{
			InstallmentID: d.InstallmentID,
			PlanID:        d.PlanID,
			Amount:        d.Amount,
		})
	}
	return resp
}

// PayInstallmentsResult is the outcome of payInstallments
type PayInstallmentsResult struct {
	Payment              PaymentResponse                 `json:"payment"`
	AffectedInstallments []InstallmentResponse           `json:"affected_installments"`
	LedgerEntry          apptreasury.LedgerEntryResponse `json:"ledger_entry"`
}

// MarkOverdueResult reports a late-marking sweep
type MarkOverdueResult struct {
	Plans        int `json:"plans"`
	Installments int `json:"installments"`
}
