package models

import (
	"time"

	"github.com/erp/treasury/internal/domain/installment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentPlanModel is the persistence model for installment plans
type InstallmentPlanModel struct {
	TenantAggregateModel
	CustomerID      uuid.UUID              `gorm:"type:uuid;not null;index"`
	InvoiceID       *uuid.UUID             `gorm:"type:uuid;index"`
	TotalAmount     decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	RemainingAmount decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Status          installment.PlanStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	Installments    []InstallmentModel     `gorm:"foreignKey:PlanID;references:ID"`
}

// TableName returns the table name for GORM
func (InstallmentPlanModel) TableName() string {
	return "installment_plans"
}

// ToDomain converts the persistence model to a domain Plan.
// Installments must have been preloaded.
func (m *InstallmentPlanModel) ToDomain() *installment.Plan {
	plan := &installment.Plan{
		CustomerID:      m.CustomerID,
		InvoiceID:       m.InvoiceID,
		TotalAmount:     m.TotalAmount,
		RemainingAmount: m.RemainingAmount,
		Status:          m.Status,
		Installments:    make([]installment.Installment, 0, len(m.Installments)),
	}
	m.PopulateTenantAggregateRoot(&plan.TenantAggregateRoot)
	for i := range m.Installments {
		plan.Installments = append(plan.Installments, *m.Installments[i].ToDomain())
	}
	return plan
}

// InstallmentPlanModelFromDomain creates a persistence model from a domain Plan
func InstallmentPlanModelFromDomain(p *installment.Plan) *InstallmentPlanModel {
	m := &InstallmentPlanModel{
		CustomerID:      p.CustomerID,
		InvoiceID:       p.InvoiceID,
		TotalAmount:     p.TotalAmount,
		RemainingAmount: p.RemainingAmount,
		Status:          p.Status,
		Installments:    make([]InstallmentModel, 0, len(p.Installments)),
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	for i := range p.Installments {
		m.Installments = append(m.Installments, *InstallmentModelFromDomain(&p.Installments[i]))
	}
	return m
}

// InstallmentModel is the persistence model for a single installment
type InstallmentModel struct {
	ID              uuid.UUID                     `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID                     `gorm:"type:uuid;not null;index"`
	PlanID          uuid.UUID                     `gorm:"type:uuid;not null;uniqueIndex:idx_installment_plan_number,priority:1"`
	Number          int                           `gorm:"not null;uniqueIndex:idx_installment_plan_number,priority:2"`
	DueDate         time.Time                     `gorm:"type:date;not null;index"`
	Amount          decimal.Decimal               `gorm:"type:decimal(18,4);not null"`
	PaidAmount      decimal.Decimal               `gorm:"type:decimal(18,4);not null"`
	RemainingAmount decimal.Decimal               `gorm:"type:decimal(18,4);not null"`
	Status          installment.InstallmentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt       time.Time                     `gorm:"not null"`
	UpdatedAt       time.Time                     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InstallmentModel) TableName() string {
	return "installments"
}

// ToDomain converts the persistence model to a domain Installment
func (m *InstallmentModel) ToDomain() *installment.Installment {
	return &installment.Installment{
		ID:              m.ID,
		TenantID:        m.TenantID,
		PlanID:          m.PlanID,
		Number:          m.Number,
		DueDate:         m.DueDate,
		Amount:          m.Amount,
		PaidAmount:      m.PaidAmount,
		RemainingAmount: m.RemainingAmount,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// InstallmentModelFromDomain creates a persistence model from a domain Installment
func InstallmentModelFromDomain(i *installment.Installment) *InstallmentModel {
	return &InstallmentModel{
		ID:              i.ID,
		TenantID:        i.TenantID,
		PlanID:          i.PlanID,
		Number:          i.Number,
		DueDate:         i.DueDate,
		Amount:          i.Amount,
		PaidAmount:      i.PaidAmount,
		RemainingAmount: i.RemainingAmount,
		Status:          i.Status,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

// InstallmentPaymentModel is the persistence model for installment payments
type InstallmentPaymentModel struct {
	BaseModel
	TenantID      uuid.UUID                 `gorm:"type:uuid;not null;index"`
	CustomerID    uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Method        installment.PaymentMethod `gorm:"type:varchar(20);not null"`
	CashBoxID     uuid.UUID                 `gorm:"type:uuid;not null;index"`
	LedgerEntryID *uuid.UUID                `gorm:"type:uuid;uniqueIndex"`
	PaidAt        time.Time                 `gorm:"not null"`
	Notes         string                    `gorm:"type:varchar(500)"`
	CreatedBy     uuid.UUID                 `gorm:"type:uuid;not null"`
	Details       []PaymentDetailModel      `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (InstallmentPaymentModel) TableName() string {
	return "installment_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *InstallmentPaymentModel) ToDomain() *installment.Payment {
	p := &installment.Payment{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		CustomerID:    m.CustomerID,
		Amount:        m.Amount,
		Method:        m.Method,
		CashBoxID:     m.CashBoxID,
		LedgerEntryID: m.LedgerEntryID,
		PaidAt:        m.PaidAt,
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		Details:       make([]installment.PaymentDetail, 0, len(m.Details)),
	}
	for _, d := range m.Details {
		p.Details = append(p.Details, installment.PaymentDetail{
			ID:            d.ID,
			PaymentID:     d.PaymentID,
			InstallmentID: d.InstallmentID,
			PlanID:        d.PlanID,
			Amount:        d.Amount,
		})
	}
	return p
}

// InstallmentPaymentModelFromDomain creates a persistence model from a domain Payment
func InstallmentPaymentModelFromDomain(p *installment.Payment) *InstallmentPaymentModel {
	m := &InstallmentPaymentModel{
		TenantID:      p.TenantID,
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Method:        p.Method,
		CashBoxID:     p.CashBoxID,
		LedgerEntryID: p.LedgerEntryID,
		PaidAt:        p.PaidAt,
		Notes:         p.Notes,
		CreatedBy:     p.CreatedBy,
		Details:       make([]PaymentDetailModel, 0, len(p.Details)),
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	for _, d := range p.Details {
		m.Details = append(m.Details, PaymentDetailModel{
			ID:            d.ID,
			PaymentID:     d.PaymentID,
			InstallmentID: d.InstallmentID,
			PlanID:        d.PlanID,
			Amount:        d.Amount,
		})
	}
	return m
}

// PaymentDetailModel records the portion of a payment applied to one installment
type PaymentDetailModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InstallmentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	PlanID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PaymentDetailModel) TableName() string {
	return "installment_payment_details"
}

// InstallmentModels lists the installment tables for auto-migration in tests
func InstallmentModels() []any {
	return []any{&InstallmentPlanModel{}, &InstallmentModel{}, &InstallmentPaymentModel{}, &PaymentDetailModel{}}
}
