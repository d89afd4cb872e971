package handler

import (
	"context"
	"time"

	appinstallment "github.com/erp/treasury/internal/application/installment"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/interfaces/http/dto"
	"github.com/erp/treasury/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanUseCases is the installment plan surface used by InstallmentHandler
type PlanUseCases interface {
	Create(ctx context.Context, req appinstallment.CreatePlanRequest) (*appinstallment.PlanResponse, error)
	Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*appinstallment.PlanResponse, error)
	List(ctx context.Context, actor access.Actor, filter shared.Filter) (*shared.Paginated[appinstallment.PlanResponse], error)
	Cancel(ctx context.Context, actor access.Actor, id uuid.UUID) (*appinstallment.PlanResponse, error)
	MarkOverdue(ctx context.Context, actor access.Actor, asOf time.Time) (*appinstallment.MarkOverdueResult, error)
}

// PaymentUseCases is the installment payment surface used by InstallmentHandler
type PaymentUseCases interface {
	PayInstallments(ctx context.Context, req appinstallment.PayInstallmentsRequest) (*appinstallment.PayInstallmentsResult, error)
	GetPayment(ctx context.Context, actor access.Actor, id uuid.UUID) (*appinstallment.PaymentResponse, error)
	ListPlanPayments(ctx context.Context, actor access.Actor, planID uuid.UUID, filter shared.Filter) (*shared.Paginated[appinstallment.PaymentResponse], error)
}

// InstallmentHandler handles installment plan and payment endpoints
type InstallmentHandler struct {
	BaseHandler
	plans    PlanUseCases
	payments PaymentUseCases
	now      func() time.Time
}

// NewInstallmentHandler creates a new InstallmentHandler
func NewInstallmentHandler(plans PlanUseCases, payments PaymentUseCases) *InstallmentHandler {
	return &InstallmentHandler{
		plans:    plans,
		payments: payments,
		now:      time.Now,
	}
}

// CreatePlanRequest is the body of POST /installments/plans
type CreatePlanRequest struct {
	CustomerID     uuid.UUID       `json:"customer_id" binding:"required"`
	InvoiceID      *uuid.UUID      `json:"invoice_id"`
	TotalAmount    decimal.Decimal `json:"total_amount" binding:"required,money"`
	Count          int             `json:"count" binding:"required,min=1,max=360"`
	FirstDueDate   time.Time       `json:"first_due_date" binding:"required"`
	IntervalMonths int             `json:"interval_months" binding:"omitempty,min=1,max=12"`
}

// PayInstallmentsRequest is the body of POST /installments/payments
type PayInstallmentsRequest struct {
	InstallmentIDs []uuid.UUID     `json:"installment_ids" binding:"required,min=1,max=100,unique"`
	Amount         decimal.Decimal `json:"amount" binding:"required,money"`
	Method         string          `json:"method" binding:"required,oneof=cash bank_transfer card cheque other"`
	CashBoxID      *uuid.UUID      `json:"cash_box_id"`
	Notes          string          `json:"notes" binding:"max=500"`
	PaidAt         *time.Time      `json:"paid_at"`
}

// MarkOverdueRequest is the optional body of POST /installments/plans/mark-overdue
type MarkOverdueRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// ListPlansQuery holds the filters of GET /installments/plans
type ListPlansQuery struct {
	dto.ListRequest
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	InvoiceID  string `form:"invoice_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=active completed canceled"`
}

// CreatePlan handles POST /installments/plans
func (h *InstallmentHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	interval := req.IntervalMonths
	if interval == 0 {
		interval = 1
	}
	plan, err := h.plans.Create(c.Request.Context(), appinstallment.CreatePlanRequest{
		Actor:          middleware.GetActor(c),
		CustomerID:     req.CustomerID,
		InvoiceID:      req.InvoiceID,
		TotalAmount:    req.TotalAmount,
		Count:          req.Count,
		FirstDueDate:   req.FirstDueDate.UTC(),
		IntervalMonths: interval,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, plan)
}

// ListPlans handles GET /installments/plans
func (h *InstallmentHandler) ListPlans(c *gin.Context) {
	query := ListPlansQuery{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	filter := query.ToFilter(map[string]string{
		"customer_id": query.CustomerID,
		"invoice_id":  query.InvoiceID,
		"status":      query.Status,
	})
	page, err := h.plans.List(c.Request.Context(), middleware.GetActor(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	listResponse(&h.BaseHandler, c, page)
}

// GetPlan handles GET /installments/plans/:id
func (h *InstallmentHandler) GetPlan(c *gin.Context) {
	id, ok := h.parseID(c, "id", "plan")
	if !ok {
		return
	}
	plan, err := h.plans.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// CancelPlan handles POST /installments/plans/:id/cancel
func (h *InstallmentHandler) CancelPlan(c *gin.Context) {
	id, ok := h.parseID(c, "id", "plan")
	if !ok {
		return
	}
	plan, err := h.plans.Cancel(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// MarkOverdue handles POST /installments/plans/mark-overdue. Without a
// body the current time is used.
func (h *InstallmentHandler) MarkOverdue(c *gin.Context) {
	var req MarkOverdueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	asOf := h.now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	result, err := h.plans.MarkOverdue(c.Request.Context(), middleware.GetActor(c), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PayInstallments handles POST /installments/payments
func (h *InstallmentHandler) PayInstallments(c *gin.Context) {
	var req PayInstallmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	paidAt := h.now().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	result, err := h.payments.PayInstallments(c.Request.Context(), appinstallment.PayInstallmentsRequest{
		Actor:          middleware.GetActor(c),
		InstallmentIDs: req.InstallmentIDs,
		Amount:         req.Amount,
		Method:         installment.PaymentMethod(req.Method),
		CashBoxID:      req.CashBoxID,
		Notes:          req.Notes,
		PaidAt:         paidAt,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// GetPayment handles GET /installments/payments/:id
func (h *InstallmentHandler) GetPayment(c *gin.Context) {
	id, ok := h.parseID(c, "id", "payment")
	if !ok {
		return
	}
	payment, err := h.payments.GetPayment(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// ListPlanPayments handles GET /installments/plans/:id/payments
func (h *InstallmentHandler) ListPlanPayments(c *gin.Context) {
	id, ok := h.parseID(c, "id", "plan")
	if !ok {
		return
	}
	query := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.payments.ListPlanPayments(c.Request.Context(), middleware.GetActor(c), id, query.ToFilter(nil))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	listResponse(&h.BaseHandler, c, page)
}
