package handler

import (
	"net/http"
	"testing"
	"time"

	appinstallment "github.com/erp/treasury/internal/application/installment"
	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/interfaces/http/dto"
	"github.com/erp/treasury/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func setupInstallmentRouter(actor access.Actor) (*gin.Engine, *MockPlanService, *MockPaymentService) {
	plans := new(MockPlanService)
	payments := new(MockPaymentService)
	h := NewInstallmentHandler(plans, payments)
	h.now = func() time.Time { return fixedNow }

	router := newTestRouter(actor)
	g := router.Group("/installments")
	g.POST("/plans", h.CreatePlan)
	g.GET("/plans", h.ListPlans)
	g.POST("/plans/mark-overdue", h.MarkOverdue)
	g.GET("/plans/:id", h.GetPlan)
	g.POST("/plans/:id/cancel", h.CancelPlan)
	g.GET("/plans/:id/payments", h.ListPlanPayments)
	g.POST("/payments", h.PayInstallments)
	g.GET("/payments/:id", h.GetPayment)
	return router, plans, payments
}

func TestInstallmentHandler_CreatePlan(t *testing.T) {
	actor := testActor()
	router, plans, _ := setupInstallmentRouter(actor)
	customerID := uuid.New()
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	plans.On("Create", mock.Anything, mock.MatchedBy(func(req appinstallment.CreatePlanRequest) bool {
		return req.Actor.UserID == actor.UserID &&
			req.CustomerID == customerID &&
			req.InvoiceID == nil &&
			req.TotalAmount.Equal(decimal.NewFromInt(300)) &&
			req.Count == 3 &&
			req.FirstDueDate.Equal(due) &&
			req.IntervalMonths == 1
	})).Return(&appinstallment.PlanResponse{
		ID:              uuid.New(),
		CustomerID:      customerID,
		TotalAmount:     decimal.NewFromInt(300),
		RemainingAmount: decimal.NewFromInt(300),
		Status:          "active",
	}, nil).Once()

	w := performRequest(router, http.MethodPost, "/installments/plans", map[string]any{
		"customer_id":    customerID,
		"total_amount":   "300",
		"count":          3,
		"first_due_date": due.Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "active", data["status"])
	assert.Equal(t, "300", data["remaining_amount"])
	plans.AssertExpectations(t)
}

func TestInstallmentHandler_CreatePlan_Validation(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"zero count", map[string]any{"customer_id": uuid.New(), "total_amount": "300", "count": 0, "first_due_date": due}, "count"},
		{"too many installments", map[string]any{"customer_id": uuid.New(), "total_amount": "300", "count": 361, "first_due_date": due}, "count"},
		{"missing due date", map[string]any{"customer_id": uuid.New(), "total_amount": "300", "count": 3}, "first_due_date"},
		{"fractional cents", map[string]any{"customer_id": uuid.New(), "total_amount": "300.123", "count": 3, "first_due_date": due}, "total_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, plans, _ := setupInstallmentRouter(testActor())

			w := performRequest(router, http.MethodPost, "/installments/plans", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			require.NotEmpty(t, resp.Error.Details)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			plans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestInstallmentHandler_PayInstallments(t *testing.T) {
	actor := testActor()
	router, _, payments := setupInstallmentRouter(actor)
	i1, i2, i3 := uuid.New(), uuid.New(), uuid.New()

	payments.On("PayInstallments", mock.Anything, appinstallment.PayInstallmentsRequest{
		Actor:          actor,
		InstallmentIDs: []uuid.UUID{i1, i2, i3},
		Amount:         decimal.RequireFromString("180"),
		Method:         installment.PaymentMethodCash,
		PaidAt:         fixedNow,
		IdempotencyKey: "pay-1",
	}).Return(&appinstallment.PayInstallmentsResult{
		Payment: appinstallment.PaymentResponse{ID: uuid.New(), Amount: decimal.RequireFromString("180")},
		AffectedInstallments: []appinstallment.InstallmentResponse{
			{ID: i1, Status: "paid", PaidAmount: decimal.NewFromInt(100), RemainingAmount: decimal.Zero},
			{ID: i2, Status: "partial", PaidAmount: decimal.NewFromInt(80), RemainingAmount: decimal.NewFromInt(70)},
		},
		LedgerEntry: apptreasury.LedgerEntryResponse{ID: uuid.New(), Type: "deposit"},
	}, nil).Once()

	w := performRequest(router, http.MethodPost, "/installments/payments", map[string]any{
		"installment_ids": []uuid.UUID{i1, i2, i3},
		"amount":          "180",
		"method":          "cash",
	}, middleware.IdempotencyKeyHeader, "pay-1")

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	affected := data["affected_installments"].([]interface{})
	require.Len(t, affected, 2)
	assert.Equal(t, "70", affected[1].(map[string]interface{})["remaining_amount"])
	payments.AssertExpectations(t)
}

func TestInstallmentHandler_PayInstallments_Validation(t *testing.T) {
	dup := uuid.New()
	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"no installments", map[string]any{"installment_ids": []uuid.UUID{}, "amount": "10", "method": "cash"}, "installment_ids"},
		{"duplicate installments", map[string]any{"installment_ids": []uuid.UUID{dup, dup}, "amount": "10", "method": "cash"}, "installment_ids"},
		{"unknown method", map[string]any{"installment_ids": []uuid.UUID{dup}, "amount": "10", "method": "barter"}, "method"},
		{"zero amount", map[string]any{"installment_ids": []uuid.UUID{dup}, "amount": "0", "method": "card"}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, payments := setupInstallmentRouter(testActor())

			w := performRequest(router, http.MethodPost, "/installments/payments", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Details)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			payments.AssertNotCalled(t, "PayInstallments", mock.Anything, mock.Anything)
		})
	}
}

func TestInstallmentHandler_PayInstallments_Overpayment(t *testing.T) {
	router, _, payments := setupInstallmentRouter(testActor())
	payments.On("PayInstallments", mock.Anything, mock.Anything).
		Return(nil, shared.NewValidationError("amount exceeds the remaining balance of the selected installments")).Once()

	w := performRequest(router, http.MethodPost, "/installments/payments", map[string]any{
		"installment_ids": []uuid.UUID{uuid.New()},
		"amount":          "9999",
		"method":          "cash",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
}

func TestInstallmentHandler_MarkOverdue(t *testing.T) {
	actor := testActor()

	t.Run("defaults to now", func(t *testing.T) {
		router, plans, _ := setupInstallmentRouter(actor)
		plans.On("MarkOverdue", mock.Anything, actor, fixedNow).
			Return(&appinstallment.MarkOverdueResult{Plans: 2, Installments: 3}, nil).Once()

		w := performRequest(router, http.MethodPost, "/installments/plans/mark-overdue", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]interface{})
		assert.Equal(t, float64(3), data["installments"])
		plans.AssertExpectations(t)
	})

	t.Run("explicit as_of", func(t *testing.T) {
		router, plans, _ := setupInstallmentRouter(actor)
		asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		plans.On("MarkOverdue", mock.Anything, actor, asOf).
			Return(&appinstallment.MarkOverdueResult{}, nil).Once()

		w := performRequest(router, http.MethodPost, "/installments/plans/mark-overdue",
			map[string]any{"as_of": asOf.Format(time.RFC3339)})

		assert.Equal(t, http.StatusOK, w.Code)
		plans.AssertExpectations(t)
	})

	t.Run("requires company tier", func(t *testing.T) {
		router, plans, _ := setupInstallmentRouter(actor)
		plans.On("MarkOverdue", mock.Anything, actor, fixedNow).
			Return(nil, shared.NewDomainError(shared.CodeUnauthorized, "permission denied")).Once()

		w := performRequest(router, http.MethodPost, "/installments/plans/mark-overdue", nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestInstallmentHandler_ListPlans(t *testing.T) {
	actor := testActor()
	router, plans, _ := setupInstallmentRouter(actor)
	customerID := uuid.New()

	plans.On("List", mock.Anything, actor, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["customer_id"] == customerID.String() &&
			f.Filters["status"] == "active" &&
			f.Filters["invoice_id"] == nil
	})).Return(&shared.Paginated[appinstallment.PlanResponse]{Page: 1, PageSize: 20}, nil).Once()

	w := performRequest(router, http.MethodGet, "/installments/plans?status=active&customer_id="+customerID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	plans.AssertExpectations(t)

	w = performRequest(router, http.MethodGet, "/installments/plans?status=overdue", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInstallmentHandler_PlanLifecycle(t *testing.T) {
	actor := testActor()
	router, plans, payments := setupInstallmentRouter(actor)
	planID := uuid.New()
	paymentID := uuid.New()

	plans.On("Get", mock.Anything, actor, planID).
		Return(&appinstallment.PlanResponse{ID: planID, Status: "active"}, nil).Once()
	plans.On("Cancel", mock.Anything, actor, planID).
		Return(&appinstallment.PlanResponse{ID: planID, Status: "canceled"}, nil).Once()
	payments.On("ListPlanPayments", mock.Anything, actor, planID, mock.AnythingOfType("shared.Filter")).
		Return(&shared.Paginated[appinstallment.PaymentResponse]{
			Items: []appinstallment.PaymentResponse{{ID: paymentID}},
			Total: 1, Page: 1, PageSize: 20,
		}, nil).Once()
	payments.On("GetPayment", mock.Anything, actor, paymentID).
		Return(nil, shared.NewNotFoundError("payment not found")).Once()

	w := performRequest(router, http.MethodGet, "/installments/plans/"+planID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodPost, "/installments/plans/"+planID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "canceled", decodeResponse(t, w).Data.(map[string]interface{})["status"])

	w = performRequest(router, http.MethodGet, "/installments/plans/"+planID.String()+"/payments", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeResponse(t, w).Meta.Total)

	w = performRequest(router, http.MethodGet, "/installments/payments/"+paymentID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	plans.AssertExpectations(t)
	payments.AssertExpectations(t)
}
