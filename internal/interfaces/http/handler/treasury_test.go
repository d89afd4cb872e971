package handler

import (
	"net/http"
	"testing"
	"time"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
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

func setupTreasuryRouter(actor access.Actor) (*gin.Engine, *MockCashBoxService, *MockLedgerService) {
	boxes := new(MockCashBoxService)
	ledger := new(MockLedgerService)
	h := NewTreasuryHandler(boxes, ledger)

	router := newTestRouter(actor)
	g := router.Group("/treasury")
	g.POST("/cash-box-types", h.CreateType)
	g.GET("/cash-box-types", h.ListTypes)
	g.DELETE("/cash-box-types/:id", h.DeleteType)
	g.POST("/cash-boxes", h.CreateCashBox)
	g.GET("/cash-boxes", h.ListCashBoxes)
	g.GET("/cash-boxes/:id", h.GetCashBox)
	g.DELETE("/cash-boxes/:id", h.DeleteCashBox)
	g.POST("/cash-boxes/:id/default", h.SetDefaultCashBox)
	g.GET("/cash-boxes/:id/balance", h.GetBalance)
	g.GET("/cash-boxes/:id/entries", h.ListEntries)
	g.POST("/cash-boxes/:id/reconcile", h.Reconcile)
	g.POST("/deposits", h.Deposit)
	g.POST("/withdrawals", h.Withdraw)
	g.POST("/transfers", h.Transfer)
	g.POST("/entries/:id/reverse", h.Reverse)
	g.GET("/entries/:id", h.GetEntry)
	return router, boxes, ledger
}

func movementResult(boxID uuid.UUID, balance string) *apptreasury.MovementResult {
	return &apptreasury.MovementResult{
		OperationID: uuid.New(),
		Entries: []apptreasury.LedgerEntryResponse{{
			ID:           uuid.New(),
			CashBoxID:    boxID,
			Type:         "deposit",
			Amount:       decimal.RequireFromString(balance),
			BalanceAfter: decimal.RequireFromString(balance),
		}},
		Balances: []apptreasury.BoxBalance{{CashBoxID: boxID, Balance: decimal.RequireFromString(balance)}},
	}
}

func TestTreasuryHandler_Deposit(t *testing.T) {
	actor := testActor()
	router, _, ledger := setupTreasuryRouter(actor)
	boxID := uuid.New()

	ledger.On("Deposit", mock.Anything, apptreasury.DepositRequest{
		Actor:          actor,
		CashBoxID:      boxID,
		Amount:         decimal.RequireFromString("1000.50"),
		Description:    "opening float",
		IdempotencyKey: "dep-1",
	}).Return(movementResult(boxID, "1000.50"), nil).Once()

	w := performRequest(router, http.MethodPost, "/treasury/deposits", map[string]any{
		"cash_box_id": boxID,
		"amount":      "1000.50",
		"description": "opening float",
	}, middleware.IdempotencyKeyHeader, "dep-1")

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	balances := data["balances"].([]interface{})
	require.Len(t, balances, 1)
	assert.Equal(t, "1000.5", balances[0].(map[string]interface{})["balance"])
	ledger.AssertExpectations(t)
}

func TestTreasuryHandler_Deposit_AcceptsNumericAmount(t *testing.T) {
	actor := testActor()
	router, _, ledger := setupTreasuryRouter(actor)
	boxID := uuid.New()

	ledger.On("Deposit", mock.Anything, mock.MatchedBy(func(req apptreasury.DepositRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(250)) && req.IdempotencyKey == ""
	})).Return(movementResult(boxID, "250"), nil).Once()

	w := performRequest(router, http.MethodPost, "/treasury/deposits", `{"cash_box_id":"`+boxID.String()+`","amount":250}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	ledger.AssertExpectations(t)
}

func TestTreasuryHandler_Deposit_ValidationErrors(t *testing.T) {
	boxID := uuid.New().String()
	tests := []struct {
		name      string
		body      any
		wantCode  string
		wantField string
	}{
		{"zero amount", map[string]any{"cash_box_id": boxID, "amount": "0"}, dto.ErrCodeValidation, "amount"},
		{"negative amount", map[string]any{"cash_box_id": boxID, "amount": "-5"}, dto.ErrCodeValidation, "amount"},
		{"three decimals", map[string]any{"cash_box_id": boxID, "amount": "10.001"}, dto.ErrCodeValidation, "amount"},
		{"missing amount", map[string]any{"cash_box_id": boxID}, dto.ErrCodeValidation, "amount"},
		{"missing cash box", map[string]any{"amount": "10"}, dto.ErrCodeValidation, "cash_box_id"},
		{"malformed json", `{"amount":`, dto.ErrCodeInvalidJSON, ""},
		{"malformed uuid", `{"cash_box_id":"nope","amount":"10"}`, dto.ErrCodeInvalidJSON, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, ledger := setupTreasuryRouter(testActor())

			w := performRequest(router, http.MethodPost, "/treasury/deposits", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantField != "" {
				require.NotEmpty(t, resp.Error.Details)
				assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			}
			ledger.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything)
		})
	}
}

func TestTreasuryHandler_Withdraw_InsufficientFunds(t *testing.T) {
	actor := testActor()
	router, _, ledger := setupTreasuryRouter(actor)
	boxID := uuid.New()

	ledger.On("Withdraw", mock.Anything, mock.AnythingOfType("treasury.WithdrawRequest")).
		Return(nil, shared.NewDomainError(shared.CodeInsufficientFunds, "insufficient funds")).Once()

	w := performRequest(router, http.MethodPost, "/treasury/withdrawals", map[string]any{
		"cash_box_id": boxID,
		"amount":      "1500",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInsufficientFunds, resp.Error.Code)
	ledger.AssertExpectations(t)
}

func TestTreasuryHandler_Transfer(t *testing.T) {
	actor := testActor()
	router, _, ledger := setupTreasuryRouter(actor)
	from, to := uuid.New(), uuid.New()

	ledger.On("Transfer", mock.Anything, apptreasury.TransferRequest{
		Actor:         actor,
		FromCashBoxID: from,
		ToCashBoxID:   to,
		Amount:        decimal.RequireFromString("200"),
	}).Return(movementResult(from, "500"), nil).Once()

	w := performRequest(router, http.MethodPost, "/treasury/transfers", map[string]any{
		"from_cash_box_id": from,
		"to_cash_box_id":   to,
		"amount":           "200",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	ledger.AssertExpectations(t)
}

func TestTreasuryHandler_Transfer_Unauthorized(t *testing.T) {
	router, _, ledger := setupTreasuryRouter(testActor())

	ledger.On("Transfer", mock.Anything, mock.Anything).
		Return(nil, shared.NewDomainError(shared.CodeUnauthorized, "permission denied")).Once()

	w := performRequest(router, http.MethodPost, "/treasury/transfers", map[string]any{
		"from_cash_box_id": uuid.New(),
		"to_cash_box_id":   uuid.New(),
		"amount":           "1",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, decodeResponse(t, w).Error.Code)
}

func TestTreasuryHandler_Reverse(t *testing.T) {
	actor := testActor()
	entryID := uuid.New()

	t.Run("without body", func(t *testing.T) {
		router, _, ledger := setupTreasuryRouter(actor)
		ledger.On("Reverse", mock.Anything, apptreasury.ReverseRequest{
			Actor:          actor,
			EntryID:        entryID,
			IdempotencyKey: "rev-1",
		}).Return(movementResult(uuid.New(), "700"), nil).Once()

		w := performRequest(router, http.MethodPost, "/treasury/entries/"+entryID.String()+"/reverse", nil,
			middleware.IdempotencyKeyHeader, "rev-1")

		assert.Equal(t, http.StatusCreated, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("with description", func(t *testing.T) {
		router, _, ledger := setupTreasuryRouter(actor)
		ledger.On("Reverse", mock.Anything, apptreasury.ReverseRequest{
			Actor:       actor,
			EntryID:     entryID,
			Description: "keyed twice",
		}).Return(movementResult(uuid.New(), "700"), nil).Once()

		w := performRequest(router, http.MethodPost, "/treasury/entries/"+entryID.String()+"/reverse",
			map[string]any{"description": "keyed twice"})

		assert.Equal(t, http.StatusCreated, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("already reversed", func(t *testing.T) {
		router, _, ledger := setupTreasuryRouter(actor)
		ledger.On("Reverse", mock.Anything, mock.Anything).
			Return(nil, shared.NewConflictError("entry already reversed")).Once()

		w := performRequest(router, http.MethodPost, "/treasury/entries/"+entryID.String()+"/reverse", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeConflict, decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		router, _, ledger := setupTreasuryRouter(actor)

		w := performRequest(router, http.MethodPost, "/treasury/entries/xyz/reverse", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		ledger.AssertNotCalled(t, "Reverse", mock.Anything, mock.Anything)
	})
}

func TestTreasuryHandler_CreateCashBox(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	typeID := uuid.New()
	boxID := uuid.New()

	boxes.On("Create", mock.Anything, apptreasury.CreateCashBoxRequest{
		Actor:  actor,
		TypeID: typeID,
		Name:   "Front desk",
	}).Return(&apptreasury.CashBoxResponse{ID: boxID, Name: "Front desk", IsDefault: true}, nil).Once()

	w := performRequest(router, http.MethodPost, "/treasury/cash-boxes", map[string]any{
		"type_id": typeID,
		"name":    "Front desk",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, boxID.String(), data["id"])
	assert.Equal(t, true, data["is_default"])
	boxes.AssertExpectations(t)
}

func TestTreasuryHandler_ListCashBoxes_Filters(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	ownerID := uuid.New()

	boxes.On("List", mock.Anything, actor, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Page == 2 && f.PageSize == 10 &&
			f.Filters["owner_id"] == ownerID.String() &&
			f.Filters["is_default"] == true &&
			f.Filters["search"] == nil
	})).Return(&shared.Paginated[apptreasury.CashBoxResponse]{
		Items:    []apptreasury.CashBoxResponse{{ID: uuid.New(), OwnerID: ownerID}},
		Total:    11,
		Page:     2,
		PageSize: 10,
	}, nil).Once()

	w := performRequest(router, http.MethodGet,
		"/treasury/cash-boxes?page=2&page_size=10&owner_id="+ownerID.String()+"&is_default=true", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(11), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	boxes.AssertExpectations(t)
}

func TestTreasuryHandler_ListCashBoxes_BadQuery(t *testing.T) {
	router, boxes, _ := setupTreasuryRouter(testActor())

	w := performRequest(router, http.MethodGet, "/treasury/cash-boxes?owner_id=nope", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	boxes.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestTreasuryHandler_ListEntries(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	boxID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	boxes.On("ListEntries", mock.Anything, actor, boxID, mock.MatchedBy(func(f shared.Filter) bool {
		got, ok := f.Filters["from"].(time.Time)
		return ok && got.Equal(from) && f.Filters["entry_type"] == "withdraw"
	})).Return(&shared.Paginated[apptreasury.LedgerEntryResponse]{Page: 1, PageSize: 20}, nil).Once()

	w := performRequest(router, http.MethodGet,
		"/treasury/cash-boxes/"+boxID.String()+"/entries?entry_type=withdraw&from=2026-01-01T00:00:00Z", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	boxes.AssertExpectations(t)
}

func TestTreasuryHandler_GetBalance(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	boxID := uuid.New()

	boxes.On("Balance", mock.Anything, actor, boxID).Return(&apptreasury.BalanceResult{
		CashBoxID:    boxID,
		Balance:      decimal.RequireFromString("700"),
		Entries:      5,
		LastSequence: 5,
	}, nil).Once()

	w := performRequest(router, http.MethodGet, "/treasury/cash-boxes/"+boxID.String()+"/balance", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "700", data["balance"])
	assert.Equal(t, float64(5), data["entries"])
}

func TestTreasuryHandler_GetCashBox_NotFound(t *testing.T) {
	router, boxes, _ := setupTreasuryRouter(testActor())
	boxes.On("Get", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, shared.NewNotFoundError("cash box not found")).Once()

	w := performRequest(router, http.MethodGet, "/treasury/cash-boxes/"+uuid.New().String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
}

func TestTreasuryHandler_DeleteCashBox(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	boxID := uuid.New()
	boxes.On("Delete", mock.Anything, actor, boxID).Return(nil).Once()

	w := performRequest(router, http.MethodDelete, "/treasury/cash-boxes/"+boxID.String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	boxes.AssertExpectations(t)
}

func TestTreasuryHandler_CashBoxTypes(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	typeID := uuid.New()

	boxes.On("CreateType", mock.Anything, apptreasury.CreateCashBoxTypeRequest{Actor: actor, Name: "Safe", Protected: true}).
		Return(&apptreasury.CashBoxTypeResponse{ID: typeID, Name: "Safe", Protected: true}, nil).Once()
	boxes.On("ListTypes", mock.Anything, actor).
		Return([]apptreasury.CashBoxTypeResponse{{ID: typeID, Name: "Safe"}}, nil).Once()
	boxes.On("DeleteType", mock.Anything, actor, typeID).
		Return(shared.NewConflictError("cash box type is in use")).Once()

	w := performRequest(router, http.MethodPost, "/treasury/cash-box-types", map[string]any{"name": "Safe", "protected": true})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodGet, "/treasury/cash-box-types", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w).Data.([]interface{}), 1)

	w = performRequest(router, http.MethodDelete, "/treasury/cash-box-types/"+typeID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	boxes.AssertExpectations(t)
}

func TestTreasuryHandler_Reconcile(t *testing.T) {
	actor := testActor()
	router, boxes, _ := setupTreasuryRouter(actor)
	boxID := uuid.New()

	boxes.On("Reconcile", mock.Anything, actor, boxID).Return(&apptreasury.ReconcileResult{
		CashBoxID:     boxID,
		LedgerBalance: decimal.RequireFromString("700"),
		StoredBalance: decimal.RequireFromString("650"),
		Entries:       4,
		Repaired:      true,
	}, nil).Once()

	w := performRequest(router, http.MethodPost, "/treasury/cash-boxes/"+boxID.String()+"/reconcile", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, true, data["repaired"])
	assert.Equal(t, false, data["consistent"])
}
