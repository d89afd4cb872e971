package handler

import (
	"context"
	"time"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/interfaces/http/dto"
	"github.com/erp/treasury/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashBoxUseCases is the cash box surface used by TreasuryHandler
type CashBoxUseCases interface {
	CreateType(ctx context.Context, req apptreasury.CreateCashBoxTypeRequest) (*apptreasury.CashBoxTypeResponse, error)
	ListTypes(ctx context.Context, actor access.Actor) ([]apptreasury.CashBoxTypeResponse, error)
	DeleteType(ctx context.Context, actor access.Actor, id uuid.UUID) error
	Create(ctx context.Context, req apptreasury.CreateCashBoxRequest) (*apptreasury.CashBoxResponse, error)
	Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.CashBoxResponse, error)
	List(ctx context.Context, actor access.Actor, filter shared.Filter) (*shared.Paginated[apptreasury.CashBoxResponse], error)
	Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error
	SetDefault(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.CashBoxResponse, error)
	Balance(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.BalanceResult, error)
	Reconcile(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.ReconcileResult, error)
	ListEntries(ctx context.Context, actor access.Actor, cashBoxID uuid.UUID, filter shared.Filter) (*shared.Paginated[apptreasury.LedgerEntryResponse], error)
	GetEntry(ctx context.Context, actor access.Actor, entryID uuid.UUID) (*apptreasury.LedgerEntryResponse, error)
}

// LedgerUseCases is the money movement surface used by TreasuryHandler
type LedgerUseCases interface {
	Deposit(ctx context.Context, req apptreasury.DepositRequest) (*apptreasury.MovementResult, error)
	Withdraw(ctx context.Context, req apptreasury.WithdrawRequest) (*apptreasury.MovementResult, error)
	Transfer(ctx context.Context, req apptreasury.TransferRequest) (*apptreasury.MovementResult, error)
	Reverse(ctx context.Context, req apptreasury.ReverseRequest) (*apptreasury.MovementResult, error)
}

// TreasuryHandler handles cash box and ledger endpoints
type TreasuryHandler struct {
	BaseHandler
	cashBoxes CashBoxUseCases
	ledger    LedgerUseCases
}

// NewTreasuryHandler creates a new TreasuryHandler
func NewTreasuryHandler(cashBoxes CashBoxUseCases, ledger LedgerUseCases) *TreasuryHandler {
	return &TreasuryHandler{
		cashBoxes: cashBoxes,
		ledger:    ledger,
	}
}

// ===================== Request DTOs =====================

// CreateCashBoxTypeRequest is the body of POST /treasury/cash-box-types
type CreateCashBoxTypeRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=100"`
	Protected bool   `json:"protected"`
}

// CreateCashBoxRequest is the body of POST /treasury/cash-boxes
type CreateCashBoxRequest struct {
	OwnerID       *uuid.UUID `json:"owner_id"`
	TypeID        uuid.UUID  `json:"type_id" binding:"required"`
	Name          string     `json:"name" binding:"required,min=1,max=100"`
	AccountNumber string     `json:"account_number" binding:"max=64"`
	IsDefault     bool       `json:"is_default"`
}

// MovementRequest is the body of deposits and withdrawals
type MovementRequest struct {
	CashBoxID   uuid.UUID       `json:"cash_box_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required,money"`
	Description string          `json:"description" binding:"max=500"`
}

// TransferRequest is the body of POST /treasury/transfers
type TransferRequest struct {
	FromCashBoxID uuid.UUID       `json:"from_cash_box_id" binding:"required"`
	ToCashBoxID   uuid.UUID       `json:"to_cash_box_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required,money"`
	Description   string          `json:"description" binding:"max=500"`
}

// ReverseRequest is the optional body of POST /treasury/entries/:id/reverse
type ReverseRequest struct {
	Description string `json:"description" binding:"max=500"`
}

// ListCashBoxesQuery holds the filters of GET /treasury/cash-boxes
type ListCashBoxesQuery struct {
	dto.ListRequest
	OwnerID   string `form:"owner_id" binding:"omitempty,uuid"`
	TypeID    string `form:"type_id" binding:"omitempty,uuid"`
	IsDefault string `form:"is_default" binding:"omitempty,oneof=true false"`
	Search    string `form:"search" binding:"max=100"`
}

// ListEntriesQuery holds the filters of GET /treasury/cash-boxes/:id/entries
type ListEntriesQuery struct {
	dto.ListRequest
	EntryType string     `form:"entry_type" binding:"omitempty,oneof=deposit withdraw transfer_out transfer_in reverse_deposit reverse_withdraw reverse_transfer"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ===================== Cash box types =====================

// CreateType handles POST /treasury/cash-box-types
func (h *TreasuryHandler) CreateType(c *gin.Context) {
	var req CreateCashBoxTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.cashBoxes.CreateType(c.Request.Context(), apptreasury.CreateCashBoxTypeRequest{
		Actor:     middleware.GetActor(c),
		Name:      req.Name,
		Protected: req.Protected,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListTypes handles GET /treasury/cash-box-types
func (h *TreasuryHandler) ListTypes(c *gin.Context) {
	types, err := h.cashBoxes.ListTypes(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, types)
}

// DeleteType handles DELETE /treasury/cash-box-types/:id
func (h *TreasuryHandler) DeleteType(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box type")
	if !ok {
		return
	}
	if err := h.cashBoxes.DeleteType(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ===================== Cash boxes =====================

// CreateCashBox handles POST /treasury/cash-boxes
func (h *TreasuryHandler) CreateCashBox(c *gin.Context) {
	var req CreateCashBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	box, err := h.cashBoxes.Create(c.Request.Context(), apptreasury.CreateCashBoxRequest{
		Actor:         middleware.GetActor(c),
		OwnerID:       req.OwnerID,
		TypeID:        req.TypeID,
		Name:          req.Name,
		AccountNumber: req.AccountNumber,
		IsDefault:     req.IsDefault,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, box)
}

// ListCashBoxes handles GET /treasury/cash-boxes
func (h *TreasuryHandler) ListCashBoxes(c *gin.Context) {
	query := ListCashBoxesQuery{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	filter := query.ToFilter(map[string]string{
		"owner_id": query.OwnerID,
		"type_id":  query.TypeID,
		"search":   query.Search,
	})
	if query.IsDefault != "" {
		filter.Filters["is_default"] = query.IsDefault == "true"
	}
	page, err := h.cashBoxes.List(c.Request.Context(), middleware.GetActor(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	listResponse(&h.BaseHandler, c, page)
}

// GetCashBox handles GET /treasury/cash-boxes/:id
func (h *TreasuryHandler) GetCashBox(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box")
	if !ok {
		return
	}
	box, err := h.cashBoxes.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, box)
}

// DeleteCashBox handles DELETE /treasury/cash-boxes/:id
func (h *TreasuryHandler) DeleteCashBox(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box")
	if !ok {
		return
	}
	if err := h.cashBoxes.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetDefaultCashBox handles POST /treasury/cash-boxes/:id/default
func (h *TreasuryHandler) SetDefaultCashBox(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box")
	if !ok {
		return
	}
	box, err := h.cashBoxes.SetDefault(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, box)
}

// GetBalance handles GET /treasury/cash-boxes/:id/balance
func (h *TreasuryHandler) GetBalance(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box")
	if !ok {
		return
	}
	balance, err := h.cashBoxes.Balance(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// Reconcile handles POST /treasury/cash-boxes/:id/reconcile
func (h *TreasuryHandler) Reconcile(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box")
	if !ok {
		return
	}
	result, err := h.cashBoxes.Reconcile(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListEntries handles GET /treasury/cash-boxes/:id/entries
func (h *TreasuryHandler) ListEntries(c *gin.Context) {
	id, ok := h.parseID(c, "id", "cash box")
	if !ok {
		return
	}
	query := ListEntriesQuery{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	filter := query.ToFilter(map[string]string{"entry_type": query.EntryType})
	if query.From != nil {
		filter.Filters["from"] = query.From.UTC()
	}
	if query.To != nil {
		filter.Filters["to"] = query.To.UTC()
	}
	page, err := h.cashBoxes.ListEntries(c.Request.Context(), middleware.GetActor(c), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	listResponse(&h.BaseHandler, c, page)
}

// GetEntry handles GET /treasury/entries/:id
func (h *TreasuryHandler) GetEntry(c *gin.Context) {
	id, ok := h.parseID(c, "id", "entry")
	if !ok {
		return
	}
	entry, err := h.cashBoxes.GetEntry(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// ===================== Movements =====================

// Deposit handles POST /treasury/deposits
func (h *TreasuryHandler) Deposit(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.ledger.Deposit(c.Request.Context(), apptreasury.DepositRequest{
		Actor:          middleware.GetActor(c),
		CashBoxID:      req.CashBoxID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Withdraw handles POST /treasury/withdrawals
func (h *TreasuryHandler) Withdraw(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.ledger.Withdraw(c.Request.Context(), apptreasury.WithdrawRequest{
		Actor:          middleware.GetActor(c),
		CashBoxID:      req.CashBoxID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Transfer handles POST /treasury/transfers
func (h *TreasuryHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.ledger.Transfer(c.Request.Context(), apptreasury.TransferRequest{
		Actor:          middleware.GetActor(c),
		FromCashBoxID:  req.FromCashBoxID,
		ToCashBoxID:    req.ToCashBoxID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Reverse handles POST /treasury/entries/:id/reverse. The body is optional.
func (h *TreasuryHandler) Reverse(c *gin.Context) {
	id, ok := h.parseID(c, "id", "entry")
	if !ok {
		return
	}
	var req ReverseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	result, err := h.ledger.Reverse(c.Request.Context(), apptreasury.ReverseRequest{
		Actor:          middleware.GetActor(c),
		EntryID:        id,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}
