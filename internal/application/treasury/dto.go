package treasury

import (
	"time"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositRequest credits a cash box
type DepositRequest struct {
	Actor          access.Actor
	CashBoxID      uuid.UUID
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// WithdrawRequest debits a cash box
type WithdrawRequest struct {
	Actor          access.Actor
	CashBoxID      uuid.UUID
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// TransferRequest moves money between two cash boxes
type TransferRequest struct {
	Actor          access.Actor
	FromCashBoxID  uuid.UUID
	ToCashBoxID    uuid.UUID
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// ReverseRequest compensates a previously recorded entry
type ReverseRequest struct {
	Actor          access.Actor
	EntryID        uuid.UUID
	Description    string
	IdempotencyKey string
}

// CreateCashBoxTypeRequest creates a cash box type
type CreateCashBoxTypeRequest struct {
	Actor     access.Actor
	Name      string
	Protected bool
}

// CreateCashBoxRequest creates a cash box. OwnerID defaults to the actor.
type CreateCashBoxRequest struct {
	Actor         access.Actor
	OwnerID       *uuid.UUID
	TypeID        uuid.UUID
	Name          string
	AccountNumber string
	IsDefault     bool
}

// LedgerEntryResponse is the read model of a ledger entry
type LedgerEntryResponse struct {
	ID                    uuid.UUID       `json:"id"`
	TenantID              uuid.UUID       `json:"tenant_id"`
	UserID                uuid.UUID       `json:"user_id"`
	CashBoxID             uuid.UUID       `json:"cash_box_id"`
	CounterpartyUserID    *uuid.UUID      `json:"counterparty_user_id,omitempty"`
	CounterpartyCashBoxID *uuid.UUID      `json:"counterparty_cash_box_id,omitempty"`
	CreatedBy             uuid.UUID       `json:"created_by"`
	Type                  string          `json:"type"`
	Amount                decimal.Decimal `json:"amount"`
	BalanceBefore         decimal.Decimal `json:"balance_before"`
	BalanceAfter          decimal.Decimal `json:"balance_after"`
	Description           string          `json:"description,omitempty"`
	OriginalEntryID       *uuid.UUID      `json:"original_entry_id,omitempty"`
	OperationID           uuid.UUID       `json:"operation_id"`
	Sequence              int64           `json:"sequence"`
	CreatedAt             time.Time       `json:"created_at"`
}

// ToLedgerEntryResponse converts a domain entry to its read model
func ToLedgerEntryResponse(e *treasury.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                    e.ID,
		TenantID:              e.TenantID,
		UserID:                e.UserID,
		CashBoxID:             e.CashBoxID,
		CounterpartyUserID:    e.CounterpartyUserID,
		CounterpartyCashBoxID: e.CounterpartyCashBoxID,
		CreatedBy:             e.CreatedBy,
		Type:                  string(e.Type),
		Amount:                e.Amount,
		BalanceBefore:         e.BalanceBefore,
		BalanceAfter:          e.BalanceAfter,
		Description:           e.Description,
		OriginalEntryID:       e.OriginalEntryID,
		OperationID:           e.OperationID,
		Sequence:              e.Sequence,
		CreatedAt:             e.CreatedAt,
	}
}

// ToLedgerEntryResponses converts entries to read models
func ToLedgerEntryResponses(entries []*treasury.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToLedgerEntryResponse(e))
	}
	return out
}

// CashBoxResponse is the read model of a cash box
type CashBoxResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	TypeID        uuid.UUID       `json:"type_id"`
	Name          string          `json:"name"`
	AccountNumber string          `json:"account_number,omitempty"`
	IsDefault     bool            `json:"is_default"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ToCashBoxResponse converts a cash box to its read model
func ToCashBoxResponse(b *treasury.CashBox) CashBoxResponse {
	return CashBoxResponse{
		ID:            b.ID,
		TenantID:      b.TenantID,
		OwnerID:       b.OwnerID,
		TypeID:        b.TypeID,
		Name:          b.Name,
		AccountNumber: b.AccountNumber,
		IsDefault:     b.IsDefault,
		Balance:       b.Balance,
		CreatedBy:     b.CreatedBy,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

// CashBoxTypeResponse is the read model of a cash box type
type CashBoxTypeResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Protected bool      `json:"protected"`
	CreatedAt time.Time `json:"created_at"`
}

// ToCashBoxTypeResponse converts a cash box type to its read model
func ToCashBoxTypeResponse(t *treasury.CashBoxType) CashBoxTypeResponse {
	return CashBoxTypeResponse{
		ID:        t.ID,
		TenantID:  t.TenantID,
		Name:      t.Name,
		Protected: t.Protected,
		CreatedAt: t.CreatedAt,
	}
}

// BoxBalance is the balance of one cash box after an operation
type BoxBalance struct {
	CashBoxID uuid.UUID       `json:"cash_box_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// MovementResult is the outcome of a deposit, withdrawal, transfer or reversal
type MovementResult struct {
	OperationID uuid.UUID             `json:"operation_id"`
	Entries     []LedgerEntryResponse `json:"entries"`
	Balances    []BoxBalance          `json:"balances"`
}

func newMovementResult(operationID uuid.UUID, w *LedgerWriter) *MovementResult {
	result := &MovementResult{
		OperationID: operationID,
		Entries:     ToLedgerEntryResponses(w.Entries()),
	}
	seen := make(map[uuid.UUID]bool)
	for _, e := range w.Entries() {
		if seen[e.CashBoxID] {
			continue
		}
		seen[e.CashBoxID] = true
		result.Balances = append(result.Balances, BoxBalance{
			CashBoxID: e.CashBoxID,
			Balance:   w.Box(e.CashBoxID).Balance,
		})
	}
	return result
}

// BalanceResult is the ledger-derived balance of a cash box
type BalanceResult struct {
	CashBoxID    uuid.UUID       `json:"cash_box_id"`
	Balance      decimal.Decimal `json:"balance"`
	Entries      int64           `json:"entries"`
	LastSequence int64           `json:"last_sequence"`
}

// ReconcileResult reports a full ledger replay of a cash box
type ReconcileResult struct {
	CashBoxID     uuid.UUID       `json:"cash_box_id"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	Entries       int64           `json:"entries"`
	BrokenEntries []uuid.UUID     `json:"broken_entries,omitempty"`
	Consistent    bool            `json:"consistent"`
	Repaired      bool            `json:"repaired"`
}
