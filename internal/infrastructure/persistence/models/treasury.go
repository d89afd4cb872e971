package models

import (
	"time"

	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashBoxTypeModel is the persistence model for cash box types
type CashBoxTypeModel struct {
	BaseModel
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cash_box_type_tenant_name,priority:1"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_cash_box_type_tenant_name,priority:2"`
	Protected bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (CashBoxTypeModel) TableName() string {
	return "cash_box_types"
}

// ToDomain converts the persistence model to a domain CashBoxType
func (m *CashBoxTypeModel) ToDomain() *treasury.CashBoxType {
	return &treasury.CashBoxType{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		Name:       m.Name,
		Protected:  m.Protected,
	}
}

// CashBoxTypeModelFromDomain creates a persistence model from a domain CashBoxType
func CashBoxTypeModelFromDomain(t *treasury.CashBoxType) *CashBoxTypeModel {
	m := &CashBoxTypeModel{
		TenantID:  t.TenantID,
		Name:      t.Name,
		Protected: t.Protected,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// CashBoxModel is the persistence model for cash boxes.
// Balance and LastSequence are a projection of the ledger, refreshed by
// every money-moving operation while the row is locked.
type CashBoxModel struct {
	TenantAggregateModel
	OwnerID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	TypeID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name          string          `gorm:"type:varchar(100);not null"`
	AccountNumber string          `gorm:"type:varchar(64)"`
	IsDefault     bool            `gorm:"not null;default:false"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LastSequence  int64           `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CashBoxModel) TableName() string {
	return "cash_boxes"
}

// ToDomain converts the persistence model to a domain CashBox.
// The returned box is not synced; callers holding the row lock sync it from
// the ledger before moving money.
func (m *CashBoxModel) ToDomain() *treasury.CashBox {
	box := &treasury.CashBox{
		OwnerID:       m.OwnerID,
		TypeID:        m.TypeID,
		Name:          m.Name,
		AccountNumber: m.AccountNumber,
		IsDefault:     m.IsDefault,
		Balance:       m.Balance,
		LastSequence:  m.LastSequence,
	}
	m.PopulateTenantAggregateRoot(&box.TenantAggregateRoot)
	return box
}

// CashBoxModelFromDomain creates a persistence model from a domain CashBox
func CashBoxModelFromDomain(b *treasury.CashBox) *CashBoxModel {
	m := &CashBoxModel{
		OwnerID:       b.OwnerID,
		TypeID:        b.TypeID,
		Name:          b.Name,
		AccountNumber: b.AccountNumber,
		IsDefault:     b.IsDefault,
		Balance:       b.Balance,
		LastSequence:  b.LastSequence,
	}
	m.FromDomainTenantAggregateRoot(b.TenantAggregateRoot)
	return m
}

// LedgerEntryModel is the persistence model for the append-only ledger.
// Rows are inserted once and never updated or deleted.
type LedgerEntryModel struct {
	ID                    uuid.UUID          `gorm:"type:uuid;primary_key"`
	TenantID              uuid.UUID          `gorm:"type:uuid;not null;index"`
	UserID                uuid.UUID          `gorm:"type:uuid;not null;index"`
	CashBoxID             uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_box_sequence,priority:1;uniqueIndex:idx_ledger_reversal_once,priority:2"`
	CounterpartyUserID    *uuid.UUID         `gorm:"type:uuid"`
	CounterpartyCashBoxID *uuid.UUID         `gorm:"type:uuid;index"`
	CreatedBy             uuid.UUID          `gorm:"type:uuid;not null"`
	Type                  treasury.EntryType `gorm:"type:varchar(32);not null"`
	Amount                decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	BalanceBefore         decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	BalanceAfter          decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Description           string             `gorm:"type:varchar(500)"`
	OriginalEntryID       *uuid.UUID         `gorm:"type:uuid;uniqueIndex:idx_ledger_reversal_once,priority:1"`
	OperationID           uuid.UUID          `gorm:"type:uuid;not null;index"`
	Sequence              int64              `gorm:"not null;uniqueIndex:idx_ledger_box_sequence,priority:2"`
	CreatedAt             time.Time          `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *treasury.LedgerEntry {
	return &treasury.LedgerEntry{
		ID:                    m.ID,
		TenantID:              m.TenantID,
		UserID:                m.UserID,
		CashBoxID:             m.CashBoxID,
		CounterpartyUserID:    m.CounterpartyUserID,
		CounterpartyCashBoxID: m.CounterpartyCashBoxID,
		CreatedBy:             m.CreatedBy,
		Type:                  m.Type,
		Amount:                m.Amount,
		BalanceBefore:         m.BalanceBefore,
		BalanceAfter:          m.BalanceAfter,
		Description:           m.Description,
		OriginalEntryID:       m.OriginalEntryID,
		OperationID:           m.OperationID,
		Sequence:              m.Sequence,
		CreatedAt:             m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *treasury.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:                    e.ID,
		TenantID:              e.TenantID,
		UserID:                e.UserID,
		CashBoxID:             e.CashBoxID,
		CounterpartyUserID:    e.CounterpartyUserID,
		CounterpartyCashBoxID: e.CounterpartyCashBoxID,
		CreatedBy:             e.CreatedBy,
		Type:                  e.Type,
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

// TreasuryModels lists the treasury tables for auto-migration in tests
func TreasuryModels() []any {
	return []any{&CashBoxTypeModel{}, &CashBoxModel{}, &LedgerEntryModel{}}
}
