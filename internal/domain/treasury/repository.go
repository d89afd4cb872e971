package treasury

import (
	"context"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// CashBoxRepository persists cash boxes
type CashBoxRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CashBox, error)
	// LockByIDs loads the given cash boxes with a row lock held until the
	// surrounding transaction ends. Locks are taken in ascending id order.
	LockByIDs(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*CashBox, error)
	FindDefaultForOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (*CashBox, error)
	FindAll(ctx context.Context, scope access.Scope, filter shared.Filter) ([]CashBox, int64, error)
	CountByType(ctx context.Context, typeID uuid.UUID) (int64, error)
	Save(ctx context.Context, box *CashBox) error
	// ClearDefault unsets the default flag on every box of the owner except keep
	ClearDefault(ctx context.Context, tenantID, ownerID, keep uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CashBoxTypeRepository persists cash box types
type CashBoxTypeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CashBoxType, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]CashBoxType, error)
	Save(ctx context.Context, t *CashBoxType) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LedgerRepository is the append-only ledger store
type LedgerRepository interface {
	Append(ctx context.Context, entries ...*LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	FindByCashBox(ctx context.Context, cashBoxID uuid.UUID, filter shared.Filter) ([]LedgerEntry, int64, error)
	// FindAllByCashBox returns the full ledger of a box in sequence order
	FindAllByCashBox(ctx context.Context, cashBoxID uuid.UUID) ([]LedgerEntry, error)
	// Tally sums the signed amounts of the entries owned by a box
	Tally(ctx context.Context, cashBoxID uuid.UUID) (Tally, error)
	FindReversalsOf(ctx context.Context, originalEntryID uuid.UUID) ([]LedgerEntry, error)
	FindByOperation(ctx context.Context, operationID uuid.UUID) ([]LedgerEntry, error)
}
