package treasury

import (
	"strings"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// CashBoxType categorizes cash boxes (e.g. "Cash", "Bank", "POS").
// Protected types are provisioned by the system and cannot be deleted.
type CashBoxType struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	Name      string
	Protected bool
}

// NewCashBoxType creates a new cash box type
func NewCashBoxType(tenantID uuid.UUID, name string, protected bool) (*CashBoxType, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("tenant ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("cash box type name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("cash box type name cannot exceed 100 characters")
	}
	return &CashBoxType{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Name:       name,
		Protected:  protected,
	}, nil
}

// EnsureDeletable returns Conflict if the type is protected or still in use
func (t *CashBoxType) EnsureDeletable(cashBoxesUsingType int64) error {
	if t.Protected {
		return shared.NewConflictError("cannot delete a protected cash box type")
	}
	if cashBoxesUsingType > 0 {
		return shared.NewConflictError("cash box type is still assigned to cash boxes")
	}
	return nil
}
