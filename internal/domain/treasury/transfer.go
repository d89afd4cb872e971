package treasury

import (
	"fmt"

	"github.com/erp/treasury/internal/domain/shared"
)

// ValidateTransfer checks the structural preconditions of a transfer
func ValidateTransfer(from, to *CashBox) error {
	if from.ID == to.ID {
		return shared.NewValidationError("source and destination cash box must differ")
	}
	return nil
}

// TransferDescription builds the default description of a transfer
func TransferDescription(from, to *CashBox) string {
	if from.OwnerID == to.OwnerID {
		return fmt.Sprintf("Internal transfer between %s and %s", from.Name, to.Name)
	}
	return fmt.Sprintf("Transfer from %s (%s) to %s (%s)", from.Name, from.OwnerID, to.Name, to.OwnerID)
}
