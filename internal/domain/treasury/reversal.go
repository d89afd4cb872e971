package treasury

import (
	"fmt"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// ReversalLeg is one compensating posting against one cash box
type ReversalLeg struct {
	CashBoxID uuid.UUID
	Credit    bool
	Posting   Posting
}

// PlanReversal derives the compensating postings that exactly negate the
// effect of original:
//
//   - deposit: debit the same box (reverse_deposit)
//   - withdraw: credit the same box (reverse_withdraw)
//   - transfer_out: move the money back, debiting the former destination and
//     crediting the former source (reverse_transfer on both legs)
//
// Any other type, including reversal entries themselves and the transfer_in
// leg, is UnsupportedOperation. Every leg points back at original.
func PlanReversal(original *LedgerEntry, reversedBy, operationID uuid.UUID, description string) ([]ReversalLeg, error) {
	if description == "" {
		description = fmt.Sprintf("Reversal of %s entry %s", original.Type, original.ID)
	}
	originalID := original.ID
	amount := original.Amount.Abs()
	base := Posting{
		Amount:          amount,
		CreatedBy:       reversedBy,
		Description:     description,
		OriginalEntryID: &originalID,
		OperationID:     operationID,
	}

	switch original.Type {
	case EntryTypeDeposit:
		p := base
		p.Type = EntryTypeReverseDeposit
		return []ReversalLeg{{CashBoxID: original.CashBoxID, Credit: false, Posting: p}}, nil

	case EntryTypeWithdraw:
		p := base
		p.Type = EntryTypeReverseWithdraw
		return []ReversalLeg{{CashBoxID: original.CashBoxID, Credit: true, Posting: p}}, nil

	case EntryTypeTransferOut:
		cp := original.Counterparty()
		if cp == nil {
			return nil, shared.NewDomainError(shared.CodeUnexpected, "transfer entry has no counterparty")
		}
		debit := base
		debit.Type = EntryTypeReverseTransfer
		debit.Counterparty = &Counterparty{UserID: original.UserID, CashBoxID: original.CashBoxID}

		credit := base
		credit.Type = EntryTypeReverseTransfer
		credit.Counterparty = &Counterparty{UserID: cp.UserID, CashBoxID: cp.CashBoxID}

		return []ReversalLeg{
			{CashBoxID: cp.CashBoxID, Credit: false, Posting: debit},
			{CashBoxID: original.CashBoxID, Credit: true, Posting: credit},
		}, nil

	case EntryTypeTransferIn:
		return nil, shared.NewDomainError(shared.CodeUnsupportedOperation,
			"reverse the transfer_out leg of a transfer instead of its transfer_in leg")
	}
	return nil, shared.NewDomainError(shared.CodeUnsupportedOperation,
		fmt.Sprintf("entries of type %s cannot be reversed", original.Type))
}
