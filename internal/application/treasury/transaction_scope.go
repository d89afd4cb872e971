package treasury

import (
	"context"

	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
)

// TransactionScope provides transactional access to the treasury repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories of one transaction.
//
// Row locks taken through CashBoxes().LockByIDs or Plans().LockByIDs are held
// until the transaction ends. Events recorded through Events() are written to
// the outbox in the same transaction and delivered only after commit.
type TransactionalRepositories interface {
	CashBoxes() treasury.CashBoxRepository
	CashBoxTypes() treasury.CashBoxTypeRepository
	Ledger() treasury.LedgerRepository
	Plans() installment.PlanRepository
	Payments() installment.PaymentRepository
	Events() shared.EventRecorder
}
