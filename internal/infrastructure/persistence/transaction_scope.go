package persistence

import (
	"context"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"gorm.io/gorm"
)

// EventRecorderFactory builds an event recorder bound to a transaction
type EventRecorderFactory func(tx *gorm.DB) shared.EventRecorder

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db       *gorm.DB
	recorder EventRecorderFactory
}

// NewGormTransactionScope creates a new GormTransactionScope. Events
// recorded inside a transaction go to the recorder built by factory; a nil
// factory discards them.
func NewGormTransactionScope(db *gorm.DB, factory EventRecorderFactory) *GormTransactionScope {
	return &GormTransactionScope{db: db, recorder: factory}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apptreasury.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, recorder: s.recorder})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx       *gorm.DB
	recorder EventRecorderFactory
}

// CashBoxes returns the cash box repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CashBoxes() treasury.CashBoxRepository {
	return NewGormCashBoxRepository(r.tx)
}

// CashBoxTypes returns the cash box type repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CashBoxTypes() treasury.CashBoxTypeRepository {
	return NewGormCashBoxTypeRepository(r.tx)
}

// Ledger returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Ledger() treasury.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// Plans returns the plan repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Plans() installment.PlanRepository {
	return NewGormPlanRepository(r.tx)
}

// Payments returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Payments() installment.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// Events returns the event recorder scoped to the current transaction.
func (r *gormTransactionalRepositories) Events() shared.EventRecorder {
	if r.recorder == nil {
		return discardRecorder{}
	}
	return r.recorder(r.tx)
}

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, ...shared.DomainEvent) error { return nil }

// Ensure GormTransactionScope implements TransactionScope
var _ apptreasury.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ apptreasury.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
