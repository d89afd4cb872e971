package treasury_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/infrastructure/event"
	"github.com/erp/treasury/internal/infrastructure/persistence"
	"github.com/erp/treasury/internal/testutil"
)

// fixture wires the treasury services to an in-memory SQLite database
type fixture struct {
	db       *gorm.DB
	ledger   *apptreasury.LedgerService
	boxes    *apptreasury.CashBoxService
	tenantID uuid.UUID
	userID   uuid.UUID
	actor    access.Actor
	typeID   uuid.UUID
}

func newFixture(t *testing.T, opts ...apptreasury.ServiceOption) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewSQLiteDB(t), opts...)
}

func newFixtureOn(t *testing.T, db *gorm.DB, opts ...apptreasury.ServiceOption) *fixture {
	t.Helper()
	scope := persistence.NewGormTransactionScope(db, event.RecorderFactory(event.NewDomainEventSerializer()))
	cashBoxes := persistence.NewGormCashBoxRepository(db)
	ledger := persistence.NewGormLedgerRepository(db)

	f := &fixture{
		db:       db,
		ledger:   apptreasury.NewLedgerService(scope, cashBoxes, ledger, opts...),
		boxes:    apptreasury.NewCashBoxService(scope, cashBoxes, persistence.NewGormCashBoxTypeRepository(db), ledger, opts...),
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
	f.actor = testutil.ActorWithTier(f.tenantID, f.userID, access.TierCompany)

	bt, err := f.boxes.CreateType(context.Background(), apptreasury.CreateCashBoxTypeRequest{Actor: f.actor, Name: "Cash"})
	require.NoError(t, err)
	f.typeID = bt.ID
	return f
}

// newBox creates a cash box owned by ownerID
func (f *fixture) newBox(t *testing.T, ownerID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	box, err := f.boxes.Create(context.Background(), apptreasury.CreateCashBoxRequest{
		Actor:   f.actor,
		OwnerID: &ownerID,
		TypeID:  f.typeID,
		Name:    name,
	})
	require.NoError(t, err)
	return box.ID
}

func (f *fixture) deposit(t *testing.T, boxID uuid.UUID, amount string) *apptreasury.MovementResult {
	t.Helper()
	result, err := f.ledger.Deposit(context.Background(), apptreasury.DepositRequest{
		Actor:     f.actor,
		CashBoxID: boxID,
		Amount:    dec(amount),
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) balance(t *testing.T, boxID uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := f.boxes.Balance(context.Background(), f.actor, boxID)
	require.NoError(t, err)
	return b.Balance
}

func (f *fixture) requireBalance(t *testing.T, boxID uuid.UUID, want string) {
	t.Helper()
	got := f.balance(t, boxID)
	require.True(t, got.Equal(dec(want)), "balance = %s, want %s", got, want)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
