package installment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	appinstallment "github.com/erp/treasury/internal/application/installment"
	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/event"
	"github.com/erp/treasury/internal/infrastructure/persistence"
	"github.com/erp/treasury/internal/testutil"
)

var firstDue = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	plans    *appinstallment.PlanService
	payments *appinstallment.PaymentService
	boxes    *apptreasury.CashBoxService
	planRepo *persistence.GormPlanRepository
	tenantID uuid.UUID
	actor    access.Actor
	boxID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewSQLiteDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	ctx := context.Background()
	scope := persistence.NewGormTransactionScope(db, event.RecorderFactory(event.NewDomainEventSerializer()))
	planRepo := persistence.NewGormPlanRepository(db)
	cashBoxes := persistence.NewGormCashBoxRepository(db)
	ledger := persistence.NewGormLedgerRepository(db)

	f := &fixture{
		db:       db,
		plans:    appinstallment.NewPlanService(scope, planRepo),
		payments: appinstallment.NewPaymentService(scope, planRepo, persistence.NewGormPaymentRepository(db), cashBoxes),
		boxes:    apptreasury.NewCashBoxService(scope, cashBoxes, persistence.NewGormCashBoxTypeRepository(db), ledger),
		planRepo: planRepo,
		tenantID: uuid.New(),
	}
	f.actor = testutil.ActorWithTier(f.tenantID, uuid.New(), access.TierCompany)

	bt, err := f.boxes.CreateType(ctx, apptreasury.CreateCashBoxTypeRequest{Actor: f.actor, Name: "Cash"})
	require.NoError(t, err)
	box, err := f.boxes.Create(ctx, apptreasury.CreateCashBoxRequest{Actor: f.actor, TypeID: bt.ID, Name: "Till"})
	require.NoError(t, err)
	f.boxID = box.ID
	return f
}

// savePlan stores a plan for customerID whose installments have the given
// amounts, due one month apart
func (f *fixture) savePlan(t *testing.T, customerID uuid.UUID, amounts ...string) *installment.Plan {
	t.Helper()
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(dec(a))
	}
	plan, err := installment.NewPlan(f.tenantID, f.actor.UserID, customerID, nil, installment.Schedule{
		Total:        total,
		Count:        len(amounts),
		FirstDueDate: firstDue,
	})
	require.NoError(t, err)
	for i, a := range amounts {
		plan.Installments[i].Amount = dec(a)
		plan.Installments[i].RemainingAmount = dec(a)
	}
	require.NoError(t, f.planRepo.Save(context.Background(), plan))
	return plan
}

func (f *fixture) pay(ctx context.Context, amount string, ids ...uuid.UUID) (*appinstallment.PayInstallmentsResult, error) {
	return f.payments.PayInstallments(ctx, appinstallment.PayInstallmentsRequest{
		Actor:          f.actor,
		InstallmentIDs: ids,
		Amount:         dec(amount),
	})
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *appinstallment.PlanResponse {
	t.Helper()
	plan, err := f.plans.Get(context.Background(), f.actor, id)
	require.NoError(t, err)
	return plan
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := f.boxes.Balance(context.Background(), f.actor, f.boxID)
	require.NoError(t, err)
	return b.Balance
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ids(plan *installment.Plan) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(plan.Installments))
	for _, inst := range plan.Installments {
		out = append(out, inst.ID)
	}
	return out
}

func TestPaymentService_MigratedSchema(t *testing.T) {
	f := newFixtureOn(t, testutil.NewMigratedSQLiteDB(t))
	ctx := context.Background()
	plan := f.savePlan(t, uuid.New(), "100", "150", "50")

	result, err := f.pay(ctx, "180", ids(plan)...)
	require.NoError(t, err)
	allocated := decimal.Zero
	for _, d := range result.Payment.Details {
		allocated = allocated.Add(d.Amount)
	}
	assert.True(t, allocated.Equal(dec("180")))

	got := f.reload(t, plan.ID)
	assert.True(t, got.RemainingAmount.Equal(dec("120")), "remaining %s", got.RemainingAmount)
	assert.True(t, f.balance(t).Equal(dec("180")))
}

func TestPaymentService_AllocatesEarliestDueFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.savePlan(t, uuid.New(), "100", "150", "50")

	result, err := f.pay(ctx, "180", ids(plan)...)
	require.NoError(t, err)

	require.Len(t, result.AffectedInstallments, 2)
	assert.True(t, result.Payment.Amount.Equal(dec("180")))
	require.NotNil(t, result.Payment.LedgerEntryID)
	assert.Equal(t, result.LedgerEntry.ID, *result.Payment.LedgerEntryID)
	assert.Equal(t, "deposit", result.LedgerEntry.Type)

	got := f.reload(t, plan.ID)
	assert.True(t, got.RemainingAmount.Equal(dec("120")), "remaining %s", got.RemainingAmount)
	assert.Equal(t, string(installment.PlanStatusActive), got.Status)

	i1, i2, i3 := got.Installments[0], got.Installments[1], got.Installments[2]
	assert.Equal(t, string(installment.InstallmentStatusPaid), i1.Status)
	assert.True(t, i1.RemainingAmount.IsZero())
	assert.Equal(t, string(installment.InstallmentStatusPartial), i2.Status)
	assert.True(t, i2.PaidAmount.Equal(dec("80")))
	assert.True(t, i2.RemainingAmount.Equal(dec("70")))
	assert.Equal(t, string(installment.InstallmentStatusPending), i3.Status)
	assert.True(t, i3.PaidAmount.IsZero())
	assert.True(t, i3.RemainingAmount.Equal(dec("50")))

	assert.True(t, f.balance(t).Equal(dec("180")))
}

func TestPaymentService_Conservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	a := f.savePlan(t, customer, "33.33", "33.33", "33.34")
	b := f.savePlan(t, customer, "10", "20")

	payments := []string{"12.34", "50", "0.66", "47.66"}
	paid := decimal.Zero
	for _, amount := range payments {
		result, err := f.pay(ctx, amount, append(ids(a), ids(b)...)...)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, d := range result.Payment.Details {
			sum = sum.Add(d.Amount)
		}
		assert.True(t, sum.Equal(dec(amount)), "details %s != %s", sum, amount)
		paid = paid.Add(dec(amount))
	}

	remaining := f.reload(t, a.ID).RemainingAmount.Add(f.reload(t, b.ID).RemainingAmount)
	assert.True(t, remaining.Equal(dec("130").Sub(paid)), "remaining %s", remaining)
	assert.True(t, f.balance(t).Equal(paid))

	_, err := f.pay(ctx, "19.35", append(ids(a), ids(b)...)...)
	assert.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))

	_, err = f.pay(ctx, "19.34", append(ids(a), ids(b)...)...)
	require.NoError(t, err)
	assert.Equal(t, string(installment.PlanStatusCompleted), f.reload(t, a.ID).Status)
	assert.Equal(t, string(installment.PlanStatusCompleted), f.reload(t, b.ID).Status)
}

func TestPaymentService_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.savePlan(t, uuid.New(), "100", "100")

	t.Run("overpayment", func(t *testing.T) {
		_, err := f.pay(ctx, "200.01", ids(plan)...)
		assert.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
	})

	t.Run("duplicate installments", func(t *testing.T) {
		_, err := f.pay(ctx, "10", plan.Installments[0].ID, plan.Installments[0].ID)
		assert.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
	})

	t.Run("unknown installment", func(t *testing.T) {
		_, err := f.pay(ctx, "10", uuid.New())
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("mixed customers", func(t *testing.T) {
		other := f.savePlan(t, uuid.New(), "50")
		_, err := f.pay(ctx, "10", plan.Installments[0].ID, other.Installments[0].ID)
		assert.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
	})

	t.Run("no default cash box", func(t *testing.T) {
		stranger := testutil.ActorWithTier(f.tenantID, uuid.New(), access.TierCompany)
		_, err := f.payments.PayInstallments(ctx, appinstallment.PayInstallmentsRequest{
			Actor:          stranger,
			InstallmentIDs: ids(plan),
			Amount:         dec("10"),
		})
		assert.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))
	})

	t.Run("canceled plan", func(t *testing.T) {
		canceled := f.savePlan(t, uuid.New(), "10")
		_, err := f.plans.Cancel(ctx, f.actor, canceled.ID)
		require.NoError(t, err)
		_, err = f.pay(ctx, "5", canceled.Installments[0].ID)
		assert.True(t, errors.Is(err, shared.ErrConflict))
	})

	t.Run("own tier cannot pay a plan created by someone else", func(t *testing.T) {
		own := testutil.ActorWithTier(f.tenantID, uuid.New(), access.TierOwn)
		_, err := f.payments.PayInstallments(ctx, appinstallment.PayInstallmentsRequest{
			Actor:          own,
			InstallmentIDs: ids(plan),
			Amount:         dec("10"),
			CashBoxID:      &f.boxID,
		})
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	got := f.reload(t, plan.ID)
	assert.True(t, got.RemainingAmount.Equal(dec("200")))
	assert.True(t, f.balance(t).IsZero())
}

func TestPlanService_CreateGetCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.plans.Create(ctx, appinstallment.CreatePlanRequest{
		Actor:        f.actor,
		CustomerID:   uuid.New(),
		TotalAmount:  dec("100"),
		Count:        3,
		FirstDueDate: firstDue,
	})
	require.NoError(t, err)
	require.Len(t, created.Installments, 3)
	assert.True(t, created.Installments[0].Amount.Equal(dec("33.33")))
	assert.True(t, created.Installments[2].Amount.Equal(dec("33.34")))
	assert.Equal(t, firstDue.AddDate(0, 2, 0), created.Installments[2].DueDate.UTC())

	_, err = f.plans.Create(ctx, appinstallment.CreatePlanRequest{Actor: f.actor, CustomerID: uuid.New(), TotalAmount: dec("100"), Count: 0, FirstDueDate: firstDue})
	assert.Equal(t, shared.CodeValidationFailed, shared.CodeOf(err))

	_, err = f.pay(ctx, "10", created.Installments[0].ID)
	require.NoError(t, err)
	_, err = f.plans.Cancel(ctx, f.actor, created.ID)
	assert.True(t, errors.Is(err, shared.ErrConflict))

	page, err := f.payments.ListPlanPayments(ctx, f.actor, created.ID, shared.DefaultFilter())
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	payment, err := f.payments.GetPayment(ctx, f.actor, page.Items[0].ID)
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(dec("10")))

	list, err := f.plans.List(ctx, f.actor, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestPlanService_MarkOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.savePlan(t, uuid.New(), "100", "100", "100")
	_, err := f.pay(ctx, "40", plan.Installments[0].ID)
	require.NoError(t, err)

	own := testutil.ActorWithTier(f.tenantID, f.actor.UserID, access.TierOwn)
	_, err = f.plans.MarkOverdue(ctx, own, firstDue.AddDate(0, 2, 0))
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	result, err := f.plans.MarkOverdue(ctx, f.actor, firstDue.AddDate(0, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Plans)
	assert.Equal(t, 2, result.Installments)

	got := f.reload(t, plan.ID)
	assert.Equal(t, string(installment.InstallmentStatusLate), got.Installments[0].Status)
	assert.Equal(t, string(installment.InstallmentStatusLate), got.Installments[1].Status)
	assert.Equal(t, string(installment.InstallmentStatusPending), got.Installments[2].Status)

	again, err := f.plans.MarkOverdue(ctx, f.actor, firstDue.AddDate(0, 1, 1))
	require.NoError(t, err)
	assert.Zero(t, again.Installments)

	// Late installments stay payable
	_, err = f.pay(ctx, "60", plan.Installments[0].ID)
	require.NoError(t, err)
	got = f.reload(t, plan.ID)
	assert.Equal(t, string(installment.InstallmentStatusPaid), got.Installments[0].Status)
}

func TestPlanService_SweepOverdueCoversAllTenants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.savePlan(t, uuid.New(), "100", "100")

	other, err := installment.NewPlan(uuid.New(), uuid.New(), uuid.New(), nil, installment.Schedule{
		Total:        dec("90"),
		Count:        3,
		FirstDueDate: firstDue,
	})
	require.NoError(t, err)
	require.NoError(t, f.planRepo.Save(ctx, other))

	result, err := f.plans.SweepOverdue(ctx, firstDue.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Plans)
	assert.Equal(t, 2, result.Installments)

	got := f.reload(t, plan.ID)
	assert.Equal(t, string(installment.InstallmentStatusLate), got.Installments[0].Status)
	assert.Equal(t, string(installment.InstallmentStatusPending), got.Installments[1].Status)

	again, err := f.plans.SweepOverdue(ctx, firstDue.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, again.Plans)
}
