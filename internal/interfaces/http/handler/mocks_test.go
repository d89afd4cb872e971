package handler

import (
	"context"
	"time"

	appinstallment "github.com/erp/treasury/internal/application/installment"
	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCashBoxService implements CashBoxUseCases for testing
type MockCashBoxService struct {
	mock.Mock
}

func (m *MockCashBoxService) CreateType(ctx context.Context, req apptreasury.CreateCashBoxTypeRequest) (*apptreasury.CashBoxTypeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.CashBoxTypeResponse), args.Error(1)
}

func (m *MockCashBoxService) ListTypes(ctx context.Context, actor access.Actor) ([]apptreasury.CashBoxTypeResponse, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]apptreasury.CashBoxTypeResponse), args.Error(1)
}

func (m *MockCashBoxService) DeleteType(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockCashBoxService) Create(ctx context.Context, req apptreasury.CreateCashBoxRequest) (*apptreasury.CashBoxResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.CashBoxResponse), args.Error(1)
}

func (m *MockCashBoxService) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.CashBoxResponse, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.CashBoxResponse), args.Error(1)
}

func (m *MockCashBoxService) List(ctx context.Context, actor access.Actor, filter shared.Filter) (*shared.Paginated[apptreasury.CashBoxResponse], error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[apptreasury.CashBoxResponse]), args.Error(1)
}

func (m *MockCashBoxService) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockCashBoxService) SetDefault(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.CashBoxResponse, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.CashBoxResponse), args.Error(1)
}

func (m *MockCashBoxService) Balance(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.BalanceResult, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.BalanceResult), args.Error(1)
}

func (m *MockCashBoxService) Reconcile(ctx context.Context, actor access.Actor, id uuid.UUID) (*apptreasury.ReconcileResult, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.ReconcileResult), args.Error(1)
}

func (m *MockCashBoxService) ListEntries(ctx context.Context, actor access.Actor, cashBoxID uuid.UUID, filter shared.Filter) (*shared.Paginated[apptreasury.LedgerEntryResponse], error) {
	args := m.Called(ctx, actor, cashBoxID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[apptreasury.LedgerEntryResponse]), args.Error(1)
}

func (m *MockCashBoxService) GetEntry(ctx context.Context, actor access.Actor, entryID uuid.UUID) (*apptreasury.LedgerEntryResponse, error) {
	args := m.Called(ctx, actor, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.LedgerEntryResponse), args.Error(1)
}

// MockLedgerService implements LedgerUseCases for testing
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) movement(args mock.Arguments) (*apptreasury.MovementResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptreasury.MovementResult), args.Error(1)
}

func (m *MockLedgerService) Deposit(ctx context.Context, req apptreasury.DepositRequest) (*apptreasury.MovementResult, error) {
	return m.movement(m.Called(ctx, req))
}

func (m *MockLedgerService) Withdraw(ctx context.Context, req apptreasury.WithdrawRequest) (*apptreasury.MovementResult, error) {
	return m.movement(m.Called(ctx, req))
}

func (m *MockLedgerService) Transfer(ctx context.Context, req apptreasury.TransferRequest) (*apptreasury.MovementResult, error) {
	return m.movement(m.Called(ctx, req))
}

func (m *MockLedgerService) Reverse(ctx context.Context, req apptreasury.ReverseRequest) (*apptreasury.MovementResult, error) {
	return m.movement(m.Called(ctx, req))
}

// MockPlanService implements PlanUseCases for testing
type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) plan(args mock.Arguments) (*appinstallment.PlanResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinstallment.PlanResponse), args.Error(1)
}

func (m *MockPlanService) Create(ctx context.Context, req appinstallment.CreatePlanRequest) (*appinstallment.PlanResponse, error) {
	return m.plan(m.Called(ctx, req))
}

func (m *MockPlanService) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*appinstallment.PlanResponse, error) {
	return m.plan(m.Called(ctx, actor, id))
}

func (m *MockPlanService) List(ctx context.Context, actor access.Actor, filter shared.Filter) (*shared.Paginated[appinstallment.PlanResponse], error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appinstallment.PlanResponse]), args.Error(1)
}

func (m *MockPlanService) Cancel(ctx context.Context, actor access.Actor, id uuid.UUID) (*appinstallment.PlanResponse, error) {
	return m.plan(m.Called(ctx, actor, id))
}

func (m *MockPlanService) MarkOverdue(ctx context.Context, actor access.Actor, asOf time.Time) (*appinstallment.MarkOverdueResult, error) {
	args := m.Called(ctx, actor, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinstallment.MarkOverdueResult), args.Error(1)
}

// MockPaymentService implements PaymentUseCases for testing
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) PayInstallments(ctx context.Context, req appinstallment.PayInstallmentsRequest) (*appinstallment.PayInstallmentsResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinstallment.PayInstallmentsResult), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, actor access.Actor, id uuid.UUID) (*appinstallment.PaymentResponse, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinstallment.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) ListPlanPayments(ctx context.Context, actor access.Actor, planID uuid.UUID, filter shared.Filter) (*shared.Paginated[appinstallment.PaymentResponse], error) {
	args := m.Called(ctx, actor, planID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appinstallment.PaymentResponse]), args.Error(1)
}
