package installment

import (
	"context"
	"time"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// PlanRepository persists plans together with their installments
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	// LockByIDs loads plans with a row lock held until the surrounding
	// transaction ends. Locks are taken in ascending id order.
	LockByIDs(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*Plan, error)
	// FindInstallments loads installments by id, without their plans
	FindInstallments(ctx context.Context, ids []uuid.UUID) ([]Installment, error)
	FindAll(ctx context.Context, scope access.Scope, filter shared.Filter) ([]Plan, int64, error)
	// FindIDsWithOverdue returns active plans of a tenant with unpaid installments due before asOf
	FindIDsWithOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]uuid.UUID, error)
	// FindTenantsWithOverdue returns the tenants owning at least one such plan
	FindTenantsWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	Save(ctx context.Context, plan *Plan) error
}

// PaymentRepository persists payments together with their details
type PaymentRepository interface {
	Save(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByPlan(ctx context.Context, planID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)
	CountByPlan(ctx context.Context, planID uuid.UUID) (int64, error)
}
