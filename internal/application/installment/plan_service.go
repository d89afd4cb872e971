package installment

import (
	"context"
	"time"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanService manages installment plans
type PlanService struct {
	scope   apptreasury.TransactionScope
	plans   installment.PlanRepository
	metrics apptreasury.Metrics
	logger  *zap.Logger
}

// NewPlanService creates a new PlanService
func NewPlanService(
	scope apptreasury.TransactionScope,
	plans installment.PlanRepository,
	opts ...apptreasury.ServiceOption,
) *PlanService {
	o := apptreasury.ApplyOptions(opts)
	return &PlanService{
		scope:   scope,
		plans:   plans,
		metrics: o.Metrics,
		logger:  o.Logger,
	}
}

// Create creates a plan and generates its installment schedule
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (*PlanResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "create_plan")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrAmount, req.TotalAmount.String(),
	)

	self := access.Ownership{TenantID: req.Actor.TenantID, OwnerID: req.Actor.UserID, CreatedBy: req.Actor.UserID}
	if err := access.Authorize(req.Actor, access.ResourceInstallment, access.ActionCreate, self); err != nil {
		return nil, err
	}
	plan, err := installment.NewPlan(req.Actor.TenantID, req.Actor.UserID, req.CustomerID, req.InvoiceID, installment.Schedule{
		Total:          req.TotalAmount,
		Count:          req.Count,
		FirstDueDate:   req.FirstDueDate,
		IntervalMonths: req.IntervalMonths,
	})
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos apptreasury.TransactionalRepositories) error {
		if err := repos.Plans().Save(ctx, plan); err != nil {
			return err
		}
		return recordPlanEvents(ctx, repos, plan)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "create installment plan", req.Actor, err)
	}
	telemetry.SetOK(span)
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// Get returns a plan with its installments
func (s *PlanService) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.authorizedPlan(ctx, actor, access.ActionView, id)
	if err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// List lists the plans visible to the actor
func (s *PlanService) List(ctx context.Context, actor access.Actor, filter shared.Filter) (*shared.Paginated[PlanResponse], error) {
	scope, err := access.ListScope(actor, access.ResourceInstallment, access.ActionView)
	if err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	plans, total, err := s.plans.FindAll(ctx, scope, filter)
	if err != nil {
		return nil, s.fail(ctx, "list installment plans", actor, err)
	}
	items := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		items = append(items, ToPlanResponse(&plans[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Cancel cancels a plan that has not received any payment
func (s *PlanService) Cancel(ctx context.Context, actor access.Actor, id uuid.UUID) (*PlanResponse, error) {
	if _, err := s.authorizedPlan(ctx, actor, access.ActionCancel, id); err != nil {
		return nil, err
	}
	var plan *installment.Plan
	err := s.scope.Execute(ctx, func(repos apptreasury.TransactionalRepositories) error {
		locked, err := repos.Plans().LockByIDs(ctx, id)
		if err != nil {
			return err
		}
		var ok bool
		if plan, ok = locked[id]; !ok {
			return shared.NewNotFoundError("installment plan not found")
		}
		payments, err := repos.Payments().CountByPlan(ctx, id)
		if err != nil {
			return err
		}
		if err := plan.Cancel(payments); err != nil {
			return err
		}
		return repos.Plans().Save(ctx, plan)
	})
	if err != nil {
		return nil, s.fail(ctx, "cancel installment plan", actor, err)
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// MarkOverdue flags every unpaid installment of the actor's company that is
// due before asOf as late. Late installments remain payable.
func (s *PlanService) MarkOverdue(ctx context.Context, actor access.Actor, asOf time.Time) (*MarkOverdueResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "mark_overdue")
	defer span.End()

	if err := access.AuthorizeTenant(actor, access.ResourceInstallment, access.ActionUpdate, actor.TenantID); err != nil {
		return nil, err
	}
	if actor.TierFor(access.ResourceInstallment, access.ActionUpdate) < access.TierCompany {
		return nil, shared.NewDomainError(shared.CodeUnauthorized, "marking overdue installments requires the company tier")
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	result, err := s.markTenantOverdue(ctx, actor.TenantID, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "mark overdue installments", actor, err)
	}
	telemetry.SetAttribute(span, "installments_marked", result.Installments)
	telemetry.SetOK(span)
	return result, nil
}

// SweepOverdue runs MarkOverdue for every tenant on behalf of the system.
// A tenant that fails is logged and skipped.
func (s *PlanService) SweepOverdue(ctx context.Context, asOf time.Time) (*MarkOverdueResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "sweep_overdue")
	defer span.End()

	if asOf.IsZero() {
		asOf = time.Now()
	}
	tenants, err := s.plans.FindTenantsWithOverdue(ctx, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	total := &MarkOverdueResult{}
	for _, tenantID := range tenants {
		result, err := s.markTenantOverdue(ctx, tenantID, asOf)
		if err != nil {
			s.logger.Error("overdue sweep failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		total.Plans += result.Plans
		total.Installments += result.Installments
	}
	telemetry.SetAttribute(span, "tenants", len(tenants))
	telemetry.SetAttribute(span, "installments_marked", total.Installments)
	telemetry.SetOK(span)
	return total, nil
}

func (s *PlanService) markTenantOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*MarkOverdueResult, error) {
	ids, err := s.plans.FindIDsWithOverdue(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	result := &MarkOverdueResult{}
	for _, id := range ids {
		changed, err := s.markPlanOverdue(ctx, id, asOf)
		if err != nil {
			return nil, err
		}
		if changed > 0 {
			result.Plans++
			result.Installments += changed
		}
	}
	return result, nil
}

func (s *PlanService) markPlanOverdue(ctx context.Context, id uuid.UUID, asOf time.Time) (int, error) {
	changed := 0
	err := s.scope.Execute(ctx, func(repos apptreasury.TransactionalRepositories) error {
		locked, err := repos.Plans().LockByIDs(ctx, id)
		if err != nil {
			return err
		}
		plan, ok := locked[id]
		if !ok {
			return nil
		}
		if changed = plan.MarkOverdue(asOf); changed == 0 {
			return nil
		}
		return repos.Plans().Save(ctx, plan)
	})
	return changed, err
}

func (s *PlanService) authorizedPlan(ctx context.Context, actor access.Actor, action string, id uuid.UUID) (*installment.Plan, error) {
	if err := access.AuthorizeTenant(actor, access.ResourceInstallment, action, actor.TenantID); err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ResourceInstallment, action, plan.Ownership()); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PlanService) fail(ctx context.Context, op string, actor access.Actor, err error) error {
	return apptreasury.ReportFailure(ctx, s.logger, s.metrics, op, actor.TenantID, err,
		zap.String("user_id", actor.UserID.String()))
}

func recordPlanEvents(ctx context.Context, repos apptreasury.TransactionalRepositories, plans ...*installment.Plan) error {
	var events []shared.DomainEvent
	for _, p := range plans {
		events = append(events, p.GetDomainEvents()...)
		p.ClearDomainEvents()
	}
	if len(events) == 0 {
		return nil
	}
	return repos.Events().Record(ctx, events...)
}
