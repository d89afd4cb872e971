package installment

import (
	"context"
	"fmt"

	apptreasury "github.com/erp/treasury/internal/application/treasury"
	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService records installment payments.
//
// A payment allocates one amount over the named installments, earliest due
// first, and deposits the whole amount into a cash box. The allocation, the
// plan updates, the payment rows and the ledger deposit commit together.
type PaymentService struct {
	scope       apptreasury.TransactionScope
	plans       installment.PlanRepository
	payments    installment.PaymentRepository
	cashBoxes   treasury.CashBoxRepository
	idempotency *apptreasury.IdempotencyGuard
	metrics     apptreasury.Metrics
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	scope apptreasury.TransactionScope,
	plans installment.PlanRepository,
	payments installment.PaymentRepository,
	cashBoxes treasury.CashBoxRepository,
	opts ...apptreasury.ServiceOption,
) *PaymentService {
	o := apptreasury.ApplyOptions(opts)
	return &PaymentService{
		scope:       scope,
		plans:       plans,
		payments:    payments,
		cashBoxes:   cashBoxes,
		idempotency: o.Idempotency,
		metrics:     o.Metrics,
		logger:      o.Logger,
	}
}

// PayInstallments allocates req.Amount over req.InstallmentIDs and deposits
// it into the resolved cash box
func (s *PaymentService) PayInstallments(ctx context.Context, req PayInstallmentsRequest) (*PayInstallmentsResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "installment", "pay_installments")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, req.Amount.String(),
		"installment_count", len(req.InstallmentIDs),
	)

	var result *PayInstallmentsResult
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.TreasuryOperationLabels("pay_installments"), func(c context.Context) {
		result, opErr = s.pay(c, req)
	})
	if opErr != nil {
		opErr = apptreasury.ReportFailure(ctx, s.logger, s.metrics, "pay installments", req.Actor.TenantID, opErr,
			zap.String("user_id", req.Actor.UserID.String()),
			zap.String("amount", req.Amount.String()),
			zap.Int("installments", len(req.InstallmentIDs)),
		)
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}
	s.metrics.RecordEntry(ctx, req.Actor.TenantID, result.LedgerEntry.Type, result.LedgerEntry.Amount)
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, result.Payment.ID.String())
	telemetry.SetOK(span)
	return result, nil
}

func (s *PaymentService) pay(ctx context.Context, req PayInstallmentsRequest) (*PayInstallmentsResult, error) {
	if err := access.AuthorizeTenant(req.Actor, access.ResourceInstallment, access.ActionPay, req.Actor.TenantID); err != nil {
		return nil, err
	}
	if err := treasury.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if len(req.InstallmentIDs) == 0 {
		return nil, shared.NewValidationError("at least one installment is required")
	}
	if err := rejectDuplicates(req.InstallmentIDs); err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = installment.PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("invalid payment method")
	}

	planIDs, err := s.authorizedPlans(ctx, req.Actor, req.InstallmentIDs)
	if err != nil {
		return nil, err
	}
	box, err := s.resolveCashBox(ctx, req)
	if err != nil {
		return nil, err
	}

	var result *PayInstallmentsResult
	err = s.idempotency.Run(ctx, req.Actor.TenantID, req.IdempotencyKey, func() error {
		return s.scope.Execute(ctx, func(repos apptreasury.TransactionalRepositories) error {
			r, err := s.applyPayment(ctx, repos, req, method, planIDs, box.ID)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyPayment runs inside the transaction. Plans are locked before the cash
// box, matching the lock order of every other writer.
func (s *PaymentService) applyPayment(
	ctx context.Context,
	repos apptreasury.TransactionalRepositories,
	req PayInstallmentsRequest,
	method installment.PaymentMethod,
	planIDs []uuid.UUID,
	cashBoxID uuid.UUID,
) (*PayInstallmentsResult, error) {
	plans, err := repos.Plans().LockByIDs(ctx, planIDs...)
	if err != nil {
		return nil, err
	}

	owner := make(map[uuid.UUID]*installment.Plan, len(req.InstallmentIDs))
	planOf := make(map[uuid.UUID]uuid.UUID, len(req.InstallmentIDs))
	obligations := make([]installment.Obligation, 0, len(req.InstallmentIDs))
	var customerID uuid.UUID
	for _, id := range req.InstallmentIDs {
		plan, inst := findInstallment(plans, id)
		if inst == nil {
			return nil, shared.NewNotFoundError("installment not found")
		}
		if plan.Status == installment.PlanStatusCanceled || inst.Status == installment.InstallmentStatusCanceled {
			return nil, shared.NewConflictError("installment plan is canceled")
		}
		if customerID == uuid.Nil {
			customerID = plan.CustomerID
		} else if plan.CustomerID != customerID {
			return nil, shared.NewValidationError("installments must belong to the same customer")
		}
		owner[id] = plan
		planOf[id] = plan.ID
		obligations = append(obligations, inst.Obligation())
	}

	allocation, err := installment.Allocate(req.Amount, obligations)
	if err != nil {
		return nil, err
	}
	affected := make([]InstallmentResponse, 0, len(allocation.Allocations))
	for _, a := range allocation.Allocations {
		plan := owner[a.InstallmentID]
		if err := plan.ApplyAllocation(a); err != nil {
			return nil, err
		}
		affected = append(affected, ToInstallmentResponse(plan.Installment(a.InstallmentID)))
	}

	payment, err := installment.NewPayment(req.Actor.TenantID, customerID, cashBoxID, req.Actor.UserID,
		req.Amount, method, allocation, planOf)
	if err != nil {
		return nil, err
	}
	payment.WithNotes(req.Notes).WithPaidAt(req.PaidAt)

	w := apptreasury.NewLedgerWriter(repos)
	if _, err := w.Lock(ctx, cashBoxID); err != nil {
		return nil, err
	}
	entry, err := w.Credit(cashBoxID, treasury.Posting{
		Type:        treasury.EntryTypeDeposit,
		Amount:      req.Amount,
		CreatedBy:   req.Actor.UserID,
		Description: fmt.Sprintf("Installment payment %s", payment.ID),
		OperationID: payment.ID,
	})
	if err != nil {
		return nil, err
	}
	payment.LinkLedgerEntry(entry.ID)
	if err := w.Flush(ctx); err != nil {
		return nil, err
	}

	touched := make([]*installment.Plan, 0, len(plans))
	for _, id := range planIDs {
		plan := plans[id]
		if err := repos.Plans().Save(ctx, plan); err != nil {
			return nil, fmt.Errorf("failed to save installment plan: %w", err)
		}
		touched = append(touched, plan)
	}
	if err := repos.Payments().Save(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save installment payment: %w", err)
	}
	if err := repos.Events().Record(ctx, installment.NewPaymentRecordedEvent(payment)); err != nil {
		return nil, fmt.Errorf("failed to record payment event: %w", err)
	}
	if err := recordPlanEvents(ctx, repos, touched...); err != nil {
		return nil, fmt.Errorf("failed to record plan events: %w", err)
	}

	return &PayInstallmentsResult{
		Payment:              ToPaymentResponse(payment),
		AffectedInstallments: affected,
		LedgerEntry:          apptreasury.ToLedgerEntryResponse(entry),
	}, nil
}

// authorizedPlans loads the plans behind the installments and checks the pay
// permission against each of them. It returns the distinct plan ids.
func (s *PaymentService) authorizedPlans(ctx context.Context, actor access.Actor, installmentIDs []uuid.UUID) ([]uuid.UUID, error) {
	installments, err := s.plans.FindInstallments(ctx, installmentIDs)
	if err != nil {
		return nil, err
	}
	if len(installments) != len(installmentIDs) {
		return nil, shared.NewNotFoundError("installment not found")
	}

	seen := make(map[uuid.UUID]bool)
	var planIDs []uuid.UUID
	for _, inst := range installments {
		if seen[inst.PlanID] {
			continue
		}
		seen[inst.PlanID] = true
		plan, err := s.plans.FindByID(ctx, inst.PlanID)
		if err != nil {
			return nil, err
		}
		if err := access.Authorize(actor, access.ResourceInstallment, access.ActionPay, plan.Ownership()); err != nil {
			return nil, err
		}
		planIDs = append(planIDs, plan.ID)
	}
	return planIDs, nil
}

// resolveCashBox returns the requested cash box, or the payer's default one
func (s *PaymentService) resolveCashBox(ctx context.Context, req PayInstallmentsRequest) (*treasury.CashBox, error) {
	var box *treasury.CashBox
	var err error
	if req.CashBoxID != nil && *req.CashBoxID != uuid.Nil {
		box, err = s.cashBoxes.FindByID(ctx, *req.CashBoxID)
	} else {
		box, err = s.cashBoxes.FindDefaultForOwner(ctx, req.Actor.TenantID, req.Actor.UserID)
		if shared.CodeOf(err) == shared.CodeNotFound {
			return nil, shared.NewValidationError("no cash box given and the payer has no default cash box")
		}
	}
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeTenant(req.Actor, access.ResourceInstallment, access.ActionPay, box.TenantID); err != nil {
		return nil, err
	}
	return box, nil
}

// GetPayment returns one payment
func (s *PaymentService) GetPayment(ctx context.Context, actor access.Actor, id uuid.UUID) (*PaymentResponse, error) {
	if err := access.AuthorizeTenant(actor, access.ResourceInstallment, access.ActionView, actor.TenantID); err != nil {
		return nil, err
	}
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ownership := access.Ownership{TenantID: payment.TenantID, OwnerID: payment.CreatedBy, CreatedBy: payment.CreatedBy}
	if err := access.Authorize(actor, access.ResourceInstallment, access.ActionView, ownership); err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// ListPlanPayments pages through the payments that touched a plan
func (s *PaymentService) ListPlanPayments(
	ctx context.Context,
	actor access.Actor,
	planID uuid.UUID,
	filter shared.Filter,
) (*shared.Paginated[PaymentResponse], error) {
	if err := access.AuthorizeTenant(actor, access.ResourceInstallment, access.ActionView, actor.TenantID); err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ResourceInstallment, access.ActionView, plan.Ownership()); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	payments, total, err := s.payments.FindByPlan(ctx, planID, filter)
	if err != nil {
		return nil, apptreasury.ReportFailure(ctx, s.logger, s.metrics, "list plan payments", actor.TenantID, err)
	}
	items := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, ToPaymentResponse(&payments[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

func findInstallment(plans map[uuid.UUID]*installment.Plan, id uuid.UUID) (*installment.Plan, *installment.Installment) {
	for _, p := range plans {
		if inst := p.Installment(id); inst != nil {
			return p, inst
		}
	}
	return nil, nil
}

func rejectDuplicates(ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return shared.NewValidationError("duplicate installment id " + id.String())
		}
		seen[id] = true
	}
	return nil
}
