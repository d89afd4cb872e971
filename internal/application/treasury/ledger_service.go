package treasury

import (
	"context"
	"strings"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService moves money: deposits, withdrawals, transfers and reversals.
//
// Validation and authorization run before any transaction is opened. The
// write itself locks every affected cash box, re-derives its balance from the
// ledger under the lock, and appends all entries in one transaction.
type LedgerService struct {
	scope       TransactionScope
	cashBoxes   treasury.CashBoxRepository
	ledger      treasury.LedgerRepository
	idempotency *IdempotencyGuard
	metrics     Metrics
	logger      *zap.Logger
}

// ServiceOption configures the money-moving services
type ServiceOption func(*ServiceOptions)

// ServiceOptions holds the optional collaborators of a service
type ServiceOptions struct {
	Idempotency *IdempotencyGuard
	Metrics     Metrics
	Logger      *zap.Logger
}

// WithIdempotency enables Idempotency-Key handling
func WithIdempotency(guard *IdempotencyGuard) ServiceOption {
	return func(o *ServiceOptions) { o.Idempotency = guard }
}

// WithMetrics sets the business metrics sink
func WithMetrics(m Metrics) ServiceOption {
	return func(o *ServiceOptions) {
		if m != nil {
			o.Metrics = m
		}
	}
}

// WithLogger sets the logger used for unexpected failures
func WithLogger(l *zap.Logger) ServiceOption {
	return func(o *ServiceOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// ApplyOptions resolves options over their defaults
func ApplyOptions(opts []ServiceOption) ServiceOptions {
	o := ServiceOptions{Metrics: NoopMetrics(), Logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	scope TransactionScope,
	cashBoxes treasury.CashBoxRepository,
	ledger treasury.LedgerRepository,
	opts ...ServiceOption,
) *LedgerService {
	o := ApplyOptions(opts)
	return &LedgerService{
		scope:       scope,
		cashBoxes:   cashBoxes,
		ledger:      ledger,
		idempotency: o.Idempotency,
		metrics:     o.Metrics,
		logger:      o.Logger,
	}
}

// Deposit appends one credit entry to a cash box
func (s *LedgerService) Deposit(ctx context.Context, req DepositRequest) (*MovementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "treasury", "deposit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCashBoxID, req.CashBoxID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	result, err := s.single(ctx, "deposit", req.Actor, access.ActionDeposit, req.CashBoxID, req.Amount, req.IdempotencyKey,
		func(w *LedgerWriter, box *treasury.CashBox, operationID uuid.UUID) error {
			_, err := w.Credit(box.ID, treasury.Posting{
				Type:        treasury.EntryTypeDeposit,
				Amount:      req.Amount,
				CreatedBy:   req.Actor.UserID,
				Description: describe(req.Description, "Deposit"),
				OperationID: operationID,
			})
			return err
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// Withdraw appends one debit entry to a cash box. It fails with
// InsufficientFunds when the ledger balance does not cover the amount.
func (s *LedgerService) Withdraw(ctx context.Context, req WithdrawRequest) (*MovementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "treasury", "withdraw")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCashBoxID, req.CashBoxID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	result, err := s.single(ctx, "withdraw", req.Actor, access.ActionWithdraw, req.CashBoxID, req.Amount, req.IdempotencyKey,
		func(w *LedgerWriter, box *treasury.CashBox, operationID uuid.UUID) error {
			_, err := w.Debit(box.ID, treasury.Posting{
				Type:        treasury.EntryTypeWithdraw,
				Amount:      req.Amount,
				CreatedBy:   req.Actor.UserID,
				Description: describe(req.Description, "Withdrawal"),
				OperationID: operationID,
			})
			return err
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// Transfer debits the source cash box and credits the destination as one
// atomic unit. The destination may belong to another user of the same
// company; crossing companies requires the "all" tier.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (*MovementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "treasury", "transfer")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCashBoxID, req.FromCashBoxID.String(),
		telemetry.SpanAttrCounterpartyCashBoxID, req.ToCashBoxID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	var result *MovementResult
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.TreasuryOperationLabels("transfer"), func(c context.Context) {
		result, opErr = s.transfer(c, req)
	})
	if opErr != nil {
		opErr = ReportFailure(ctx, s.logger, s.metrics, "transfer", req.Actor.TenantID, opErr,
			zap.String("user_id", req.Actor.UserID.String()),
			zap.String("from_cash_box_id", req.FromCashBoxID.String()),
			zap.String("to_cash_box_id", req.ToCashBoxID.String()),
			zap.String("amount", req.Amount.String()),
		)
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}
	s.recordEntries(ctx, req.Actor.TenantID, result)
	telemetry.SetOK(span)
	return result, nil
}

func (s *LedgerService) transfer(ctx context.Context, req TransferRequest) (*MovementResult, error) {
	if err := treasury.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.FromCashBoxID == req.ToCashBoxID {
		return nil, shared.NewValidationError("source and destination cash box must differ")
	}
	from, err := s.authorizedBox(ctx, req.Actor, access.ActionTransfer, req.FromCashBoxID)
	if err != nil {
		return nil, err
	}
	to, err := s.cashBoxes.FindByID(ctx, req.ToCashBoxID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeTenant(req.Actor, access.ResourceCashBox, access.ActionTransfer, to.TenantID); err != nil {
		return nil, err
	}
	if err := treasury.ValidateTransfer(from, to); err != nil {
		return nil, err
	}

	operationID := uuid.New()
	w, err := s.execute(ctx, req.Actor, req.IdempotencyKey, func(_ TransactionalRepositories, w *LedgerWriter) error {
		boxes, err := w.Lock(ctx, from.ID, to.ID)
		if err != nil {
			return err
		}
		src, dst := boxes[from.ID], boxes[to.ID]
		description := describe(req.Description, treasury.TransferDescription(src, dst))

		if _, err := w.Debit(src.ID, treasury.Posting{
			Type:         treasury.EntryTypeTransferOut,
			Amount:       req.Amount,
			CreatedBy:    req.Actor.UserID,
			Counterparty: &treasury.Counterparty{UserID: dst.OwnerID, CashBoxID: dst.ID},
			Description:  description,
			OperationID:  operationID,
		}); err != nil {
			return err
		}
		_, err = w.Credit(dst.ID, treasury.Posting{
			Type:         treasury.EntryTypeTransferIn,
			Amount:       req.Amount,
			CreatedBy:    req.Actor.UserID,
			Counterparty: &treasury.Counterparty{UserID: src.OwnerID, CashBoxID: src.ID},
			Description:  description,
			OperationID:  operationID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return newMovementResult(operationID, w), nil
}

type singlePosting func(w *LedgerWriter, box *treasury.CashBox, operationID uuid.UUID) error

// single runs a movement that touches exactly one cash box
func (s *LedgerService) single(
	ctx context.Context,
	op string,
	actor access.Actor,
	action string,
	cashBoxID uuid.UUID,
	amount decimal.Decimal,
	idempotencyKey string,
	post singlePosting,
) (*MovementResult, error) {
	var result *MovementResult
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.TreasuryOperationLabels(op), func(c context.Context) {
		if opErr = treasury.ValidateAmount(amount); opErr != nil {
			return
		}
		var box *treasury.CashBox
		if box, opErr = s.authorizedBox(c, actor, action, cashBoxID); opErr != nil {
			return
		}

		operationID := uuid.New()
		var w *LedgerWriter
		w, opErr = s.execute(c, actor, idempotencyKey, func(_ TransactionalRepositories, w *LedgerWriter) error {
			boxes, err := w.Lock(c, box.ID)
			if err != nil {
				return err
			}
			return post(w, boxes[box.ID], operationID)
		})
		if opErr == nil {
			result = newMovementResult(operationID, w)
		}
	})
	if opErr != nil {
		return nil, ReportFailure(ctx, s.logger, s.metrics, op, actor.TenantID, opErr,
			zap.String("user_id", actor.UserID.String()),
			zap.String("cash_box_id", cashBoxID.String()),
			zap.String("amount", amount.String()),
		)
	}
	s.recordEntries(ctx, actor.TenantID, result)
	return result, nil
}

// authorizedBox loads a cash box and applies the permission ladder to it.
// The tier check runs before the lookup so that callers without any
// permission cannot probe for existence.
func (s *LedgerService) authorizedBox(ctx context.Context, actor access.Actor, action string, id uuid.UUID) (*treasury.CashBox, error) {
	return loadAuthorizedBox(ctx, s.cashBoxes, actor, action, id)
}

func loadAuthorizedBox(
	ctx context.Context,
	repo treasury.CashBoxRepository,
	actor access.Actor,
	action string,
	id uuid.UUID,
) (*treasury.CashBox, error) {
	if err := access.AuthorizeTenant(actor, access.ResourceCashBox, action, actor.TenantID); err != nil {
		return nil, err
	}
	box, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(actor, access.ResourceCashBox, action, box.Ownership()); err != nil {
		return nil, err
	}
	return box, nil
}

// execute runs fn and flushes its writer inside one transaction, guarded by
// the idempotency key
func (s *LedgerService) execute(
	ctx context.Context,
	actor access.Actor,
	idempotencyKey string,
	fn func(repos TransactionalRepositories, w *LedgerWriter) error,
) (*LedgerWriter, error) {
	var writer *LedgerWriter
	err := s.idempotency.Run(ctx, actor.TenantID, idempotencyKey, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			w := NewLedgerWriter(repos)
			if err := fn(repos, w); err != nil {
				return err
			}
			if err := w.Flush(ctx); err != nil {
				return err
			}
			writer = w
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return writer, nil
}

func (s *LedgerService) recordEntries(ctx context.Context, tenantID uuid.UUID, result *MovementResult) {
	for _, e := range result.Entries {
		s.metrics.RecordEntry(ctx, tenantID, e.Type, e.Amount.Abs())
	}
}

func describe(description, fallback string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return fallback
}
