package treasury

import (
	"context"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errAlreadyReversed = shared.NewConflictError("ledger entry has already been reversed")

// Reverse appends the compensating entries for a prior deposit, withdrawal
// or transfer. Each compensating entry links back to the original through
// its original entry id, and an entry can be reversed at most once.
func (s *LedgerService) Reverse(ctx context.Context, req ReverseRequest) (*MovementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "treasury", "reverse")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntryID, req.EntryID.String())

	var result *MovementResult
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.TreasuryOperationLabels("reverse"), func(c context.Context) {
		result, opErr = s.reverse(c, req)
	})
	if opErr != nil {
		opErr = ReportFailure(ctx, s.logger, s.metrics, "reverse", req.Actor.TenantID, opErr,
			zap.String("user_id", req.Actor.UserID.String()),
			zap.String("entry_id", req.EntryID.String()),
		)
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}
	s.recordEntries(ctx, req.Actor.TenantID, result)
	telemetry.SetOK(span)
	return result, nil
}

func (s *LedgerService) reverse(ctx context.Context, req ReverseRequest) (*MovementResult, error) {
	if err := access.AuthorizeTenant(req.Actor, access.ResourceCashBox, access.ActionReverse, req.Actor.TenantID); err != nil {
		return nil, err
	}
	original, err := s.ledger.FindByID(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if _, err := loadAuthorizedBox(ctx, s.cashBoxes, req.Actor, access.ActionReverse, original.CashBoxID); err != nil {
		return nil, err
	}

	operationID := uuid.New()
	legs, err := treasury.PlanReversal(original, req.Actor.UserID, operationID, req.Description)
	if err != nil {
		return nil, err
	}
	lockIDs := make([]uuid.UUID, 0, len(legs))
	for _, leg := range legs {
		if leg.CashBoxID != original.CashBoxID {
			// The debited far side of a reversed transfer is held to the
			// same company boundary as a transfer destination
			far, err := s.cashBoxes.FindByID(ctx, leg.CashBoxID)
			if err != nil {
				return nil, err
			}
			if err := access.AuthorizeTenant(req.Actor, access.ResourceCashBox, access.ActionReverse, far.TenantID); err != nil {
				return nil, err
			}
		}
		lockIDs = append(lockIDs, leg.CashBoxID)
	}

	w, err := s.execute(ctx, req.Actor, req.IdempotencyKey, func(repos TransactionalRepositories, w *LedgerWriter) error {
		// The original's cash box is always among the locked boxes, so two
		// concurrent reversals of one entry serialize here.
		if _, err := w.Lock(ctx, lockIDs...); err != nil {
			return err
		}
		existing, err := repos.Ledger().FindReversalsOf(ctx, original.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return errAlreadyReversed
		}

		for _, leg := range legs {
			if leg.Credit {
				_, err = w.Credit(leg.CashBoxID, leg.Posting)
			} else {
				_, err = w.Debit(leg.CashBoxID, leg.Posting)
			}
			if err != nil {
				return err
			}
		}
		return repos.Events().Record(ctx, treasury.NewLedgerEntryReversedEvent(original, w.Entries(), req.Actor.UserID))
	})
	if err != nil {
		return nil, err
	}
	return newMovementResult(operationID, w), nil
}
