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

// CashBoxService manages cash boxes, their types, and read access to their
// ledgers
type CashBoxService struct {
	scope     TransactionScope
	cashBoxes treasury.CashBoxRepository
	types     treasury.CashBoxTypeRepository
	ledger    treasury.LedgerRepository
	metrics   Metrics
	logger    *zap.Logger
}

// NewCashBoxService creates a new CashBoxService
func NewCashBoxService(
	scope TransactionScope,
	cashBoxes treasury.CashBoxRepository,
	types treasury.CashBoxTypeRepository,
	ledger treasury.LedgerRepository,
	opts ...ServiceOption,
) *CashBoxService {
	o := ApplyOptions(opts)
	return &CashBoxService{
		scope:     scope,
		cashBoxes: cashBoxes,
		types:     types,
		ledger:    ledger,
		metrics:   o.Metrics,
		logger:    o.Logger,
	}
}

// CreateType creates a cash box type in the actor's company
func (s *CashBoxService) CreateType(ctx context.Context, req CreateCashBoxTypeRequest) (*CashBoxTypeResponse, error) {
	if err := s.authorizeOwn(req.Actor, access.ResourceCashBoxType, access.ActionCreate); err != nil {
		return nil, err
	}
	if req.Protected && req.Actor.TierFor(access.ResourceCashBoxType, access.ActionCreate) < access.TierCompany {
		return nil, shared.NewDomainError(shared.CodeUnauthorized, "creating protected cash box types requires the company tier")
	}
	t, err := treasury.NewCashBoxType(req.Actor.TenantID, req.Name, req.Protected)
	if err != nil {
		return nil, err
	}
	if err := s.types.Save(ctx, t); err != nil {
		return nil, s.fail(ctx, "create cash box type", req.Actor, err)
	}
	resp := ToCashBoxTypeResponse(t)
	return &resp, nil
}

// ListTypes lists the cash box types of the actor's company
func (s *CashBoxService) ListTypes(ctx context.Context, actor access.Actor) ([]CashBoxTypeResponse, error) {
	if err := s.authorizeOwn(actor, access.ResourceCashBoxType, access.ActionView); err != nil {
		return nil, err
	}
	types, err := s.types.FindAllForTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, s.fail(ctx, "list cash box types", actor, err)
	}
	out := make([]CashBoxTypeResponse, 0, len(types))
	for i := range types {
		out = append(out, ToCashBoxTypeResponse(&types[i]))
	}
	return out, nil
}

// DeleteType deletes an unused, unprotected cash box type
func (s *CashBoxService) DeleteType(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if err := s.authorizeOwn(actor, access.ResourceCashBoxType, access.ActionDelete); err != nil {
		return err
	}
	t, err := s.types.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := access.AuthorizeTenant(actor, access.ResourceCashBoxType, access.ActionDelete, t.TenantID); err != nil {
		return err
	}
	inUse, err := s.cashBoxes.CountByType(ctx, id)
	if err != nil {
		return s.fail(ctx, "delete cash box type", actor, err)
	}
	if err := t.EnsureDeletable(inUse); err != nil {
		return err
	}
	if err := s.types.Delete(ctx, id); err != nil {
		return s.fail(ctx, "delete cash box type", actor, err)
	}
	return nil
}

// Create creates a cash box. The first box of an owner becomes their default.
func (s *CashBoxService) Create(ctx context.Context, req CreateCashBoxRequest) (*CashBoxResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "treasury", "create_cash_box")
	defer span.End()

	ownerID := req.Actor.UserID
	if req.OwnerID != nil && *req.OwnerID != uuid.Nil {
		ownerID = *req.OwnerID
	}
	// Creating a box for someone else is judged against the future owner only
	ownership := access.Ownership{TenantID: req.Actor.TenantID, OwnerID: ownerID, CreatedBy: ownerID}
	if err := access.Authorize(req.Actor, access.ResourceCashBox, access.ActionCreate, ownership); err != nil {
		return nil, err
	}
	boxType, err := s.types.FindByID(ctx, req.TypeID)
	if err != nil {
		return nil, err
	}
	if boxType.TenantID != req.Actor.TenantID {
		return nil, shared.NewNotFoundError("cash box type not found")
	}
	box, err := treasury.NewCashBox(req.Actor.TenantID, ownerID, req.Actor.UserID, boxType.ID, req.Name)
	if err != nil {
		return nil, err
	}
	box.WithAccountNumber(req.AccountNumber)

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		current, err := repos.CashBoxes().FindDefaultForOwner(ctx, box.TenantID, ownerID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if req.IsDefault || current == nil {
			box.MarkDefault()
		}
		if err := repos.CashBoxes().Save(ctx, box); err != nil {
			return err
		}
		if box.IsDefault && current != nil {
			return repos.CashBoxes().ClearDefault(ctx, box.TenantID, ownerID, box.ID)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "create cash box", req.Actor, err)
	}
	resp := ToCashBoxResponse(box)
	return &resp, nil
}

// Get returns a cash box with its ledger-derived balance
func (s *CashBoxService) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*CashBoxResponse, error) {
	box, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionView, id)
	if err != nil {
		return nil, err
	}
	tally, err := s.ledger.Tally(ctx, box.ID)
	if err != nil {
		return nil, s.fail(ctx, "get cash box", actor, err)
	}
	box.Sync(tally)
	resp := ToCashBoxResponse(box)
	return &resp, nil
}

// List lists the cash boxes visible to the actor under its view tier
func (s *CashBoxService) List(ctx context.Context, actor access.Actor, filter shared.Filter) (*shared.Paginated[CashBoxResponse], error) {
	scope, err := access.ListScope(actor, access.ResourceCashBox, access.ActionView)
	if err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	boxes, total, err := s.cashBoxes.FindAll(ctx, scope, filter)
	if err != nil {
		return nil, s.fail(ctx, "list cash boxes", actor, err)
	}
	items := make([]CashBoxResponse, 0, len(boxes))
	for i := range boxes {
		items = append(items, ToCashBoxResponse(&boxes[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Delete deletes a cash box that has no ledger history
func (s *CashBoxService) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if _, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionDelete, id); err != nil {
		return err
	}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		w := NewLedgerWriter(repos)
		boxes, err := w.Lock(ctx, id)
		if err != nil {
			return err
		}
		box := boxes[id]
		boxType, err := repos.CashBoxTypes().FindByID(ctx, box.TypeID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err := box.EnsureDeletable(box.LastSequence, boxType); err != nil {
			return err
		}
		return repos.CashBoxes().Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete cash box", actor, err)
	}
	return nil
}

// SetDefault makes a cash box its owner's default, clearing the previous one
func (s *CashBoxService) SetDefault(ctx context.Context, actor access.Actor, id uuid.UUID) (*CashBoxResponse, error) {
	box, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		w := NewLedgerWriter(repos)
		boxes, err := w.Lock(ctx, id)
		if err != nil {
			return err
		}
		box = boxes[id]
		if err := repos.CashBoxes().ClearDefault(ctx, box.TenantID, box.OwnerID, box.ID); err != nil {
			return err
		}
		box.MarkDefault()
		return repos.CashBoxes().Save(ctx, box)
	})
	if err != nil {
		return nil, s.fail(ctx, "set default cash box", actor, err)
	}
	resp := ToCashBoxResponse(box)
	return &resp, nil
}

// Balance derives a cash box's balance from its ledger
func (s *CashBoxService) Balance(ctx context.Context, actor access.Actor, id uuid.UUID) (*BalanceResult, error) {
	box, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionView, id)
	if err != nil {
		return nil, err
	}
	tally, err := s.ledger.Tally(ctx, box.ID)
	if err != nil {
		return nil, s.fail(ctx, "get balance", actor, err)
	}
	return &BalanceResult{
		CashBoxID:    box.ID,
		Balance:      tally.Balance,
		Entries:      tally.Entries,
		LastSequence: tally.LastSequence,
	}, nil
}

// Reconcile replays a cash box's full ledger, checks every balance snapshot
// against the running sum, and repairs the stored balance projection if it
// drifted from the ledger.
func (s *CashBoxService) Reconcile(ctx context.Context, actor access.Actor, id uuid.UUID) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "treasury", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCashBoxID, id.String())

	if _, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionUpdate, id); err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		boxes, err := repos.CashBoxes().LockByIDs(ctx, id)
		if err != nil {
			return err
		}
		box, ok := boxes[id]
		if !ok {
			return shared.NewNotFoundError("cash box not found")
		}
		entries, err := repos.Ledger().FindAllByCashBox(ctx, id)
		if err != nil {
			return err
		}
		report := treasury.Replay(entries)
		result = &ReconcileResult{
			CashBoxID:     id,
			LedgerBalance: report.Balance,
			StoredBalance: box.Balance,
			Entries:       report.Entries,
			BrokenEntries: report.Broken,
			Consistent:    report.IsConsistent() && report.Balance.Equal(box.Balance),
		}
		last := lastSequence(entries)
		if report.Balance.Equal(box.Balance) && box.LastSequence == last {
			return nil
		}
		box.Sync(treasury.Tally{Balance: report.Balance, Entries: report.Entries, LastSequence: last})
		box.IncrementVersion()
		result.Repaired = true
		return repos.CashBoxes().Save(ctx, box)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.fail(ctx, "reconcile cash box", actor, err)
	}
	if result.Repaired {
		logger := s.logger.With(zap.String("cash_box_id", id.String()))
		logger.Warn("cash box balance projection repaired from ledger",
			zap.String("stored_balance", result.StoredBalance.String()),
			zap.String("ledger_balance", result.LedgerBalance.String()),
		)
	}
	telemetry.SetOK(span)
	return result, nil
}

// ListEntries pages through a cash box's ledger
func (s *CashBoxService) ListEntries(
	ctx context.Context,
	actor access.Actor,
	cashBoxID uuid.UUID,
	filter shared.Filter,
) (*shared.Paginated[LedgerEntryResponse], error) {
	if _, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionView, cashBoxID); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	entries, total, err := s.ledger.FindByCashBox(ctx, cashBoxID, filter)
	if err != nil {
		return nil, s.fail(ctx, "list ledger entries", actor, err)
	}
	items := make([]LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, ToLedgerEntryResponse(&entries[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GetEntry returns one ledger entry
func (s *CashBoxService) GetEntry(ctx context.Context, actor access.Actor, entryID uuid.UUID) (*LedgerEntryResponse, error) {
	if err := access.AuthorizeTenant(actor, access.ResourceCashBox, access.ActionView, actor.TenantID); err != nil {
		return nil, err
	}
	entry, err := s.ledger.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := loadAuthorizedBox(ctx, s.cashBoxes, actor, access.ActionView, entry.CashBoxID); err != nil {
		return nil, err
	}
	resp := ToLedgerEntryResponse(entry)
	return &resp, nil
}

func (s *CashBoxService) authorizeOwn(actor access.Actor, resource, action string) error {
	return access.AuthorizeTenant(actor, resource, action, actor.TenantID)
}

func (s *CashBoxService) fail(ctx context.Context, op string, actor access.Actor, err error) error {
	return ReportFailure(ctx, s.logger, s.metrics, op, actor.TenantID, err, zap.String("user_id", actor.UserID.String()))
}

func lastSequence(entries []treasury.LedgerEntry) int64 {
	var last int64
	for _, e := range entries {
		if e.Sequence > last {
			last = e.Sequence
		}
	}
	return last
}

func isNotFound(err error) bool {
	return shared.CodeOf(err) == shared.CodeNotFound
}
