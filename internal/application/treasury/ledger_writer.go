package treasury

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/google/uuid"
)

var errBoxNotLocked = shared.NewDomainError(shared.CodeUnexpected, "cash box was not locked before posting")

// LedgerWriter applies postings to cash boxes inside one transaction.
//
// Boxes must be locked through Lock before they are credited or debited.
// Lock refreshes each box's balance from the ledger while the row lock is
// held, so sufficiency checks never rely on a stale projection. Nothing is
// written until Flush.
type LedgerWriter struct {
	repos   TransactionalRepositories
	boxes   map[uuid.UUID]*treasury.CashBox
	dirty   map[uuid.UUID]bool
	entries []*treasury.LedgerEntry
	pending []*treasury.LedgerEntry
}

// NewLedgerWriter creates a writer bound to the repositories of a transaction
func NewLedgerWriter(repos TransactionalRepositories) *LedgerWriter {
	return &LedgerWriter{
		repos: repos,
		boxes: make(map[uuid.UUID]*treasury.CashBox),
		dirty: make(map[uuid.UUID]bool),
	}
}

// Lock row-locks the given boxes, in ascending id order, and syncs their
// balances from the ledger. A missing box is NotFound.
func (w *LedgerWriter) Lock(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*treasury.CashBox, error) {
	locked, err := w.repos.CashBoxes().LockByIDs(ctx, ids...)
	if err != nil {
		return nil, err
	}
	result := make(map[uuid.UUID]*treasury.CashBox, len(ids))
	for _, id := range ids {
		if box, ok := w.boxes[id]; ok {
			result[id] = box
			continue
		}
		box, ok := locked[id]
		if !ok {
			return nil, shared.NewNotFoundError("cash box not found")
		}
		tally, err := w.repos.Ledger().Tally(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to tally ledger: %w", err)
		}
		box.Sync(tally)
		w.boxes[id] = box
		result[id] = box
	}
	return result, nil
}

// Credit posts a positive entry to a locked box
func (w *LedgerWriter) Credit(cashBoxID uuid.UUID, p treasury.Posting) (*treasury.LedgerEntry, error) {
	box, ok := w.boxes[cashBoxID]
	if !ok {
		return nil, errBoxNotLocked
	}
	entry, err := box.Credit(p)
	if err != nil {
		return nil, err
	}
	w.track(entry)
	return entry, nil
}

// Debit posts a negative entry to a locked box, failing with
// InsufficientFunds when its balance does not cover the amount
func (w *LedgerWriter) Debit(cashBoxID uuid.UUID, p treasury.Posting) (*treasury.LedgerEntry, error) {
	box, ok := w.boxes[cashBoxID]
	if !ok {
		return nil, errBoxNotLocked
	}
	entry, err := box.Debit(p)
	if err != nil {
		return nil, err
	}
	w.track(entry)
	return entry, nil
}

func (w *LedgerWriter) track(entry *treasury.LedgerEntry) {
	w.entries = append(w.entries, entry)
	w.pending = append(w.pending, entry)
	w.dirty[entry.CashBoxID] = true
}

// Box returns a box previously locked by this writer
func (w *LedgerWriter) Box(id uuid.UUID) *treasury.CashBox {
	return w.boxes[id]
}

// Entries returns the entries posted so far, in posting order
func (w *LedgerWriter) Entries() []*treasury.LedgerEntry {
	return w.entries
}

// Flush appends the posted entries, saves the touched boxes and records
// their domain events in the outbox.
func (w *LedgerWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.repos.Ledger().Append(ctx, w.pending...); err != nil {
		return fmt.Errorf("failed to append ledger entries: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(w.dirty))
	for id := range w.dirty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var events []shared.DomainEvent
	for _, id := range ids {
		box := w.boxes[id]
		if err := w.repos.CashBoxes().Save(ctx, box); err != nil {
			return fmt.Errorf("failed to save cash box: %w", err)
		}
		events = append(events, box.GetDomainEvents()...)
		box.ClearDomainEvents()
	}
	if len(events) > 0 {
		if err := w.repos.Events().Record(ctx, events...); err != nil {
			return fmt.Errorf("failed to record events: %w", err)
		}
	}
	w.pending = nil
	w.dirty = make(map[uuid.UUID]bool)
	return nil
}
