package treasury

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tally is the ledger aggregate of one cash box
type Tally struct {
	Balance      decimal.Decimal
	Entries      int64
	LastSequence int64
}

// ReplayReport is the result of replaying a cash box's ledger
type ReplayReport struct {
	Balance decimal.Decimal
	Entries int64
	// Broken lists entries whose snapshots disagree with the running sum
	Broken []uuid.UUID
}

// IsConsistent reports whether every snapshot matched the running sum
func (r ReplayReport) IsConsistent() bool {
	return len(r.Broken) == 0
}

// Replay sums the entries of one cash box in sequence order and checks
// every balance-before/after snapshot against the running sum.
func Replay(entries []LedgerEntry) ReplayReport {
	ordered := make([]LedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	report := ReplayReport{Balance: decimal.Zero}
	for _, e := range ordered {
		if !e.BalanceBefore.Equal(report.Balance) || !e.IsConsistent() {
			report.Broken = append(report.Broken, e.ID)
		}
		report.Balance = report.Balance.Add(e.Amount)
		report.Entries++
	}
	return report
}
