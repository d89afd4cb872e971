package persistence

import (
	"strings"

	"github.com/erp/treasury/internal/domain/shared"
	"gorm.io/gorm/clause"
)

// orderColumns whitelists the columns a list query may sort by. Anything
// else falls back to the default column, so user input never reaches SQL.
type orderColumns struct {
	fallback string
	allowed  []string
}

var (
	cashBoxOrder     = orderColumns{fallback: "created_at", allowed: []string{"id", "name", "balance", "created_at", "updated_at"}}
	ledgerEntryOrder = orderColumns{fallback: "sequence", allowed: []string{"sequence", "amount", "created_at"}}
	planOrder        = orderColumns{fallback: "created_at", allowed: []string{"id", "status", "total_amount", "remaining_amount", "created_at", "updated_at"}}
)

func (o orderColumns) column(name string) string {
	name = strings.TrimSpace(name)
	for _, c := range o.allowed {
		if c == name {
			return c
		}
	}
	return o.fallback
}

// By builds the ORDER BY for a filter. Direction defaults to descending.
func (o orderColumns) By(filter shared.Filter) clause.OrderByColumn {
	return clause.OrderByColumn{
		Column: clause.Column{Name: o.column(filter.OrderBy)},
		Desc:   !strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc"),
	}
}
