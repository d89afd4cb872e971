// Package datascope turns an access.Scope into GORM query conditions.
//
// The permission ladder decides which records a caller may list:
//   - all: every record of every company
//   - company: every record of the caller's company
//   - children: records owned or created by the caller or a subordinate
//   - own: records owned or created by the caller
//
// Usage:
//
//	scope, _ := access.ListScope(actor, access.ResourceCashBox, access.ActionView)
//	db.Scopes(datascope.Apply(scope, datascope.OwnedColumns("owner_id"))).Find(&boxes)
package datascope

import (
	"github.com/erp/treasury/internal/domain/access"
	"gorm.io/gorm"
)

// Columns names the columns a table exposes for scope filtering
type Columns struct {
	Tenant  string
	Owner   string
	Creator string
}

// OwnedColumns returns the columns of a tenant table whose records have an
// owner column besides created_by. An empty owner means creator-only.
func OwnedColumns(owner string) Columns {
	return Columns{Tenant: "tenant_id", Owner: owner, Creator: "created_by"}
}

// allowedColumns guards the column names that are spliced into SQL
var allowedColumns = map[string]bool{
	"":           true,
	"tenant_id":  true,
	"owner_id":   true,
	"created_by": true,
	"user_id":    true,
}

// Apply returns a GORM scope function restricting a query to scope.
// A scope with no tier matches nothing.
func Apply(scope access.Scope, cols Columns) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !allowedColumns[cols.Tenant] || !allowedColumns[cols.Owner] || !allowedColumns[cols.Creator] {
			return db.Where("1 = 0")
		}

		switch scope.Tier {
		case access.TierAll:
			return db
		case access.TierCompany:
			return db.Where(cols.Tenant+" = ?", scope.TenantID)
		case access.TierChildren, access.TierOwn:
			if len(scope.UserIDs) == 0 {
				return db.Where("1 = 0")
			}
			db = db.Where(cols.Tenant+" = ?", scope.TenantID)
			if cols.Owner == "" {
				return db.Where(cols.Creator+" IN ?", scope.UserIDs)
			}
			return db.Where(db.Session(&gorm.Session{NewDB: true}).
				Where(cols.Owner+" IN ?", scope.UserIDs).
				Or(cols.Creator+" IN ?", scope.UserIDs))
		default:
			return db.Where("1 = 0")
		}
	}
}
