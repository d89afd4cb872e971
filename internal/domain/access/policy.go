// Package access implements the permission ladder shared by every
// money-moving and installment operation.
//
// Permissions are keys of the form "<resource>.<action>.<tier>", for example
// "cashbox.transfer.company". The tiers form a ladder:
//
//	own      records the caller owns or created
//	children records created by (or owned by) the caller's subordinates
//	company  every record of the caller's company
//	all      every record of every company
//
// The highest tier the caller holds for a resource/action wins.
package access

import (
	"slices"
	"strings"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// Tier is one rung of the permission ladder
type Tier int

const (
	TierNone Tier = iota
	TierOwn
	TierChildren
	TierCompany
	TierAll
)

var tierNames = map[Tier]string{
	TierNone:     "none",
	TierOwn:      "own",
	TierChildren: "children",
	TierCompany:  "company",
	TierAll:      "all",
}

// String returns the permission-key suffix of the tier
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "none"
}

// ParseTier parses a permission-key suffix
func ParseTier(s string) (Tier, bool) {
	for t, name := range tierNames {
		if t != TierNone && name == s {
			return t, true
		}
	}
	return TierNone, false
}

// Resources
const (
	ResourceCashBox     = "cashbox"
	ResourceCashBoxType = "cashbox_type"
	ResourceInstallment = "installment"
)

// Actions
const (
	ActionView     = "view"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionDeposit  = "deposit"
	ActionWithdraw = "withdraw"
	ActionTransfer = "transfer"
	ActionReverse  = "reverse"
	ActionPay      = "pay"
	ActionCancel   = "cancel"
)

// Key builds a permission key
func Key(resource, action string, tier Tier) string {
	return resource + "." + action + "." + tier.String()
}

// Actor is the authenticated caller as supplied by the authentication layer
type Actor struct {
	UserID       uuid.UUID
	TenantID     uuid.UUID
	Subordinates []uuid.UUID
	Permissions  []string
}

// IsZero reports whether no caller identity is present
func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}

// HasPermission reports whether the actor holds the exact key
func (a Actor) HasPermission(key string) bool {
	return slices.Contains(a.Permissions, key)
}

// HasAnyPermission reports whether the actor holds at least one of the keys
func (a Actor) HasAnyPermission(keys ...string) bool {
	for _, k := range keys {
		if a.HasPermission(k) {
			return true
		}
	}
	return false
}

// IsSubordinate reports whether userID reports to the actor
func (a Actor) IsSubordinate(userID uuid.UUID) bool {
	return slices.Contains(a.Subordinates, userID)
}

// TierFor returns the highest tier the actor holds for resource/action
func (a Actor) TierFor(resource, action string) Tier {
	prefix := resource + "." + action + "."
	best := TierNone
	for _, p := range a.Permissions {
		suffix, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		if t, ok := ParseTier(suffix); ok && t > best {
			best = t
		}
	}
	return best
}

// Ownership describes who a record belongs to
type Ownership struct {
	TenantID  uuid.UUID
	OwnerID   uuid.UUID
	CreatedBy uuid.UUID
}

// Authorize decides whether actor may perform action on a record of the
// given resource with the given ownership. A record in another company is
// reported as not found unless the actor holds the "all" tier.
func Authorize(actor Actor, resource, action string, target Ownership) error {
	if actor.IsZero() {
		return shared.ErrUnauthenticated
	}
	tier := actor.TierFor(resource, action)
	if tier == TierNone {
		return denied(resource, action)
	}
	if tier == TierAll {
		return nil
	}
	if target.TenantID != actor.TenantID {
		return shared.NewNotFoundError(resource + " not found")
	}

	switch tier {
	case TierCompany:
		return nil
	case TierChildren:
		if ownedBy(actor.UserID, target) ||
			actor.IsSubordinate(target.CreatedBy) ||
			actor.IsSubordinate(target.OwnerID) {
			return nil
		}
	case TierOwn:
		if ownedBy(actor.UserID, target) {
			return nil
		}
	}
	return denied(resource, action)
}

// AuthorizeTenant checks only the company boundary: it passes when the actor
// holds any tier for resource/action and either holds the "all" tier or
// belongs to tenantID. It is used for the far side of an operation, such as
// the destination of a transfer.
func AuthorizeTenant(actor Actor, resource, action string, tenantID uuid.UUID) error {
	if actor.IsZero() {
		return shared.ErrUnauthenticated
	}
	tier := actor.TierFor(resource, action)
	if tier == TierNone {
		return denied(resource, action)
	}
	if tier != TierAll && tenantID != actor.TenantID {
		return shared.NewNotFoundError(resource + " not found")
	}
	return nil
}

func ownedBy(userID uuid.UUID, target Ownership) bool {
	return target.OwnerID == userID || target.CreatedBy == userID
}

func denied(resource, action string) error {
	return shared.NewDomainError(shared.CodeUnauthorized, "not allowed to "+action+" "+resource)
}

// Scope restricts list queries to what the actor may see
type Scope struct {
	Tier     Tier
	TenantID uuid.UUID
	// UserIDs holds the users whose records are visible for the own and
	// children tiers. Records match when owned or created by one of them.
	UserIDs []uuid.UUID
}

// ListScope returns the visibility scope of actor for resource/action
func ListScope(actor Actor, resource, action string) (Scope, error) {
	if actor.IsZero() {
		return Scope{}, shared.ErrUnauthenticated
	}
	tier := actor.TierFor(resource, action)
	scope := Scope{Tier: tier, TenantID: actor.TenantID}
	switch tier {
	case TierNone:
		return Scope{}, denied(resource, action)
	case TierOwn:
		scope.UserIDs = []uuid.UUID{actor.UserID}
	case TierChildren:
		scope.UserIDs = append([]uuid.UUID{actor.UserID}, actor.Subordinates...)
	}
	return scope, nil
}
