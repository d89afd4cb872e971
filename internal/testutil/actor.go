package testutil

import (
	"github.com/erp/treasury/internal/domain/access"
	"github.com/google/uuid"
)

var allActions = map[string][]string{
	access.ResourceCashBox: {
		access.ActionView, access.ActionCreate, access.ActionUpdate, access.ActionDelete,
		access.ActionDeposit, access.ActionWithdraw, access.ActionTransfer, access.ActionReverse,
	},
	access.ResourceCashBoxType: {
		access.ActionView, access.ActionCreate, access.ActionDelete,
	},
	access.ResourceInstallment: {
		access.ActionView, access.ActionCreate, access.ActionPay, access.ActionCancel, access.ActionUpdate,
	},
}

// Permissions returns the keys for resource at tier for each action.
func Permissions(resource string, tier access.Tier, actions ...string) []string {
	keys := make([]string, 0, len(actions))
	for _, action := range actions {
		keys = append(keys, access.Key(resource, action, tier))
	}
	return keys
}

// NewActor returns an actor holding exactly the given permission keys.
func NewActor(tenantID, userID uuid.UUID, permissions ...string) access.Actor {
	return access.Actor{UserID: userID, TenantID: tenantID, Permissions: permissions}
}

// ActorWithTier returns an actor holding every treasury and installment
// permission at tier.
func ActorWithTier(tenantID, userID uuid.UUID, tier access.Tier) access.Actor {
	var keys []string
	for _, resource := range []string{access.ResourceCashBox, access.ResourceCashBoxType, access.ResourceInstallment} {
		keys = append(keys, Permissions(resource, tier, allActions[resource]...)...)
	}
	return NewActor(tenantID, userID, keys...)
}
