package access

import (
	"errors"
	"testing"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorWith(tenantID uuid.UUID, perms ...string) Actor {
	return Actor{UserID: uuid.New(), TenantID: tenantID, Permissions: perms}
}

func TestTier(t *testing.T) {
	t.Run("ParseTier round trips", func(t *testing.T) {
		for _, tier := range []Tier{TierOwn, TierChildren, TierCompany, TierAll} {
			parsed, ok := ParseTier(tier.String())
			require.True(t, ok)
			assert.Equal(t, tier, parsed)
		}
	})

	t.Run("ParseTier rejects unknown and none", func(t *testing.T) {
		_, ok := ParseTier("everything")
		assert.False(t, ok)
		_, ok = ParseTier("none")
		assert.False(t, ok)
	})

	t.Run("Key format", func(t *testing.T) {
		assert.Equal(t, "cashbox.transfer.company", Key(ResourceCashBox, ActionTransfer, TierCompany))
	})
}

func TestActorTierFor(t *testing.T) {
	tenant := uuid.New()
	actor := actorWith(tenant,
		Key(ResourceCashBox, ActionDeposit, TierOwn),
		Key(ResourceCashBox, ActionDeposit, TierCompany),
		Key(ResourceCashBox, ActionWithdraw, TierChildren),
		"cashbox.deposit.bogus",
	)

	assert.Equal(t, TierCompany, actor.TierFor(ResourceCashBox, ActionDeposit))
	assert.Equal(t, TierChildren, actor.TierFor(ResourceCashBox, ActionWithdraw))
	assert.Equal(t, TierNone, actor.TierFor(ResourceCashBox, ActionTransfer))
	assert.Equal(t, TierNone, actor.TierFor(ResourceInstallment, ActionDeposit))
}

func TestAuthorize(t *testing.T) {
	tenant := uuid.New()

	t.Run("no identity is unauthenticated", func(t *testing.T) {
		err := Authorize(Actor{}, ResourceCashBox, ActionView, Ownership{TenantID: tenant})
		assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
	})

	t.Run("no permission is unauthorized", func(t *testing.T) {
		actor := actorWith(tenant)
		err := Authorize(actor, ResourceCashBox, ActionView, Ownership{TenantID: tenant, OwnerID: actor.UserID})
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	t.Run("own tier accepts owned and created records only", func(t *testing.T) {
		actor := actorWith(tenant, Key(ResourceCashBox, ActionWithdraw, TierOwn))

		assert.NoError(t, Authorize(actor, ResourceCashBox, ActionWithdraw,
			Ownership{TenantID: tenant, OwnerID: actor.UserID}))
		assert.NoError(t, Authorize(actor, ResourceCashBox, ActionWithdraw,
			Ownership{TenantID: tenant, OwnerID: uuid.New(), CreatedBy: actor.UserID}))

		err := Authorize(actor, ResourceCashBox, ActionWithdraw,
			Ownership{TenantID: tenant, OwnerID: uuid.New(), CreatedBy: uuid.New()})
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	t.Run("children tier accepts subordinate records", func(t *testing.T) {
		sub := uuid.New()
		actor := actorWith(tenant, Key(ResourceCashBox, ActionReverse, TierChildren))
		actor.Subordinates = []uuid.UUID{sub}

		assert.NoError(t, Authorize(actor, ResourceCashBox, ActionReverse,
			Ownership{TenantID: tenant, OwnerID: uuid.New(), CreatedBy: sub}))
		assert.NoError(t, Authorize(actor, ResourceCashBox, ActionReverse,
			Ownership{TenantID: tenant, OwnerID: sub, CreatedBy: uuid.New()}))

		err := Authorize(actor, ResourceCashBox, ActionReverse,
			Ownership{TenantID: tenant, OwnerID: uuid.New(), CreatedBy: uuid.New()})
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	t.Run("company tier accepts any record of the tenant", func(t *testing.T) {
		actor := actorWith(tenant, Key(ResourceCashBox, ActionTransfer, TierCompany))
		assert.NoError(t, Authorize(actor, ResourceCashBox, ActionTransfer,
			Ownership{TenantID: tenant, OwnerID: uuid.New()}))
	})

	t.Run("other tenant looks like not found below all tier", func(t *testing.T) {
		actor := actorWith(tenant, Key(ResourceCashBox, ActionTransfer, TierCompany))
		err := Authorize(actor, ResourceCashBox, ActionTransfer, Ownership{TenantID: uuid.New()})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("all tier crosses tenants", func(t *testing.T) {
		actor := actorWith(tenant, Key(ResourceCashBox, ActionTransfer, TierAll))
		assert.NoError(t, Authorize(actor, ResourceCashBox, ActionTransfer, Ownership{TenantID: uuid.New()}))
	})
}

func TestListScope(t *testing.T) {
	tenant := uuid.New()

	t.Run("own", func(t *testing.T) {
		actor := actorWith(tenant, Key(ResourceCashBox, ActionView, TierOwn))
		scope, err := ListScope(actor, ResourceCashBox, ActionView)
		require.NoError(t, err)
		assert.Equal(t, TierOwn, scope.Tier)
		assert.Equal(t, []uuid.UUID{actor.UserID}, scope.UserIDs)
	})

	t.Run("children includes self and subordinates", func(t *testing.T) {
		sub := uuid.New()
		actor := actorWith(tenant, Key(ResourceCashBox, ActionView, TierChildren))
		actor.Subordinates = []uuid.UUID{sub}
		scope, err := ListScope(actor, ResourceCashBox, ActionView)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{actor.UserID, sub}, scope.UserIDs)
	})

	t.Run("company has no user restriction", func(t *testing.T) {
		actor := actorWith(tenant, Key(ResourceCashBox, ActionView, TierCompany))
		scope, err := ListScope(actor, ResourceCashBox, ActionView)
		require.NoError(t, err)
		assert.Empty(t, scope.UserIDs)
		assert.Equal(t, tenant, scope.TenantID)
	})

	t.Run("none is denied", func(t *testing.T) {
		_, err := ListScope(actorWith(tenant), ResourceCashBox, ActionView)
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})
}

func TestAuthorizeTenant(t *testing.T) {
	tenant := uuid.New()
	actor := actorWith(tenant, Key(ResourceCashBox, ActionTransfer, TierOwn))

	assert.NoError(t, AuthorizeTenant(actor, ResourceCashBox, ActionTransfer, tenant))
	assert.True(t, errors.Is(AuthorizeTenant(actor, ResourceCashBox, ActionTransfer, uuid.New()), shared.ErrNotFound))
	assert.True(t, errors.Is(AuthorizeTenant(actor, ResourceCashBox, ActionDeposit, tenant), shared.ErrUnauthorized))

	elevated := actorWith(tenant, Key(ResourceCashBox, ActionTransfer, TierAll))
	assert.NoError(t, AuthorizeTenant(elevated, ResourceCashBox, ActionTransfer, uuid.New()))
}
