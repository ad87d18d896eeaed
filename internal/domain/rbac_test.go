package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/derailed/derailed/internal/models"
)

const (
	ownerID = 1
	userID  = 2
)

func guild(base models.Permissions) models.Guild {
	return models.Guild{ID: 100, OwnerID: ownerID, Permissions: base}
}

func TestOwnerShortCircuit(t *testing.T) {
	require := require.New(t)
	roles := []models.Role{
		{ID: 10, Deny: models.AllPermissions, Position: 5},
		{ID: 11, Allow: 0, Deny: models.PermViewChannels, Position: 9},
	}
	require.Equal(models.AllPermissions, ResolvePermissions(guild(0), ownerID, roles))
	require.Equal(models.AllPermissions, ResolvePermissions(guild(0), ownerID, nil))
}

func TestAdministratorShortCircuit(t *testing.T) {
	require := require.New(t)
	roles := []models.Role{
		{ID: 10, Allow: models.PermAdministrator, Deny: models.PermCreateMessages, Position: 1},
	}
	require.Equal(models.AllPermissions, ResolvePermissions(guild(models.DefaultPermissions), userID, roles))

	// Administrator in the base set counts too.
	require.Equal(models.AllPermissions, ResolvePermissions(guild(models.PermAdministrator), userID, nil))

	// A higher role can take administrator away.
	roles = append(roles, models.Role{ID: 11, Deny: models.PermAdministrator, Position: 2})
	perms := ResolvePermissions(guild(models.DefaultPermissions), userID, roles)
	require.False(perms.Has(models.PermAdministrator))
	require.False(perms.Has(models.PermCreateMessages))
}

func TestOrderSensitivity(t *testing.T) {
	require := require.New(t)
	x := models.PermManageChannels
	a := models.Role{ID: 10, Deny: x, Position: 0}
	b := models.Role{ID: 11, Allow: x, Position: 1}

	require.True(ApplyRoles(0, []models.Role{a, b}).Has(x))
	require.False(ApplyRoles(0, []models.Role{b, a}).Has(x))

	// The resolver orders by position, so input order is irrelevant...
	require.True(ResolvePermissions(guild(0), userID, []models.Role{a, b}).Has(x))
	require.True(ResolvePermissions(guild(0), userID, []models.Role{b, a}).Has(x))

	// ...and swapping positions flips the outcome.
	a.Position, b.Position = 1, 0
	require.False(ResolvePermissions(guild(0), userID, []models.Role{a, b}).Has(x))
	require.False(ResolvePermissions(guild(0), userID, []models.Role{b, a}).Has(x))
}

func TestAllowWinsWithinRole(t *testing.T) {
	require := require.New(t)
	x := models.PermManageRoles
	role := models.Role{ID: 10, Allow: x, Deny: x, Position: 0}
	require.True(ApplyRoles(0, []models.Role{role}).Has(x))
	require.True(ResolvePermissions(guild(0), userID, []models.Role{role}).Has(x))
}

func TestNoRoles(t *testing.T) {
	require := require.New(t)
	require.Equal(models.DefaultPermissions, ResolvePermissions(guild(models.DefaultPermissions), userID, nil))
	require.Equal(models.Permissions(0), ResolvePermissions(guild(0), userID, []models.Role{}))
}

func TestTieBreakByID(t *testing.T) {
	require := require.New(t)
	x := models.PermHandleBans
	low := models.Role{ID: 10, Deny: x, Position: 3}
	high := models.Role{ID: 20, Allow: x, Position: 3}
	require.True(ResolvePermissions(guild(0), userID, []models.Role{high, low}).Has(x))
	require.True(ResolvePermissions(guild(0), userID, []models.Role{low, high}).Has(x))

	low.Allow, low.Deny = x, 0
	high.Allow, high.Deny = 0, x
	require.False(ResolvePermissions(guild(0), userID, []models.Role{high, low}).Has(x))
	require.False(ResolvePermissions(guild(0), userID, []models.Role{low, high}).Has(x))
}

func TestResolveDoesNotMutate(t *testing.T) {
	require := require.New(t)
	roles := []models.Role{
		{ID: 3, Position: 9},
		{ID: 2, Position: 1},
		{ID: 1, Position: 5},
	}
	ResolvePermissions(guild(0), userID, roles)
	require.Equal([]models.Role{{ID: 3, Position: 9}, {ID: 2, Position: 1}, {ID: 1, Position: 5}}, roles)

	sorted := SortRoles(roles)
	require.Equal(2, int(sorted[0].ID))
	require.Equal(1, int(sorted[1].ID))
	require.Equal(3, int(sorted[2].ID))
}

func TestDeterministic(t *testing.T) {
	require := require.New(t)
	roles := []models.Role{
		{ID: 5, Allow: models.PermManageGuild, Deny: models.PermViewChannels, Position: 2},
		{ID: 4, Allow: models.PermViewChannels, Deny: models.PermCreateInvites, Position: 2},
		{ID: 6, Deny: models.PermManageGuild, Position: 1},
	}
	first := ResolvePermissions(guild(models.DefaultPermissions), userID, roles)
	for i := 0; i < 50; i++ {
		require.Equal(first, ResolvePermissions(guild(models.DefaultPermissions), userID, roles))
	}
	require.True(first.Has(models.PermManageGuild))
	require.False(first.Has(models.PermViewChannels))
	require.False(first.Has(models.PermCreateInvites))
}

func TestCanManageRole(t *testing.T) {
	require := require.New(t)
	g := guild(0)
	manager := []models.Role{{ID: 10, Allow: models.PermManageRoles | models.PermViewChannels, Position: 5}}
	actor := NewActor(g, userID, manager)
	require.Equal(5, actor.TopPosition)

	require.NoError(actor.CanManageRole(models.Role{ID: 11, Allow: models.PermViewChannels, Position: 4}))
	require.ErrorIs(actor.CanManageRole(models.Role{ID: 12, Position: 5}), models.ErrPermDenied)
	require.ErrorIs(actor.CanManageRole(models.Role{ID: 13, Allow: models.PermManageGuild, Position: 1}), models.ErrPermDenied)

	owner := NewActor(g, ownerID, nil)
	require.NoError(owner.CanManageRole(models.Role{ID: 12, Allow: models.AllPermissions, Position: 99}))

	plain := NewActor(g, 3, nil)
	require.ErrorIs(plain.CanManageRole(models.Role{ID: 11, Position: 0}), models.ErrPermDenied)
}

func TestCanModerate(t *testing.T) {
	require := require.New(t)
	g := guild(0)
	mod := NewActor(g, userID, []models.Role{{ID: 10, Allow: models.PermHandleKicks, Position: 3}})
	member := NewActor(g, 3, []models.Role{{ID: 11, Position: 1}})
	peer := NewActor(g, 4, []models.Role{{ID: 12, Position: 3}})
	owner := NewActor(g, ownerID, nil)

	require.NoError(mod.CanModerate(models.PermHandleKicks, member))
	require.Error(mod.CanModerate(models.PermHandleBans, member))
	require.Error(mod.CanModerate(models.PermHandleKicks, peer))
	require.Error(mod.CanModerate(models.PermHandleKicks, owner))
	require.Error(mod.CanModerate(models.PermHandleKicks, mod))
	require.NoError(owner.CanModerate(models.PermHandleBans, peer))
}
