package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerms(t *testing.T) {
	require := require.New(t)
	ps := PermManageGuild
	err := ps.Require(
		PermManageGuild,
		PermManageRoles,
	)
	require.Error(err)
	require.True(errors.Is(err, ErrPermDenied))
	var missing ErrMissingPerms
	require.True(errors.As(err, &missing))
	require.Equal(PermManageRoles, missing.Perms)

	ps2 := PermManageGuild | PermManageRoles
	require.True(ps.SubsetOf(ps2))
	require.False(ps2.SubsetOf(ps))
	require.True(ps2.Check(PermManageGuild, PermManageRoles))
	require.Equal(ps, ps2.Intersect(ps))
	require.Equal(ps2, ps.Union(PermManageRoles))
}

func TestAllPermissions(t *testing.T) {
	require := require.New(t)
	require.Equal(Permissions(0xFFF), AllPermissions)
	require.Len(AllPermissions.List(), len(permNames))
	for p := range permNames {
		require.True(AllPermissions.Has(p))
	}
	require.True(AllPermissions.Valid())
	require.False((AllPermissions | 1<<40).Valid())
	require.True(DefaultPermissions.SubsetOf(AllPermissions))
	require.False(DefaultPermissions.Has(PermAdministrator))
}

func TestPermsString(t *testing.T) {
	require := require.New(t)
	require.Equal("NONE", Permissions(0).String())
	require.Equal("ADMINISTRATOR|MANAGE_GUILD", (PermAdministrator | PermManageGuild).String())
	require.Equal("VIEW_CHANNELS|BIT_20", (PermViewChannels | 1<<20).String())

	p, ok := ParsePermission("create_messages")
	require.True(ok)
	require.Equal(PermCreateMessages, p)
	_, ok = ParsePermission("fly")
	require.False(ok)
}

func TestPermsJSON(t *testing.T) {
	require := require.New(t)
	b, err := json.Marshal(Role{Allow: PermViewChannels, Deny: PermCreateMessages})
	require.NoError(err)
	require.Contains(string(b), `"allow":256`)
	require.Contains(string(b), `"deny":2048`)
}

func TestUserView(t *testing.T) {
	require := require.New(t)
	u := User{ID: 7, Username: "pippo", Email: "pippo@strana.com", Flags: DefaultUserFlags}
	b, err := json.Marshal(u.View())
	require.NoError(err)
	require.NotContains(string(b), "email")
	require.True(u.Flags.Has(UserFlagEarlySupporter))
	require.False(u.Flags.Has(UserFlagStaff))
}

func TestChannelType(t *testing.T) {
	require := require.New(t)
	require.True(ChannelTypeText.Valid())
	require.True(ChannelTypeCategory.Valid())
	require.False(ChannelType(7).Valid())
}
