package models

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var ErrPermDenied = errors.New("Missing permissions to execute action")

// Permissions is a bitset of guild capabilities.
type Permissions uint64

const (
	PermAdministrator Permissions = 1 << iota
	PermManageChannels
	PermManageRoles
	PermManageInvites
	PermManageChannelHistory
	PermManageGuild
	PermHandleBans
	PermHandleKicks
	PermViewChannels
	PermViewChannelHistory
	PermCreateInvites
	PermCreateMessages
)

// AllPermissions has every defined bit set.
const AllPermissions = PermAdministrator |
	PermManageChannels |
	PermManageRoles |
	PermManageInvites |
	PermManageChannelHistory |
	PermManageGuild |
	PermHandleBans |
	PermHandleKicks |
	PermViewChannels |
	PermViewChannelHistory |
	PermCreateInvites |
	PermCreateMessages

// DefaultPermissions is the base set of a new guild.
const DefaultPermissions = PermViewChannels |
	PermViewChannelHistory |
	PermCreateInvites |
	PermCreateMessages

var permNames = map[Permissions]string{
	PermAdministrator:        "ADMINISTRATOR",
	PermManageChannels:       "MANAGE_CHANNELS",
	PermManageRoles:          "MANAGE_ROLES",
	PermManageInvites:        "MANAGE_INVITES",
	PermManageChannelHistory: "MANAGE_CHANNEL_HISTORY",
	PermManageGuild:          "MANAGE_GUILD",
	PermHandleBans:           "HANDLE_BANS",
	PermHandleKicks:          "HANDLE_KICKS",
	PermViewChannels:         "VIEW_CHANNELS",
	PermViewChannelHistory:   "VIEW_CHANNEL_HISTORY",
	PermCreateInvites:        "CREATE_INVITES",
	PermCreateMessages:       "CREATE_MESSAGES",
}

type ErrMissingPerms struct {
	Perms Permissions
}

func (mp ErrMissingPerms) Error() string {
	return fmt.Sprintf("missing permission %s", mp.Perms)
}

func (mp ErrMissingPerms) Is(target error) bool {
	return target == ErrPermDenied
}

// Has reports whether every bit of p2 is set.
func (ps Permissions) Has(p2 Permissions) bool {
	return ps&p2 == p2
}

// Require returns ErrMissingPerms listing the bits that are not set.
func (ps Permissions) Require(reqPerms ...Permissions) error {
	var missing Permissions
	for _, p := range reqPerms {
		missing |= p &^ ps
	}
	if missing != 0 {
		return ErrMissingPerms{missing}
	}
	return nil
}

func (ps Permissions) Check(reqPerms ...Permissions) bool {
	return ps.Require(reqPerms...) == nil
}

func (ps Permissions) SubsetOf(ps2 Permissions) bool {
	return ps&^ps2 == 0
}

func (ps Permissions) Union(ps2 Permissions) Permissions {
	return ps | ps2
}

func (ps Permissions) Intersect(ps2 Permissions) Permissions {
	return ps & ps2
}

// Valid reports whether only defined bits are set.
func (ps Permissions) Valid() bool {
	return ps.SubsetOf(AllPermissions)
}

// List splits the set into single bits, lowest first.
func (ps Permissions) List() []Permissions {
	perms := []Permissions{}
	for rest := uint64(ps); rest != 0; rest &= rest - 1 {
		perms = append(perms, Permissions(1)<<bits.TrailingZeros64(rest))
	}
	return perms
}

func (ps Permissions) String() string {
	if ps == 0 {
		return "NONE"
	}
	names := []string{}
	for _, p := range ps.List() {
		if name, ok := permNames[p]; ok {
			names = append(names, name)
		} else {
			names = append(names, fmt.Sprintf("BIT_%d", bits.TrailingZeros64(uint64(p))))
		}
	}
	return strings.Join(names, "|")
}

// ParsePermission returns the bit called name.
func ParsePermission(name string) (Permissions, bool) {
	for p, n := range permNames {
		if n == strings.ToUpper(name) {
			return p, true
		}
	}
	return 0, false
}
