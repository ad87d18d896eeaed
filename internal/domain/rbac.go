package domain

// Permissions inside a guild are computed by layering roles on top of the
// guild base set. Roles are applied from the lowest position to the highest,
// so a higher role overrides a lower one on every bit both of them touch.
// Inside a single role deny is applied before allow.
//
// Roles sharing a position are applied by ascending id.

import (
	"sort"

	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

// ResolvePermissions returns the effective permissions of userID in guild.
// roles are the roles assigned to the user; the slice is not modified.
func ResolvePermissions(guild models.Guild, userID snowflake.ID, roles []models.Role) models.Permissions {
	if userID == guild.OwnerID {
		return models.AllPermissions
	}
	perms := ApplyRoles(guild.Permissions, SortRoles(roles))
	if perms.Has(models.PermAdministrator) {
		return models.AllPermissions
	}
	return perms
}

// ApplyRoles layers roles over base in the given order.
func ApplyRoles(base models.Permissions, roles []models.Role) models.Permissions {
	for _, role := range roles {
		base = base&^role.Deny | role.Allow
	}
	return base
}

// SortRoles returns a copy of roles ordered by position, then id.
func SortRoles(roles []models.Role) []models.Role {
	sorted := make([]models.Role, len(roles))
	copy(sorted, roles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// TopPosition is the highest position among roles, or -1 without roles.
func TopPosition(roles []models.Role) int {
	top := -1
	for _, r := range roles {
		if r.Position > top {
			top = r.Position
		}
	}
	return top
}

// Actor is a member acting on roles or other members.
type Actor struct {
	UserID      snowflake.ID
	Owner       bool
	Perms       models.Permissions
	TopPosition int
}

func NewActor(guild models.Guild, userID snowflake.ID, roles []models.Role) Actor {
	return Actor{
		UserID:      userID,
		Owner:       userID == guild.OwnerID,
		Perms:       ResolvePermissions(guild, userID, roles),
		TopPosition: TopPosition(roles),
	}
}

// CanManageRole reports whether the actor may edit, assign or remove role.
// The owner can manage anything. Others need MANAGE_ROLES, can only touch
// roles strictly below their own top role, and can't hand out bits they
// don't have themselves.
func (a Actor) CanManageRole(role models.Role) error {
	if a.Owner {
		return nil
	}
	if err := a.Perms.Require(models.PermManageRoles); err != nil {
		return err
	}
	if role.Position >= a.TopPosition {
		return models.ErrPermDenied
	}
	if !role.Allow.SubsetOf(a.Perms) {
		return models.ErrMissingPerms{Perms: role.Allow &^ a.Perms}
	}
	return nil
}

// CanModerate reports whether the actor may kick or ban target with perm.
func (a Actor) CanModerate(perm models.Permissions, target Actor) error {
	if target.Owner || a.UserID == target.UserID {
		return models.ErrPermDenied
	}
	if a.Owner {
		return nil
	}
	if err := a.Perms.Require(perm); err != nil {
		return err
	}
	if target.TopPosition >= a.TopPosition {
		return models.ErrPermDenied
	}
	return nil
}
