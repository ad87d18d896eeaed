package db

import (
	"context"

	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

// RoleH is a role of the guild the handle was created from.
type RoleH struct {
	guildH *GuildH
	role   models.Role
}

func (h *GuildH) ListRoles(ctx context.Context) ([]models.Role, error) {
	return listRoles(ctx, h.sdb.db, h.guild.ID)
}

func (h *GuildH) GetRoleH(ctx context.Context, roleID snowflake.ID) (*RoleH, error) {
	role, err := readRole(ctx, h.sdb.db, h.guild.ID, roleID)
	if err != nil {
		return nil, err
	}
	return &RoleH{guildH: h, role: *role}, nil
}

func (h *GuildH) CreateRole(ctx context.Context, req models.RoleReq) (*models.Role, error) {
	role := models.Role{
		ID:          h.sdb.ids.Next(),
		GuildID:     h.guild.ID,
		Name:        req.Name,
		Allow:       req.Allow,
		Deny:        req.Deny,
		Position:    req.Position,
		Hoist:       req.Hoist,
		Mentionable: req.Mentionable,
	}
	if !role.Allow.Valid() || !role.Deny.Valid() || role.Position < 0 {
		return nil, models.ErrInvalidFormat
	}
	if err := h.actor.CanManageRole(role); err != nil {
		return nil, err
	}
	if err := insertRole(ctx, h.sdb.db, &role); err != nil {
		return nil, err
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventRoleCreate, role)
	return &role, nil
}

// Assign gives the role to a member of the guild.
func (h *GuildH) Assign(ctx context.Context, userID snowflake.ID, roleH RoleH) error {
	if err := h.actor.CanManageRole(roleH.role); err != nil {
		return err
	}
	isMember, err := memberExists(ctx, h.sdb.db, h.guild.ID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return models.ErrNotFound
	}
	if err := assignRole(ctx, h.sdb.db, h.guild.ID, userID, roleH.role.ID); err != nil {
		return err
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventMemberUpdate, models.RoleAssignment{
		GuildID: h.guild.ID,
		UserID:  userID,
		RoleID:  roleH.role.ID,
	})
	return nil
}

func (h *GuildH) Unassign(ctx context.Context, userID snowflake.ID, roleH RoleH) error {
	if err := h.actor.CanManageRole(roleH.role); err != nil {
		return err
	}
	if err := unassignRole(ctx, h.sdb.db, h.guild.ID, userID, roleH.role.ID); err != nil {
		return err
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventMemberUpdate, models.RoleAssignment{
		GuildID: h.guild.ID,
		UserID:  userID,
		RoleID:  roleH.role.ID,
	})
	return nil
}

func (h *RoleH) Read() models.Role {
	return h.role
}

// Update applies req. Both the role as it is and as it would become must
// be manageable by the caller.
func (h *RoleH) Update(ctx context.Context, req models.RoleUpdateReq) (*models.Role, error) {
	actor := h.guildH.actor
	if err := actor.CanManageRole(h.role); err != nil {
		return nil, err
	}
	role := h.role
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Allow != nil {
		role.Allow = *req.Allow
	}
	if req.Deny != nil {
		role.Deny = *req.Deny
	}
	if req.Position != nil {
		role.Position = *req.Position
	}
	if req.Hoist != nil {
		role.Hoist = *req.Hoist
	}
	if req.Mentionable != nil {
		role.Mentionable = *req.Mentionable
	}
	if !role.Allow.Valid() || !role.Deny.Valid() || role.Position < 0 {
		return nil, models.ErrInvalidFormat
	}
	if err := actor.CanManageRole(role); err != nil {
		return nil, err
	}
	if err := updateRole(ctx, h.guildH.sdb.db, &role); err != nil {
		return nil, err
	}
	h.role = role
	h.guildH.sdb.events.PublishGuild(ctx, role.GuildID, models.EventRoleUpdate, role)
	return &role, nil
}

func (h *RoleH) Delete(ctx context.Context) error {
	if err := h.guildH.actor.CanManageRole(h.role); err != nil {
		return err
	}
	if err := deleteRole(ctx, h.guildH.sdb.db, h.role.GuildID, h.role.ID); err != nil {
		return err
	}
	guildID := h.role.GuildID
	h.guildH.sdb.events.PublishGuild(ctx, guildID, models.EventRoleDelete, models.Deleted{ID: h.role.ID, GuildID: &guildID})
	return nil
}
