package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

var selectRole = psql.Select(
	"roles.id",
	"roles.guild_id",
	"roles.name",
	"roles.allow",
	"roles.deny",
	"roles.position",
	"roles.hoist",
	"roles.mentionable",
).From("roles")

func listRoles(ctx context.Context, db DBTX, guildID snowflake.ID) ([]models.Role, error) {
	sql, args, _ := selectRole.
		Where(sq.Eq{"roles.guild_id": guildID}).
		OrderBy("roles.position", "roles.id").
		ToSql()

	roles := []models.Role{}
	err := pgxscan.Select(ctx, db, &roles, sql, args...)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// listMemberRoles returns the roles assigned to a member, in no particular
// order: the resolver sorts them.
func listMemberRoles(ctx context.Context, db DBTX, guildID, userID snowflake.ID) ([]models.Role, error) {
	sql, args, _ := selectRole.
		Join("member_assigned_roles ON member_assigned_roles.role_id = roles.id").
		Where(sq.Eq{
			"member_assigned_roles.guild_id": guildID,
			"member_assigned_roles.user_id":  userID,
		}).
		ToSql()

	roles := []models.Role{}
	err := pgxscan.Select(ctx, db, &roles, sql, args...)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func listAssignedRoleIDs(ctx context.Context, db DBTX, guildID snowflake.ID) (map[snowflake.ID][]snowflake.ID, error) {
	sql, args, _ := psql.
		Select("user_id", "role_id").
		From("member_assigned_roles").
		Where(sq.Eq{"guild_id": guildID}).
		ToSql()

	var rows []struct {
		UserID snowflake.ID
		RoleID snowflake.ID
	}
	err := pgxscan.Select(ctx, db, &rows, sql, args...)
	if err != nil {
		return nil, err
	}
	assigned := make(map[snowflake.ID][]snowflake.ID)
	for _, r := range rows {
		assigned[r.UserID] = append(assigned[r.UserID], r.RoleID)
	}
	return assigned, nil
}

func readRole(ctx context.Context, db DBTX, guildID, roleID snowflake.ID) (*models.Role, error) {
	sql, args, _ := selectRole.
		Where(sq.Eq{"roles.guild_id": guildID, "roles.id": roleID}).
		ToSql()
	role := &models.Role{}
	err := pgxscan.Get(ctx, db, role, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return role, nil
}

func insertRole(ctx context.Context, db DBTX, role *models.Role) error {
	sql, args, _ := psql.
		Insert("roles").
		Columns("id", "guild_id", "name", "allow", "deny", "position", "hoist", "mentionable").
		Values(role.ID, role.GuildID, role.Name, role.Allow, role.Deny, role.Position, role.Hoist, role.Mentionable).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	return err
}

func updateRole(ctx context.Context, db DBTX, role *models.Role) error {
	sql, args, _ := psql.
		Update("roles").
		Set("name", role.Name).
		Set("allow", role.Allow).
		Set("deny", role.Deny).
		Set("position", role.Position).
		Set("hoist", role.Hoist).
		Set("mentionable", role.Mentionable).
		Where(sq.Eq{"id": role.ID, "guild_id": role.GuildID}).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	return err
}

func deleteRole(ctx context.Context, db DBTX, guildID, roleID snowflake.ID) error {
	sql, args, _ := psql.
		Delete("roles").
		Where(sq.Eq{"id": roleID, "guild_id": guildID}).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	return err
}

func assignRole(ctx context.Context, db DBTX, guildID, userID, roleID snowflake.ID) error {
	sql, args, _ := psql.
		Insert("member_assigned_roles").
		Columns("user_id", "guild_id", "role_id").
		Values(userID, guildID, roleID).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	if _, ok := uniqueViolation(err); ok {
		// Already assigned
		return nil
	}
	return err
}

func unassignRole(ctx context.Context, db DBTX, guildID, userID, roleID snowflake.ID) error {
	sql, args, _ := psql.
		Delete("member_assigned_roles").
		Where(sq.Eq{"user_id": userID, "guild_id": guildID, "role_id": roleID}).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	return err
}
