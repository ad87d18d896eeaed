package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/domain"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

var selectMember = psql.Select(
	"user_id",
	"guild_id",
	"nick",
	"joined_at",
	"deaf",
	"mute",
).From("guild_members")

func (h *GuildH) ListMembers(ctx context.Context) ([]models.Member, error) {
	sql, args, _ := selectMember.
		Where(sq.Eq{"guild_id": h.guild.ID}).
		OrderBy("user_id").
		ToSql()

	members := []models.Member{}
	err := pgxscan.Select(ctx, h.sdb.db, &members, sql, args...)
	if err != nil {
		return nil, err
	}

	assigned, err := listAssignedRoleIDs(ctx, h.sdb.db, h.guild.ID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].Roles = assigned[members[i].UserID]
		if members[i].Roles == nil {
			members[i].Roles = []snowflake.ID{}
		}
	}
	return members, nil
}

func (h *GuildH) GetMember(ctx context.Context, userID snowflake.ID) (*models.Member, error) {
	member, err := readMember(ctx, h.sdb.db, h.guild.ID, userID)
	if err != nil {
		return nil, err
	}
	roles, err := listMemberRoles(ctx, h.sdb.db, h.guild.ID, userID)
	if err != nil {
		return nil, err
	}
	member.Roles = make([]snowflake.ID, 0, len(roles))
	for _, r := range roles {
		member.Roles = append(member.Roles, r.ID)
	}
	return member, nil
}

// UpdateMember changes a nickname. Members can rename themselves,
// renaming others needs MANAGE_GUILD.
func (h *GuildH) UpdateMember(ctx context.Context, userID snowflake.ID, req models.MemberUpdateReq) (*models.Member, error) {
	if userID != h.uH.id {
		if err := h.actor.Perms.Require(models.PermManageGuild); err != nil {
			return nil, err
		}
	}
	if req.Nick != nil {
		var nick interface{} = *req.Nick
		if *req.Nick == "" {
			nick = nil
		}
		sql, args, _ := psql.
			Update("guild_members").
			Set("nick", nick).
			Where(sq.Eq{"guild_id": h.guild.ID, "user_id": userID}).
			ToSql()
		tag, err := h.sdb.db.Exec(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, models.ErrNotFound
		}
	}
	member, err := h.GetMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventMemberUpdate, member)
	return member, nil
}

// Leave removes the user from the guild. The owner can't leave.
func (h *GuildH) Leave(ctx context.Context) error {
	if h.actor.Owner {
		return models.ErrOwnerCannotLeave
	}
	if err := deleteMember(ctx, h.sdb.db, h.guild.ID, h.uH.id); err != nil {
		return err
	}
	h.publishMemberRemove(ctx, h.uH.id)
	return nil
}

func (h *GuildH) Kick(ctx context.Context, userID snowflake.ID) error {
	if err := h.canModerate(ctx, models.PermHandleKicks, userID); err != nil {
		return err
	}
	if err := deleteMember(ctx, h.sdb.db, h.guild.ID, userID); err != nil {
		return err
	}
	h.publishMemberRemove(ctx, userID)
	return nil
}

// Ban removes the member, if present, and keeps them from joining again.
func (h *GuildH) Ban(ctx context.Context, userID snowflake.ID, req models.BanReq) (*models.Ban, error) {
	isMember, err := memberExists(ctx, h.sdb.db, h.guild.ID, userID)
	if err != nil {
		return nil, err
	}
	if isMember {
		if err := h.canModerate(ctx, models.PermHandleBans, userID); err != nil {
			return nil, err
		}
	} else if err := h.actor.Perms.Require(models.PermHandleBans); err != nil {
		return nil, err
	}

	ban := &models.Ban{}
	err = execTx(ctx, h.sdb.db, func(ctx context.Context, tx DBTX) error {
		if isMember {
			if err := deleteMember(ctx, tx, h.guild.ID, userID); err != nil {
				return err
			}
		}
		sql, args, _ := psql.
			Insert("guild_bans").
			Columns("guild_id", "user_id", "reason").
			Values(h.guild.ID, userID, req.Reason).
			Suffix("ON CONFLICT (guild_id, user_id) DO UPDATE SET reason = EXCLUDED.reason").
			Suffix("RETURNING guild_id, user_id, reason, created_at").
			ToSql()
		err := pgxscan.Get(ctx, tx, ban, sql, args...)
		if foreignKeyViolation(err) {
			// No such user
			return models.ErrNotFound
		}
		return notFound(err)
	})
	if err != nil {
		return nil, err
	}
	if isMember {
		h.publishMemberRemove(ctx, userID)
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventBanAdd, models.MemberRemoved{GuildID: h.guild.ID, UserID: userID})
	return ban, nil
}

func (h *GuildH) Unban(ctx context.Context, userID snowflake.ID) error {
	if err := h.actor.Perms.Require(models.PermHandleBans); err != nil {
		return err
	}
	sql, args, _ := psql.
		Delete("guild_bans").
		Where(sq.Eq{"guild_id": h.guild.ID, "user_id": userID}).
		ToSql()
	tag, err := h.sdb.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventBanRemove, models.MemberRemoved{GuildID: h.guild.ID, UserID: userID})
	return nil
}

func (h *GuildH) ListBans(ctx context.Context) ([]models.Ban, error) {
	if err := h.actor.Perms.Require(models.PermHandleBans); err != nil {
		return nil, err
	}
	sql, args, _ := psql.
		Select("guild_id", "user_id", "reason", "created_at").
		From("guild_bans").
		Where(sq.Eq{"guild_id": h.guild.ID}).
		OrderBy("created_at").
		ToSql()
	bans := []models.Ban{}
	err := pgxscan.Select(ctx, h.sdb.db, &bans, sql, args...)
	if err != nil {
		return nil, err
	}
	return bans, nil
}

func (h *GuildH) canModerate(ctx context.Context, perm models.Permissions, userID snowflake.ID) error {
	target, err := h.actorFor(ctx, userID)
	if err != nil {
		return err
	}
	return h.actor.CanModerate(perm, target)
}

func (h *GuildH) actorFor(ctx context.Context, userID snowflake.ID) (domain.Actor, error) {
	isMember, err := memberExists(ctx, h.sdb.db, h.guild.ID, userID)
	if err != nil {
		return domain.Actor{}, err
	}
	if !isMember {
		return domain.Actor{}, models.ErrNotFound
	}
	roles, err := listMemberRoles(ctx, h.sdb.db, h.guild.ID, userID)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.NewActor(h.guild, userID, roles), nil
}

func (h *GuildH) publishMemberRemove(ctx context.Context, userID snowflake.ID) {
	removed := models.MemberRemoved{GuildID: h.guild.ID, UserID: userID}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventMemberRemove, removed)
	h.sdb.events.PublishUser(ctx, userID, models.EventGuildDelete, models.Deleted{ID: h.guild.ID})
}

func memberExists(ctx context.Context, db DBTX, guildID, userID snowflake.ID) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx,
		"SELECT exists(SELECT 1 FROM guild_members WHERE guild_id = $1 AND user_id = $2)",
		guildID, userID).Scan(&exists)
	return exists, err
}

func insertMember(ctx context.Context, db DBTX, guildID, userID snowflake.ID) error {
	sql, args, _ := psql.
		Insert("guild_members").
		Columns("user_id", "guild_id").
		Values(userID, guildID).
		ToSql()

	_, err := db.Exec(ctx, sql, args...)
	return err
}

func deleteMember(ctx context.Context, db DBTX, guildID, userID snowflake.ID) error {
	sql, args, _ := psql.
		Delete("guild_members").
		Where(sq.Eq{"guild_id": guildID, "user_id": userID}).
		ToSql()
	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func readMember(ctx context.Context, db DBTX, guildID, userID snowflake.ID) (*models.Member, error) {
	sql, args, _ := selectMember.
		Where(sq.Eq{"guild_id": guildID, "user_id": userID}).
		ToSql()
	member := &models.Member{}
	err := pgxscan.Get(ctx, db, member, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return member, nil
}

func countMembers(ctx context.Context, db DBTX, guildID snowflake.ID) (int, error) {
	var count int
	sql, args, _ := psql.
		Select("COUNT(*)").
		From("guild_members").
		Where(sq.Eq{"guild_id": guildID}).
		ToSql()
	err := db.QueryRow(ctx, sql, args...).Scan(&count)
	return count, err
}
