package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"gitlab.com/derailed/derailed/internal/utils"
)

var selectInvite = psql.Select("id", "guild_id", "author_id", "created_at").From("invites")

func (h *GuildH) CreateInvite(ctx context.Context) (*models.Invite, error) {
	if err := h.actor.Perms.Require(models.PermCreateInvites); err != nil {
		return nil, err
	}
	invite := &models.Invite{}
	// Codes are random: retry on the rare collision.
	for attempt := 0; attempt < 3; attempt++ {
		code, err := utils.GenInviteCode()
		if err != nil {
			return nil, err
		}
		sql, args, _ := psql.
			Insert("invites").
			Columns("id", "guild_id", "author_id").
			Values(code, h.guild.ID, h.uH.id).
			Suffix("RETURNING id, guild_id, author_id, created_at").
			ToSql()
		err = pgxscan.Get(ctx, h.sdb.db, invite, sql, args...)
		if _, ok := uniqueViolation(err); ok {
			continue
		} else if err != nil {
			return nil, err
		}
		h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventInviteCreate, invite)
		return invite, nil
	}
	return nil, models.ErrInviteCollision
}

func (h *GuildH) ListInvites(ctx context.Context) ([]models.Invite, error) {
	if err := h.actor.Perms.Require(models.PermManageInvites); err != nil {
		return nil, err
	}
	sql, args, _ := selectInvite.
		Where(sq.Eq{"guild_id": h.guild.ID}).
		OrderBy("created_at").
		ToSql()
	invites := []models.Invite{}
	err := pgxscan.Select(ctx, h.sdb.db, &invites, sql, args...)
	if err != nil {
		return nil, err
	}
	return invites, nil
}

// DeleteInvite is allowed to the invite's author and to MANAGE_INVITES.
func (h *GuildH) DeleteInvite(ctx context.Context, code string) error {
	invite, err := readInvite(ctx, h.sdb.db, code)
	if err != nil {
		return err
	}
	if invite.GuildID != h.guild.ID {
		return models.ErrNotFound
	}
	if invite.AuthorID != h.uH.id {
		if err := h.actor.Perms.Require(models.PermManageInvites); err != nil {
			return err
		}
	}
	sql, args, _ := psql.Delete("invites").Where(sq.Eq{"id": code}).ToSql()
	if _, err := h.sdb.db.Exec(ctx, sql, args...); err != nil {
		return err
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventInviteDelete, invite)
	return nil
}

// PreviewInvite needs no authentication.
func (sdb *SharedDB) PreviewInvite(ctx context.Context, code string) (*models.InvitePreview, error) {
	if !utils.ValidInviteCode(code) {
		return nil, models.ErrNotFound
	}
	invite, err := readInvite(ctx, sdb.db, code)
	if err != nil {
		return nil, err
	}
	guild, err := readGuild(ctx, sdb.db, invite.GuildID)
	if err != nil {
		return nil, err
	}
	count, err := countMembers(ctx, sdb.db, guild.ID)
	if err != nil {
		return nil, err
	}
	return &models.InvitePreview{
		ID:           invite.ID,
		GuildID:      guild.ID,
		GuildName:    guild.Name,
		MembersCount: count,
	}, nil
}

// JoinByInvite adds the user to the invite's guild. Joining a guild the
// user is already in just returns it.
func (uH *UserH) JoinByInvite(ctx context.Context, code string) (*models.Guild, error) {
	sdb := uH.sdb
	if !utils.ValidInviteCode(code) {
		return nil, models.ErrNotFound
	}
	invite, err := readInvite(ctx, sdb.db, code)
	if err != nil {
		return nil, err
	}
	guild, err := readGuild(ctx, sdb.db, invite.GuildID)
	if err != nil {
		return nil, err
	}

	joined := false
	err = execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		// Joins to the same guild queue up here, so the member count below
		// can't go stale before the insert.
		var maxMembers int
		err := tx.QueryRow(ctx,
			"SELECT max_members FROM guilds WHERE id = $1 FOR UPDATE",
			guild.ID).Scan(&maxMembers)
		if err != nil {
			return notFound(err)
		}
		isMember, err := memberExists(ctx, tx, guild.ID, uH.id)
		if err != nil || isMember {
			return err
		}
		banned, err := isBanned(ctx, tx, guild.ID, uH.id)
		if err != nil {
			return err
		}
		if banned {
			return models.ErrBanned
		}
		count, err := countMembers(ctx, tx, guild.ID)
		if err != nil {
			return err
		}
		if count >= maxMembers {
			return models.ErrGuildFull
		}
		if err := sdb.checkGuildLimit(ctx, tx, uH.id); err != nil {
			return err
		}
		if err := insertMember(ctx, tx, guild.ID, uH.id); err != nil {
			return err
		}
		joined = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if joined {
		member, err := readMember(ctx, sdb.db, guild.ID, uH.id)
		if err == nil {
			member.Roles = []snowflake.ID{}
			sdb.events.PublishGuild(ctx, guild.ID, models.EventMemberAdd, member)
		}
		sdb.events.PublishUser(ctx, uH.id, models.EventGuildCreate, guild)
	}
	return guild, nil
}

func isBanned(ctx context.Context, db DBTX, guildID, userID snowflake.ID) (bool, error) {
	var banned bool
	err := db.QueryRow(ctx,
		"SELECT exists(SELECT 1 FROM guild_bans WHERE guild_id = $1 AND user_id = $2)",
		guildID, userID).Scan(&banned)
	return banned, err
}

func readInvite(ctx context.Context, db DBTX, code string) (*models.Invite, error) {
	sql, args, _ := selectInvite.Where(sq.Eq{"id": code}).ToSql()
	invite := &models.Invite{}
	err := pgxscan.Get(ctx, db, invite, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return invite, nil
}
