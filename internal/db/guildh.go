package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/domain"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

const welcomeMessage = "Welcome to your new guild! Invite some friends to get started."

var selectGuild = psql.Select(
	"guilds.id",
	"guilds.name",
	"guilds.icon",
	"guilds.owner_id",
	"guilds.system_channel_id",
	"guilds.type",
	"guilds.max_members",
	"guilds.permissions",
).From("guilds")

// GuildH is a member's view of a guild. Every operation is checked against
// the permissions resolved when the handle was created.
type GuildH struct {
	sdb   *SharedDB
	uH    UserH
	guild models.Guild
	roles []models.Role
	actor domain.Actor
}

// GetGuildH resolves the user's permissions in the guild.
// Non members get models.ErrNotFound.
func (uH *UserH) GetGuildH(ctx context.Context, guildID snowflake.ID) (*GuildH, error) {
	guild, err := readGuild(ctx, uH.sdb.db, guildID)
	if err != nil {
		return nil, err
	}
	isMember, err := memberExists(ctx, uH.sdb.db, guildID, uH.id)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, models.ErrNotFound
	}
	roles, err := listMemberRoles(ctx, uH.sdb.db, guildID, uH.id)
	if err != nil {
		return nil, err
	}
	return &GuildH{
		sdb:   uH.sdb,
		uH:    *uH,
		guild: *guild,
		roles: roles,
		actor: domain.NewActor(*guild, uH.id, roles),
	}, nil
}

func (h *GuildH) ID() snowflake.ID {
	return h.guild.ID
}
func (h *GuildH) Perms() models.Permissions {
	return h.actor.Perms
}
func (h *GuildH) IsOwner() bool {
	return h.actor.Owner
}
func (h *GuildH) Read() models.Guild {
	return h.guild
}

// CreateGuild creates a guild with a category, a text channel and a
// welcome message, all owned by the user.
func (uH *UserH) CreateGuild(ctx context.Context, req models.GuildReq) (*models.Guild, error) {
	sdb := uH.sdb
	categoryID := sdb.ids.Next()
	channelID := sdb.ids.Next()
	guild := &models.Guild{
		ID:              sdb.ids.Next(),
		Name:            req.Name,
		OwnerID:         uH.id,
		SystemChannelID: &channelID,
		Type:            "community",
		MaxMembers:      models.DefaultMaxMembers,
		Permissions:     models.DefaultPermissions,
	}
	msgID := sdb.ids.Next()
	msg := &models.Message{
		ID:        msgID,
		ChannelID: channelID,
		Bucket:    snowflake.Bucket(msgID),
		AuthorID:  uH.id,
		Content:   welcomeMessage,
		Timestamp: time.Now().UTC(),
		Flags:     models.MessageFlagWelcome,
	}

	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		if err := sdb.checkGuildLimit(ctx, tx, uH.id); err != nil {
			return err
		}

		sql, args, _ := psql.
			Insert("guilds").
			Columns("id", "name", "owner_id", "system_channel_id", "type", "max_members", "permissions").
			Values(guild.ID, guild.Name, guild.OwnerID, guild.SystemChannelID, guild.Type, guild.MaxMembers, guild.Permissions).
			ToSql()
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
		if err := insertMember(ctx, tx, guild.ID, uH.id); err != nil {
			return err
		}
		category := models.Channel{ID: categoryID, Type: models.ChannelTypeCategory, GuildID: guild.ID, Name: "General"}
		if err := insertChannel(ctx, tx, &category); err != nil {
			return err
		}
		text := models.Channel{ID: channelID, Type: models.ChannelTypeText, GuildID: guild.ID, Name: "general", ParentID: &categoryID}
		if err := insertChannel(ctx, tx, &text); err != nil {
			return err
		}
		return insertMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	sdb.events.PublishUser(ctx, uH.id, models.EventGuildCreate, guild)
	sdb.events.PublishGuild(ctx, guild.ID, models.EventMessageCreate, msg)
	return guild, nil
}

func (h *GuildH) Update(ctx context.Context, req models.GuildUpdateReq) (*models.Guild, error) {
	if err := h.actor.Perms.Require(models.PermManageGuild); err != nil {
		return nil, err
	}
	q := psql.Update("guilds").Where(sq.Eq{"id": h.guild.ID})
	changed := false
	if req.Name != nil {
		q = q.Set("name", *req.Name)
		changed = true
	}
	if req.Permissions != nil {
		if !req.Permissions.Valid() {
			return nil, models.ErrInvalidFormat
		}
		// Every member starts from these, so only the owner can grant
		// bits they don't hold.
		if !h.actor.Owner && !req.Permissions.SubsetOf(h.actor.Perms) {
			return nil, models.ErrMissingPerms{Perms: *req.Permissions &^ h.actor.Perms}
		}
		q = q.Set("permissions", *req.Permissions)
		changed = true
	}
	if req.SystemChannelID != nil {
		ch, err := readChannel(ctx, h.sdb.db, h.guild.ID, *req.SystemChannelID)
		if err == models.ErrNotFound || (err == nil && ch.Type != models.ChannelTypeText) {
			return nil, models.ErrBadSystemChannel
		} else if err != nil {
			return nil, err
		}
		q = q.Set("system_channel_id", *req.SystemChannelID)
		changed = true
	}
	if changed {
		sql, args, _ := q.ToSql()
		if _, err := h.sdb.db.Exec(ctx, sql, args...); err != nil {
			return nil, err
		}
	}
	guild, err := readGuild(ctx, h.sdb.db, h.guild.ID)
	if err != nil {
		return nil, err
	}
	h.guild = *guild
	h.sdb.events.PublishGuild(ctx, guild.ID, models.EventGuildUpdate, guild)
	return guild, nil
}

// Delete is reserved to the owner, who must confirm with the password.
func (h *GuildH) Delete(ctx context.Context, passwd string) error {
	if !h.actor.Owner {
		return models.ErrPermDenied
	}
	if err := checkPasswd(ctx, h.sdb.db, h.uH.id, passwd); err != nil {
		return err
	}
	var channelIDs []snowflake.ID
	err := execTx(ctx, h.sdb.db, func(ctx context.Context, tx DBTX) error {
		sql, args, _ := psql.
			Select("id").
			From("channels").
			Where(sq.Eq{"guild_id": h.guild.ID}).
			ToSql()
		if err := pgxscan.Select(ctx, tx, &channelIDs, sql, args...); err != nil {
			return err
		}
		sql, args, _ = psql.Delete("guilds").Where(sq.Eq{"id": h.guild.ID}).ToSql()
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return err
	}
	for _, id := range channelIDs {
		if err := h.sdb.purger.PurgeChannel(ctx, id); err != nil {
			return err
		}
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventGuildDelete, models.Deleted{ID: h.guild.ID})
	return nil
}

// checkGuildLimit caps the guilds a user is in, whether created or joined.
func (sdb *SharedDB) checkGuildLimit(ctx context.Context, db DBTX, userID snowflake.ID) error {
	var memberships int
	sql, args, _ := psql.Select("COUNT(*)").
		From("guild_members").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err := db.QueryRow(ctx, sql, args...).Scan(&memberships); err != nil {
		return err
	}
	if memberships >= sdb.config.MaxGuildsPerUser {
		return models.ErrTooManyGuilds
	}
	return nil
}

func readGuild(ctx context.Context, db DBTX, guildID snowflake.ID) (*models.Guild, error) {
	sql, args, _ := selectGuild.Where(sq.Eq{"guilds.id": guildID}).ToSql()
	guild := &models.Guild{}
	err := pgxscan.Get(ctx, db, guild, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return guild, nil
}
