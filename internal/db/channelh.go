package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

var selectChannel = psql.Select(
	"id",
	"type",
	"guild_id",
	"name",
	"position",
	"topic",
	"last_message_id",
	"parent_id",
).From("channels")

type ChannelH struct {
	guildH  *GuildH
	channel models.Channel
}

func (h *GuildH) ListChannels(ctx context.Context) ([]models.Channel, error) {
	if err := h.actor.Perms.Require(models.PermViewChannels); err != nil {
		return nil, err
	}
	sql, args, _ := selectChannel.
		Where(sq.Eq{"guild_id": h.guild.ID}).
		OrderBy("position", "id").
		ToSql()
	channels := []models.Channel{}
	err := pgxscan.Select(ctx, h.sdb.db, &channels, sql, args...)
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (h *GuildH) GetChannelH(ctx context.Context, channelID snowflake.ID) (*ChannelH, error) {
	if err := h.actor.Perms.Require(models.PermViewChannels); err != nil {
		return nil, err
	}
	channel, err := readChannel(ctx, h.sdb.db, h.guild.ID, channelID)
	if err != nil {
		return nil, err
	}
	return &ChannelH{guildH: h, channel: *channel}, nil
}

func (h *GuildH) CreateChannel(ctx context.Context, req models.ChannelReq) (*models.Channel, error) {
	if err := h.actor.Perms.Require(models.PermManageChannels); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, models.ErrInvalidFormat
	}
	if err := h.checkParent(ctx, req.Type, req.ParentID); err != nil {
		return nil, err
	}
	channel := &models.Channel{
		ID:       h.sdb.ids.Next(),
		Type:     req.Type,
		GuildID:  h.guild.ID,
		Name:     req.Name,
		Position: req.Position,
		Topic:    req.Topic,
		ParentID: req.ParentID,
	}
	if err := insertChannel(ctx, h.sdb.db, channel); err != nil {
		return nil, err
	}
	h.sdb.events.PublishGuild(ctx, h.guild.ID, models.EventChannelCreate, channel)
	return channel, nil
}

// checkParent allows only text channels to have a parent, which must be
// a category of the same guild.
func (h *GuildH) checkParent(ctx context.Context, t models.ChannelType, parentID *snowflake.ID) error {
	if parentID == nil {
		return nil
	}
	if t == models.ChannelTypeCategory {
		return models.ErrBadParent
	}
	parent, err := readChannel(ctx, h.sdb.db, h.guild.ID, *parentID)
	if err == models.ErrNotFound {
		return models.ErrBadParent
	} else if err != nil {
		return err
	}
	if parent.Type != models.ChannelTypeCategory {
		return models.ErrBadParent
	}
	return nil
}

func (h *ChannelH) ID() snowflake.ID {
	return h.channel.ID
}
func (h *ChannelH) Read() models.Channel {
	return h.channel
}

func (h *ChannelH) Update(ctx context.Context, req models.ChannelUpdateReq) (*models.Channel, error) {
	gH := h.guildH
	if err := gH.actor.Perms.Require(models.PermManageChannels); err != nil {
		return nil, err
	}
	q := psql.Update("channels").Where(sq.Eq{"id": h.channel.ID})
	changed := false
	if req.Name != nil {
		q = q.Set("name", *req.Name)
		changed = true
	}
	if req.Position != nil {
		q = q.Set("position", *req.Position)
		changed = true
	}
	if req.Topic != nil {
		q = q.Set("topic", *req.Topic)
		changed = true
	}
	if req.ParentID != nil {
		if *req.ParentID == h.channel.ID {
			return nil, models.ErrBadParent
		}
		if err := gH.checkParent(ctx, h.channel.Type, req.ParentID); err != nil {
			return nil, err
		}
		q = q.Set("parent_id", *req.ParentID)
		changed = true
	}
	if changed {
		sql, args, _ := q.ToSql()
		if _, err := gH.sdb.db.Exec(ctx, sql, args...); err != nil {
			return nil, err
		}
	}
	channel, err := readChannel(ctx, gH.sdb.db, gH.guild.ID, h.channel.ID)
	if err != nil {
		return nil, err
	}
	h.channel = *channel
	gH.sdb.events.PublishGuild(ctx, gH.guild.ID, models.EventChannelUpdate, channel)
	return channel, nil
}

// Delete removes the channel. Its messages are purged in the background.
func (h *ChannelH) Delete(ctx context.Context) error {
	gH := h.guildH
	if err := gH.actor.Perms.Require(models.PermManageChannels); err != nil {
		return err
	}
	err := execTx(ctx, gH.sdb.db, func(ctx context.Context, tx DBTX) error {
		sql, args, _ := psql.
			Update("guilds").
			Set("system_channel_id", nil).
			Where(sq.Eq{"id": gH.guild.ID, "system_channel_id": h.channel.ID}).
			ToSql()
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
		sql, args, _ = psql.Delete("channels").Where(sq.Eq{"id": h.channel.ID}).ToSql()
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return err
	}
	if err := gH.sdb.purger.PurgeChannel(ctx, h.channel.ID); err != nil {
		return err
	}
	guildID := gH.guild.ID
	gH.sdb.events.PublishGuild(ctx, guildID, models.EventChannelDelete, models.Deleted{ID: h.channel.ID, GuildID: &guildID})
	return nil
}

func readChannel(ctx context.Context, db DBTX, guildID, channelID snowflake.ID) (*models.Channel, error) {
	sql, args, _ := selectChannel.
		Where(sq.Eq{"guild_id": guildID, "id": channelID}).
		ToSql()
	channel := &models.Channel{}
	err := pgxscan.Get(ctx, db, channel, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return channel, nil
}

func insertChannel(ctx context.Context, db DBTX, c *models.Channel) error {
	sql, args, _ := psql.
		Insert("channels").
		Columns("id", "type", "guild_id", "name", "position", "topic", "parent_id").
		Values(c.ID, c.Type, c.GuildID, c.Name, c.Position, c.Topic, c.ParentID).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	return err
}
