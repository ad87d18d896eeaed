package db

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

var selectMessage = psql.Select(
	"id",
	"channel_id",
	"bucket",
	"author_id",
	"content",
	"timestamp",
	"edited_timestamp",
	"pinned",
	"flags",
	"referenced_message_id",
).From("messages")

type MessageH struct {
	channelH *ChannelH
	message  models.Message
}

// ListMessages pages through the channel and returns messages newest
// first. Without after, buckets are read from the newest one down and
// the page ends at before. With after, buckets are read upwards from the
// cursor so the page holds the messages right after it.
func (h *ChannelH) ListMessages(ctx context.Context, q models.MessageQuery) ([]models.Message, error) {
	gH := h.guildH
	if err := gH.actor.Perms.Require(models.PermViewChannelHistory); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = models.DefaultMessageLimit
	}
	if limit < 1 || limit > models.MaxMessageLimit {
		return nil, models.ErrInvalidFormat
	}

	newest := gH.sdb.ids.CurrentBucket()
	if q.Before != nil && snowflake.Bucket(*q.Before) < newest {
		newest = snowflake.Bucket(*q.Before)
	}
	oldest := snowflake.Bucket(h.channel.ID)
	if q.After != nil && snowflake.Bucket(*q.After) > oldest {
		oldest = snowflake.Bucket(*q.After)
	}
	buckets := snowflake.Buckets(oldest, newest)

	messages := []models.Message{}
	if q.After != nil {
		for i := 0; i < len(buckets) && len(messages) < limit; i++ {
			page, err := h.listBucket(ctx, buckets[i], q, "id ASC", limit-len(messages))
			if err != nil {
				return nil, err
			}
			messages = append(messages, page...)
		}
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
		return messages, nil
	}
	for i := len(buckets) - 1; i >= 0 && len(messages) < limit; i-- {
		page, err := h.listBucket(ctx, buckets[i], q, "id DESC", limit-len(messages))
		if err != nil {
			return nil, err
		}
		messages = append(messages, page...)
	}
	return messages, nil
}

func (h *ChannelH) listBucket(ctx context.Context, bucket int64, q models.MessageQuery, order string, n int) ([]models.Message, error) {
	cond := sq.And{sq.Eq{"channel_id": h.channel.ID, "bucket": bucket}}
	if q.Before != nil {
		cond = append(cond, sq.Lt{"id": *q.Before})
	}
	if q.After != nil {
		cond = append(cond, sq.Gt{"id": *q.After})
	}
	sql, args, _ := selectMessage.
		Where(cond).
		OrderBy(order).
		Limit(uint64(n)).
		ToSql()
	var page []models.Message
	if err := pgxscan.Select(ctx, h.guildH.sdb.db, &page, sql, args...); err != nil {
		return nil, err
	}
	return page, nil
}

func (h *ChannelH) GetMessageH(ctx context.Context, messageID snowflake.ID) (*MessageH, error) {
	if err := h.guildH.actor.Perms.Require(models.PermViewChannelHistory); err != nil {
		return nil, err
	}
	msg, err := readMessage(ctx, h.guildH.sdb.db, h.channel.ID, messageID)
	if err != nil {
		return nil, err
	}
	return &MessageH{channelH: h, message: *msg}, nil
}

func (h *ChannelH) CreateMessage(ctx context.Context, req models.MessageReq) (*models.Message, error) {
	gH := h.guildH
	if err := gH.actor.Perms.Require(models.PermCreateMessages); err != nil {
		return nil, err
	}
	if h.channel.Type != models.ChannelTypeText {
		return nil, models.ErrNotTextChannel
	}
	content, err := gH.sdb.checkContent(req.Content)
	if err != nil {
		return nil, err
	}
	if req.ReferencedMessageID != nil {
		_, err := readMessage(ctx, gH.sdb.db, h.channel.ID, *req.ReferencedMessageID)
		if err == models.ErrNotFound {
			return nil, models.ErrBadReference
		} else if err != nil {
			return nil, err
		}
	}

	id := gH.sdb.ids.Next()
	msg := &models.Message{
		ID:                  id,
		ChannelID:           h.channel.ID,
		Bucket:              snowflake.Bucket(id),
		AuthorID:            gH.uH.id,
		Content:             content,
		Timestamp:           time.Now().UTC(),
		ReferencedMessageID: req.ReferencedMessageID,
	}
	err = execTx(ctx, gH.sdb.db, func(ctx context.Context, tx DBTX) error {
		return insertMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}
	h.channel.LastMessageID = &id
	gH.sdb.events.PublishGuild(ctx, gH.guild.ID, models.EventMessageCreate, msg)
	return msg, nil
}

func (sdb *SharedDB) checkContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n < 1 || n > sdb.config.MaxMessageLen {
		return "", models.ErrBadContentLen
	}
	return content, nil
}

func (h *MessageH) Read() models.Message {
	return h.message
}

// Edit changes the content. Only the author can edit a message.
func (h *MessageH) Edit(ctx context.Context, req models.MessageUpdateReq) (*models.Message, error) {
	gH := h.channelH.guildH
	if h.message.AuthorID != gH.uH.id {
		return nil, models.ErrPermDenied
	}
	content, err := gH.sdb.checkContent(req.Content)
	if err != nil {
		return nil, err
	}
	edited := time.Now().UTC()
	sql, args, _ := psql.
		Update("messages").
		Set("content", content).
		Set("edited_timestamp", edited).
		Where(h.key()).
		ToSql()
	if _, err := gH.sdb.db.Exec(ctx, sql, args...); err != nil {
		return nil, err
	}
	h.message.Content = content
	h.message.EditedTimestamp = &edited
	msg := h.message
	gH.sdb.events.PublishGuild(ctx, gH.guild.ID, models.EventMessageUpdate, msg)
	return &msg, nil
}

func (h *MessageH) Delete(ctx context.Context) error {
	gH := h.channelH.guildH
	if h.message.AuthorID != gH.uH.id {
		if err := gH.actor.Perms.Require(models.PermManageChannelHistory); err != nil {
			return err
		}
	}
	sql, args, _ := psql.Delete("messages").Where(h.key()).ToSql()
	if _, err := gH.sdb.db.Exec(ctx, sql, args...); err != nil {
		return err
	}
	guildID, channelID := gH.guild.ID, h.message.ChannelID
	gH.sdb.events.PublishGuild(ctx, guildID, models.EventMessageDelete, models.Deleted{
		ID:        h.message.ID,
		GuildID:   &guildID,
		ChannelID: &channelID,
	})
	return nil
}

func (h *MessageH) Pin(ctx context.Context) (*models.Message, error) {
	return h.setPinned(ctx, true)
}
func (h *MessageH) Unpin(ctx context.Context) (*models.Message, error) {
	return h.setPinned(ctx, false)
}

func (h *MessageH) setPinned(ctx context.Context, pinned bool) (*models.Message, error) {
	gH := h.channelH.guildH
	if err := gH.actor.Perms.Require(models.PermManageChannelHistory); err != nil {
		return nil, err
	}
	sql, args, _ := psql.Update("messages").Set("pinned", pinned).Where(h.key()).ToSql()
	if _, err := gH.sdb.db.Exec(ctx, sql, args...); err != nil {
		return nil, err
	}
	h.message.Pinned = pinned
	msg := h.message
	gH.sdb.events.PublishGuild(ctx, gH.guild.ID, models.EventMessageUpdate, msg)
	return &msg, nil
}

func (h *MessageH) key() sq.Eq {
	return sq.Eq{
		"channel_id": h.message.ChannelID,
		"bucket":     h.message.Bucket,
		"id":         h.message.ID,
	}
}

// PurgeMessages deletes one bucket of a channel's messages and reports
// how many rows went away.
func (sdb *SharedDB) PurgeMessages(ctx context.Context, channelID snowflake.ID, bucket int64) (int64, error) {
	sql, args, _ := psql.
		Delete("messages").
		Where(sq.Eq{"channel_id": channelID, "bucket": bucket}).
		ToSql()
	tag, err := sdb.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CurrentBucket is the newest message bucket.
func (sdb *SharedDB) CurrentBucket() int64 {
	return sdb.ids.CurrentBucket()
}

func readMessage(ctx context.Context, db DBTX, channelID, messageID snowflake.ID) (*models.Message, error) {
	sql, args, _ := selectMessage.
		Where(sq.Eq{
			"channel_id": channelID,
			"bucket":     snowflake.Bucket(messageID),
			"id":         messageID,
		}).
		ToSql()
	msg := &models.Message{}
	err := pgxscan.Get(ctx, db, msg, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return msg, nil
}

// insertMessage stores msg and moves the channel's last_message_id to it.
func insertMessage(ctx context.Context, db DBTX, msg *models.Message) error {
	sql, args, _ := psql.
		Insert("messages").
		Columns("id", "channel_id", "bucket", "author_id", "content", "timestamp", "flags", "referenced_message_id").
		Values(msg.ID, msg.ChannelID, msg.Bucket, msg.AuthorID, msg.Content, msg.Timestamp, msg.Flags, msg.ReferencedMessageID).
		ToSql()
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return err
	}
	sql, args, _ = psql.
		Update("channels").
		Set("last_message_id", msg.ID).
		Where(sq.Eq{"id": msg.ChannelID}).
		ToSql()
	_, err := db.Exec(ctx, sql, args...)
	return err
}
