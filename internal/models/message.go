package models

import (
	"errors"
	"time"

	"gitlab.com/derailed/derailed/internal/snowflake"
)

var (
	ErrBadContentLen  = errors.New("You have to respect the imposed content length limits")
	ErrNotTextChannel = errors.New("messages can only be sent in text channels")
	ErrBadParent      = errors.New("parent must be a category of this guild")
	ErrBadReference   = errors.New("referenced message is not in this channel")
)

type Channel struct {
	ID            snowflake.ID  `json:"id"`
	Type          ChannelType   `json:"type"`
	GuildID       snowflake.ID  `json:"guild_id"`
	Name          string        `json:"name"`
	Position      int           `json:"position"`
	Topic         *string       `json:"topic"`
	LastMessageID *snowflake.ID `json:"last_message_id"`
	ParentID      *snowflake.ID `json:"parent_id"`
}

type ChannelReq struct {
	Type     ChannelType   `json:"type" validate:"oneof=0 1"`
	Name     string        `json:"name" validate:"required,min=1,max=32"`
	Position int           `json:"position" validate:"min=0"`
	Topic    *string       `json:"topic" validate:"omitempty,max=1024"`
	ParentID *snowflake.ID `json:"parent_id"`
}

type ChannelUpdateReq struct {
	Name     *string       `json:"name" validate:"omitempty,min=1,max=32"`
	Position *int          `json:"position" validate:"omitempty,min=0"`
	Topic    *string       `json:"topic" validate:"omitempty,max=1024"`
	ParentID *snowflake.ID `json:"parent_id"`
}

type Message struct {
	ID                  snowflake.ID  `json:"id"`
	ChannelID           snowflake.ID  `json:"channel_id"`
	Bucket              int64         `json:"-"`
	AuthorID            snowflake.ID  `json:"author_id"`
	Content             string        `json:"content"`
	Timestamp           time.Time     `json:"timestamp"`
	EditedTimestamp     *time.Time    `json:"edited_timestamp"`
	Pinned              bool          `json:"pinned"`
	Flags               MessageFlags  `json:"flags"`
	ReferencedMessageID *snowflake.ID `json:"referenced_message_id"`
}

type MessageReq struct {
	Content             string        `json:"content" validate:"required"`
	ReferencedMessageID *snowflake.ID `json:"referenced_message_id"`
}

type MessageUpdateReq struct {
	Content string `json:"content" validate:"required"`
}

// MessageQuery pages through a channel, newest first.
type MessageQuery struct {
	Before *snowflake.ID
	After  *snowflake.ID
	Limit  int
}

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)
