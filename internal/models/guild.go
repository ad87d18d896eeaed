package models

import (
	"errors"
	"time"

	"gitlab.com/derailed/derailed/internal/snowflake"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrTooManyGuilds    = errors.New("maximum number of guilds reached")
	ErrGuildFull        = errors.New("guild is full")
	ErrOwnerCannotLeave = errors.New("the owner cannot leave the guild")
	ErrBanned           = errors.New("banned from this guild")
	ErrBadSystemChannel = errors.New("system channel must be a text channel of this guild")
	ErrInviteCollision  = errors.New("could not generate a unique invite code")
)

const DefaultMaxMembers = 1000

type Guild struct {
	ID              snowflake.ID  `json:"id"`
	Name            string        `json:"name"`
	Icon            *string       `json:"icon"`
	OwnerID         snowflake.ID  `json:"owner_id"`
	SystemChannelID *snowflake.ID `json:"system_channel_id"`
	Type            string        `json:"type"`
	MaxMembers      int           `json:"max_members"`
	Permissions     Permissions   `json:"permissions"`
}

type GuildReq struct {
	Name string `json:"name" validate:"required,min=1,max=32"`
}

type GuildUpdateReq struct {
	Name            *string       `json:"name" validate:"omitempty,min=1,max=32"`
	Permissions     *Permissions  `json:"permissions"`
	SystemChannelID *snowflake.ID `json:"system_channel_id"`
}

type GuildDeleteReq struct {
	Password string `json:"password" validate:"required,max=100"`
}

type Member struct {
	UserID   snowflake.ID   `json:"user_id"`
	GuildID  snowflake.ID   `json:"guild_id"`
	Nick     *string        `json:"nick"`
	JoinedAt time.Time      `json:"joined_at"`
	Deaf     bool           `json:"deaf"`
	Mute     bool           `json:"mute"`
	Roles    []snowflake.ID `json:"roles" db:"-"`
}

type MemberUpdateReq struct {
	Nick *string `json:"nick" validate:"omitempty,max=32"`
}

type Ban struct {
	GuildID   snowflake.ID `json:"guild_id"`
	UserID    snowflake.ID `json:"user_id"`
	Reason    *string      `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}

type BanReq struct {
	Reason *string `json:"reason" validate:"omitempty,max=512"`
}

type Invite struct {
	ID        string       `json:"id"`
	GuildID   snowflake.ID `json:"guild_id"`
	AuthorID  snowflake.ID `json:"author_id"`
	CreatedAt time.Time    `json:"created_at"`
}

type InvitePreview struct {
	ID           string       `json:"id"`
	GuildID      snowflake.ID `json:"guild_id"`
	GuildName    string       `json:"guild_name"`
	MembersCount int          `json:"members_count"`
}
