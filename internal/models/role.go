package models

import "gitlab.com/derailed/derailed/internal/snowflake"

// Role is a permission layer inside a guild. Higher positions are
// applied later and win conflicts.
type Role struct {
	ID          snowflake.ID `json:"id"`
	GuildID     snowflake.ID `json:"guild_id"`
	Name        string       `json:"name"`
	Allow       Permissions  `json:"allow"`
	Deny        Permissions  `json:"deny"`
	Position    int          `json:"position"`
	Hoist       bool         `json:"hoist"`
	Mentionable bool         `json:"mentionable"`
}

type RoleReq struct {
	Name        string      `json:"name" validate:"required,min=1,max=32"`
	Allow       Permissions `json:"allow"`
	Deny        Permissions `json:"deny"`
	Position    int         `json:"position" validate:"min=0"`
	Hoist       bool        `json:"hoist"`
	Mentionable bool        `json:"mentionable"`
}

type RoleUpdateReq struct {
	Name        *string      `json:"name" validate:"omitempty,min=1,max=32"`
	Allow       *Permissions `json:"allow"`
	Deny        *Permissions `json:"deny"`
	Position    *int         `json:"position" validate:"omitempty,min=0"`
	Hoist       *bool        `json:"hoist"`
	Mentionable *bool        `json:"mentionable"`
}
