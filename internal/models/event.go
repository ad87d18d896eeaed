package models

import (
	"context"

	"gitlab.com/derailed/derailed/internal/snowflake"
)

type EventType string

const (
	EventReady         EventType = "READY"
	EventUserUpdate    EventType = "USER_UPDATE"
	EventUserDelete    EventType = "USER_DELETE"
	EventGuildCreate   EventType = "GUILD_CREATE"
	EventGuildUpdate   EventType = "GUILD_UPDATE"
	EventGuildDelete   EventType = "GUILD_DELETE"
	EventMemberAdd     EventType = "GUILD_MEMBER_ADD"
	EventMemberUpdate  EventType = "GUILD_MEMBER_UPDATE"
	EventMemberRemove  EventType = "GUILD_MEMBER_REMOVE"
	EventBanAdd        EventType = "GUILD_BAN_ADD"
	EventBanRemove     EventType = "GUILD_BAN_REMOVE"
	EventRoleCreate    EventType = "GUILD_ROLE_CREATE"
	EventRoleUpdate    EventType = "GUILD_ROLE_UPDATE"
	EventRoleDelete    EventType = "GUILD_ROLE_DELETE"
	EventChannelCreate EventType = "CHANNEL_CREATE"
	EventChannelUpdate EventType = "CHANNEL_UPDATE"
	EventChannelDelete EventType = "CHANNEL_DELETE"
	EventMessageCreate EventType = "MESSAGE_CREATE"
	EventMessageUpdate EventType = "MESSAGE_UPDATE"
	EventMessageDelete EventType = "MESSAGE_DELETE"
	EventInviteCreate  EventType = "INVITE_CREATE"
	EventInviteDelete  EventType = "INVITE_DELETE"
)

// Deleted is the payload of the *_DELETE events.
type Deleted struct {
	ID        snowflake.ID  `json:"id"`
	GuildID   *snowflake.ID `json:"guild_id,omitempty"`
	ChannelID *snowflake.ID `json:"channel_id,omitempty"`
}

// MemberRemoved is the payload of GUILD_MEMBER_REMOVE and GUILD_BAN_*.
type MemberRemoved struct {
	GuildID snowflake.ID `json:"guild_id"`
	UserID  snowflake.ID `json:"user_id"`
}

// RoleAssignment is sent as GUILD_MEMBER_UPDATE when roles change.
type RoleAssignment struct {
	GuildID snowflake.ID `json:"guild_id"`
	UserID  snowflake.ID `json:"user_id"`
	RoleID  snowflake.ID `json:"role_id"`
}

// NotificationService hands events to whoever fans them out.
// Delivery is best effort: failures are logged, never returned.
type NotificationService interface {
	PublishGuild(ctx context.Context, guildID snowflake.ID, t EventType, data interface{})
	PublishUser(ctx context.Context, userID snowflake.ID, t EventType, data interface{})
	// MultiPublish sends the same event to several guilds.
	MultiPublish(ctx context.Context, guildIDs []snowflake.ID, t EventType, data interface{})
}
