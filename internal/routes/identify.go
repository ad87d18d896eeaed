package routes

import (
	"context"

	"gitlab.com/derailed/derailed/internal/gateway"
)

// Identify lets the gateway authenticate sessions with the same tokens
// the HTTP API accepts.
func (routes *Routes) Identify(ctx context.Context, token string) (*gateway.Identity, error) {
	userH, err := routes.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := userH.Read(ctx)
	if err != nil {
		return nil, err
	}
	guildIDs, err := userH.ListMyGuildIDs(ctx)
	if err != nil {
		return nil, err
	}
	return &gateway.Identity{User: *user, GuildIDs: guildIDs}, nil
}
