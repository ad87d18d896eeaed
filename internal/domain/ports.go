package domain

import (
	"context"

	"gitlab.com/derailed/derailed/internal/snowflake"
)

// IDGenerator hands out snowflakes. *snowflake.Generator implements it.
type IDGenerator interface {
	Next() snowflake.ID
	CurrentBucket() int64
}

// MessagePurger removes the messages of a deleted channel in the background.
type MessagePurger interface {
	PurgeChannel(ctx context.Context, channelID snowflake.ID) error
}
