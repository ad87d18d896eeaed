package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

// Envelope is what travels on the bus. D is the JSON encoded payload, so
// the gateway can forward it without decoding.
type Envelope struct {
	T       models.EventType `msgpack:"t"`
	GuildID *snowflake.ID    `msgpack:"guild_id"`
	UserID  *snowflake.ID    `msgpack:"user_id"`
	D       []byte           `msgpack:"d"`
}

func GuildChannel(guildID snowflake.ID) string {
	return fmt.Sprintf("derailed:guild:%d", uint64(guildID))
}
func UserChannel(userID snowflake.ID) string {
	return fmt.Sprintf("derailed:user:%d", uint64(userID))
}

func Encode(env Envelope) ([]byte, error) {
	return msgpack.Marshal(&env)
}

func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := msgpack.Unmarshal(data, &env)
	return env, err
}

// Recorder observes publish outcomes. *observability.Metrics implements it.
type Recorder interface {
	EventPublished(eventType string, err error)
}

// RedisPublisher fans events out through redis pub/sub.
// It implements models.NotificationService.
type RedisPublisher struct {
	redis   redis.UniversalClient
	log     zerolog.Logger
	metrics Recorder
}

func NewRedisPublisher(client redis.UniversalClient, log zerolog.Logger, metrics Recorder) *RedisPublisher {
	return &RedisPublisher{redis: client, log: log, metrics: metrics}
}

func (p *RedisPublisher) PublishGuild(ctx context.Context, guildID snowflake.ID, t models.EventType, data interface{}) {
	p.publish(ctx, []string{GuildChannel(guildID)}, Envelope{T: t, GuildID: &guildID}, data)
}

func (p *RedisPublisher) PublishUser(ctx context.Context, userID snowflake.ID, t models.EventType, data interface{}) {
	p.publish(ctx, []string{UserChannel(userID)}, Envelope{T: t, UserID: &userID}, data)
}

func (p *RedisPublisher) MultiPublish(ctx context.Context, guildIDs []snowflake.ID, t models.EventType, data interface{}) {
	if len(guildIDs) == 0 {
		return
	}
	channels := make([]string, 0, len(guildIDs))
	for _, id := range guildIDs {
		channels = append(channels, GuildChannel(id))
	}
	p.publish(ctx, channels, Envelope{T: t}, data)
}

// publish never fails the caller: the write already happened.
func (p *RedisPublisher) publish(ctx context.Context, channels []string, env Envelope, data interface{}) {
	err := p.send(ctx, channels, env, data)
	if p.metrics != nil {
		p.metrics.EventPublished(string(env.T), err)
	}
	if err != nil {
		p.log.Warn().Err(err).Str("type", string(env.T)).Strs("channels", channels).Msg("Publishing event")
	}
}

func (p *RedisPublisher) send(ctx context.Context, channels []string, env Envelope, data interface{}) error {
	d, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env.D = d
	payload, err := Encode(env)
	if err != nil {
		return err
	}
	if len(channels) == 1 {
		return p.redis.Publish(ctx, channels[0], payload).Err()
	}
	_, err = p.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ch := range channels {
			pipe.Publish(ctx, ch, payload)
		}
		return nil
	})
	return err
}
