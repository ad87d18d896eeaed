package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

const (
	QueueDefault = "default"
	// TaskPurgeMessages deletes every message of a deleted channel.
	TaskPurgeMessages = "messages:purge"
)

type PurgePayload struct {
	ChannelID snowflake.ID `json:"channel_id"`
}

func NewPurgeTask(channelID snowflake.ID) (*asynq.Task, error) {
	body, err := json.Marshal(PurgePayload{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeMessages, body, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// MessageStore is the part of the database the purge needs.
// *db.SharedDB implements it.
type MessageStore interface {
	PurgeMessages(ctx context.Context, channelID snowflake.ID, bucket int64) (int64, error)
	CurrentBucket() int64
}

type Recorder interface {
	JobDone(jobType string, err error)
}

// PurgeHandler walks the channel's buckets from the newest back to the
// one the channel was created in.
type PurgeHandler struct {
	store   MessageStore
	log     zerolog.Logger
	metrics Recorder
}

func NewPurgeHandler(store MessageStore, log zerolog.Logger, metrics Recorder) *PurgeHandler {
	return &PurgeHandler{store: store, log: log, metrics: metrics}
}

func (h *PurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ChannelID == 0 {
		return fmt.Errorf("bad %s payload: %w", TaskPurgeMessages, asynq.SkipRetry)
	}
	err := h.purge(ctx, payload.ChannelID)
	if h.metrics != nil {
		h.metrics.JobDone(TaskPurgeMessages, err)
	}
	return err
}

func (h *PurgeHandler) purge(ctx context.Context, channelID snowflake.ID) error {
	var total int64
	buckets := snowflake.Buckets(snowflake.Bucket(channelID), h.store.CurrentBucket())
	for i := len(buckets) - 1; i >= 0; i-- {
		bucket := buckets[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := h.store.PurgeMessages(ctx, channelID, bucket)
		if err != nil {
			return fmt.Errorf("purging bucket %d of channel %s: %w", bucket, channelID, err)
		}
		total += n
	}
	h.log.Info().
		Str("channel_id", channelID.String()).
		Int64("deleted", total).
		Msg("Purged channel messages")
	return nil
}
