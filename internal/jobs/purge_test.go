package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

type fakeStore struct {
	current int64
	buckets []int64
	failAt  int64
}

func (s *fakeStore) CurrentBucket() int64 {
	return s.current
}

func (s *fakeStore) PurgeMessages(_ context.Context, _ snowflake.ID, bucket int64) (int64, error) {
	if s.failAt != 0 && bucket == s.failAt {
		return 0, errors.New("db down")
	}
	s.buckets = append(s.buckets, bucket)
	return 1, nil
}

type jobCounter map[string]int

func (c jobCounter) JobDone(jobType string, err error) {
	if err != nil {
		jobType += ":failed"
	}
	c[jobType]++
}

func channelAt(bucket int64) snowflake.ID {
	return snowflake.Compose(snowflake.Parts{Timestamp: bucket * snowflake.BucketSize})
}

func TestPurgeWalksBuckets(t *testing.T) {
	require := require.New(t)
	channelID := channelAt(100)
	store := &fakeStore{current: 103}
	metrics := jobCounter{}
	h := NewPurgeHandler(store, zerolog.Nop(), metrics)

	task, err := NewPurgeTask(channelID)
	require.Nil(err)
	require.Equal(TaskPurgeMessages, task.Type())
	var payload PurgePayload
	require.Nil(json.Unmarshal(task.Payload(), &payload))
	require.Equal(channelID, payload.ChannelID)

	require.Nil(h.ProcessTask(context.Background(), task))
	require.Equal([]int64{103, 102, 101, 100}, store.buckets)
	require.Equal(1, metrics[TaskPurgeMessages])
}

func TestPurgeFailureRetries(t *testing.T) {
	require := require.New(t)
	store := &fakeStore{current: 5, failAt: 4}
	metrics := jobCounter{}
	h := NewPurgeHandler(store, zerolog.Nop(), metrics)
	task, err := NewPurgeTask(channelAt(3))
	require.Nil(err)

	err = h.ProcessTask(context.Background(), task)
	require.NotNil(err)
	require.False(errors.Is(err, asynq.SkipRetry))
	require.Equal([]int64{5}, store.buckets)
	require.Equal(1, metrics[TaskPurgeMessages+":failed"])
}

func TestPurgeBadPayload(t *testing.T) {
	h := NewPurgeHandler(&fakeStore{}, zerolog.Nop(), nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskPurgeMessages, []byte("nope")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestPurgeStopsOnCancel(t *testing.T) {
	require := require.New(t)
	store := &fakeStore{current: 10}
	h := NewPurgeHandler(store, zerolog.Nop(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	task, err := NewPurgeTask(channelAt(1))
	require.Nil(err)
	require.ErrorIs(h.ProcessTask(ctx, task), context.DeadlineExceeded)
	require.Empty(store.buckets)
}
