package snowflake

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestConcurrentUnique(t *testing.T) {
	require := require.New(t)
	gen := NewGenerator(DefaultEpoch, 1, 2)

	const workers = 50
	const perWorker = 200
	ids := make(chan ID, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- gen.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	require.Len(seen, 10000)
}

func TestSameMillisecondWrap(t *testing.T) {
	require := require.New(t)
	clock := &fakeClock{t: time.UnixMilli(DefaultEpoch + 5000)}
	gen := NewGenerator(DefaultEpoch, 0, 0, WithClock(clock.Now))

	seen := map[ID]struct{}{}
	var prev ID
	for i := 0; i < 3*4096; i++ {
		id := gen.Next()
		_, dup := seen[id]
		require.False(dup)
		seen[id] = struct{}{}
		if i > 0 {
			require.Greater(uint64(id), uint64(prev))
		}
		prev = id
	}
	// The clock never moved, the generator borrowed two milliseconds.
	require.Equal(int64(5002), Decompose(prev).Timestamp)

	clock.Advance(10 * time.Millisecond)
	require.Equal(int64(5010), Decompose(gen.Next()).Timestamp)
}

func TestSequenceWraps(t *testing.T) {
	require := require.New(t)
	clock := &fakeClock{t: time.UnixMilli(DefaultEpoch)}
	gen := NewGenerator(DefaultEpoch, 0, 0, WithClock(clock.Now))
	for i := 0; i < 4096; i++ {
		clock.Advance(time.Millisecond)
		require.Equal(uint16(i), Decompose(gen.Next()).Sequence)
	}
	clock.Advance(time.Millisecond)
	require.Equal(uint16(0), Decompose(gen.Next()).Sequence)
}

func TestMonotonicAcrossMilliseconds(t *testing.T) {
	require := require.New(t)
	gen := NewGenerator(DefaultEpoch, 3, 4)
	a := gen.Next()
	time.Sleep(2 * time.Millisecond)
	b := gen.Next()
	require.Greater(uint64(b), uint64(a))
}

func TestClockBackwards(t *testing.T) {
	require := require.New(t)
	clock := &fakeClock{t: time.UnixMilli(DefaultEpoch + 100)}
	gen := NewGenerator(DefaultEpoch, 0, 0, WithClock(clock.Now))
	a := gen.Next()
	clock.Advance(-50 * time.Millisecond)
	b := gen.Next()
	require.Greater(uint64(b), uint64(a))
	require.Equal(int64(100), Decompose(b).Timestamp)
}

func TestRoundTrip(t *testing.T) {
	require := require.New(t)
	gen := NewGenerator(DefaultEpoch, 37, 70)
	for i := 0; i < 100; i++ {
		id := gen.Next()
		parts := Decompose(id)
		require.Equal(uint8(37%32), parts.Worker)
		require.Equal(uint8(70%32), parts.Process)
		require.Equal(id, Compose(parts))
	}

	p := Parts{Timestamp: 123456789, Worker: 31, Process: 7, Sequence: 4095}
	require.Equal(p, Decompose(Compose(p)))
}

func TestKnownLayout(t *testing.T) {
	require := require.New(t)
	id := Compose(Parts{Timestamp: 1, Worker: 1, Process: 1, Sequence: 1})
	require.Equal(ID(1<<22|1<<17|1<<12|1), id)
}

func TestTime(t *testing.T) {
	require := require.New(t)
	now := time.UnixMilli(DefaultEpoch + 987654)
	gen := NewGenerator(DefaultEpoch, 0, 0, WithClock(func() time.Time { return now }))
	require.True(now.Equal(gen.Next().Time(DefaultEpoch)))
}

func TestJSON(t *testing.T) {
	require := require.New(t)
	var v struct {
		ID ID `json:"id"`
	}
	v.ID = 175928847299117063
	b, err := json.Marshal(v)
	require.NoError(err)
	require.JSONEq(`{"id":"175928847299117063"}`, string(b))

	v.ID = 0
	require.NoError(json.Unmarshal([]byte(`{"id":42}`), &v))
	require.Equal(ID(42), v.ID)
	require.NoError(json.Unmarshal([]byte(`{"id":"43"}`), &v))
	require.Equal(ID(43), v.ID)
	require.Error(json.Unmarshal([]byte(`{"id":"abc"}`), &v))
}

func TestScan(t *testing.T) {
	require := require.New(t)
	var id ID
	require.NoError(id.Scan(int64(99)))
	require.Equal(ID(99), id)
	require.NoError(id.Scan([]byte("100")))
	require.Equal(ID(100), id)
	require.Error(id.Scan(3.5))

	v, err := ID(7).Value()
	require.NoError(err)
	require.Equal(int64(7), v)
}

func TestBuckets(t *testing.T) {
	require := require.New(t)
	start := Compose(Parts{Timestamp: 0})
	end := Compose(Parts{Timestamp: 3*BucketSize + 10})
	require.Equal(int64(0), Bucket(start))
	require.Equal(int64(3), Bucket(end))
	require.Equal([]int64{0, 1, 2, 3}, Buckets(Bucket(start), Bucket(end)))
	require.Equal([]int64{3}, Buckets(3, 3))
	require.Empty(Buckets(Bucket(end), Bucket(start)))
}
