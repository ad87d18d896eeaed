package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gitlab.com/derailed/derailed/internal/events"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

type fakeIdentifier struct{}

func (fakeIdentifier) Identify(_ context.Context, token string) (*Identity, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &Identity{
		User:     models.User{ID: 1, Username: "pippo"},
		GuildIDs: []snowflake.ID{10},
	}, nil
}

type sessionCounter struct{ open chan int }

func (c sessionCounter) SessionOpened() { c.open <- 1 }
func (c sessionCounter) SessionClosed() { c.open <- -1 }

type rawFrame struct {
	T models.EventType `json:"t"`
	D json.RawMessage  `json:"d"`
}

func setup(t *testing.T) (*httptest.Server, *events.RedisPublisher, sessionCounter) {
	t.Helper()
	mr, err := miniredis.Run()
	require.Nil(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := sessionCounter{open: make(chan int, 10)}
	srv := httptest.NewServer(New(client, fakeIdentifier{}, counter))
	t.Cleanup(func() {
		srv.Close()
		client.Close()
		mr.Close()
	})
	return srv, events.NewRedisPublisher(client, zerolog.Nop(), nil), counter
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) (rawFrame, error) {
	var f rawFrame
	conn.SetReadDeadline(time.Now().Add(timeout))
	err := conn.ReadJSON(&f)
	return f, err
}

// expect keeps publishing until the matching frame shows up.
// Subscription changes are asynchronous, so the first publications may
// be missed.
func expect(t *testing.T, conn *websocket.Conn, publish func(), want models.EventType) rawFrame {
	t.Helper()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			publish()
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	for {
		f, err := readFrame(t, conn, 3*time.Second)
		require.Nil(t, err)
		if f.T == want {
			return f
		}
	}
}

func TestUnauthorized(t *testing.T) {
	srv, _, _ := setup(t)
	_, resp, err := dial(t, srv, "bad")
	require.NotNil(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReadyAndForwarding(t *testing.T) {
	require := require.New(t)
	srv, pub, counter := setup(t)
	ctx := context.Background()

	conn, _, err := dial(t, srv, "good")
	require.Nil(err)
	defer conn.Close()
	require.Equal(1, <-counter.open)

	f, err := readFrame(t, conn, 2*time.Second)
	require.Nil(err)
	require.Equal(models.EventReady, f.T)
	var ready Ready
	require.Nil(json.Unmarshal(f.D, &ready))
	require.NotEmpty(ready.SessionID)
	require.Equal(snowflake.ID(1), ready.User.ID)
	require.Equal([]snowflake.ID{10}, ready.GuildIDs)

	// Subscribed before READY, so a single publication is enough
	pub.PublishGuild(ctx, 10, models.EventMessageCreate, models.Message{ID: 5, Content: "hi"})
	f, err = readFrame(t, conn, 2*time.Second)
	require.Nil(err)
	require.Equal(models.EventMessageCreate, f.T)
	require.Contains(string(f.D), `"content":"hi"`)

	// Joining a guild subscribes to it
	pub.PublishUser(ctx, 1, models.EventGuildCreate, models.Guild{ID: 11, Name: "new"})
	f, err = readFrame(t, conn, 2*time.Second)
	require.Nil(err)
	require.Equal(models.EventGuildCreate, f.T)
	expect(t, conn, func() {
		pub.PublishGuild(ctx, 11, models.EventChannelCreate, models.Channel{ID: 12, GuildID: 11})
	}, models.EventChannelCreate)

	// Removing the user ends the session
	pub.PublishUser(ctx, 1, models.EventUserDelete, models.Deleted{ID: 1})
	for {
		f, err = readFrame(t, conn, 2*time.Second)
		if err != nil || f.T == models.EventUserDelete {
			break
		}
	}
	require.Nil(err)
	_, err = readFrame(t, conn, 2*time.Second)
	require.NotNil(err)
	require.Equal(-1, <-counter.open)
}
