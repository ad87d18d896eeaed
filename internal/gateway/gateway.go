package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"gitlab.com/derailed/derailed/internal/events"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

var errSessionEnded = errors.New("session ended")

// Identity is who a token belongs to, as seen when the session starts.
type Identity struct {
	User     models.User
	GuildIDs []snowflake.ID
}

type Identifier interface {
	Identify(ctx context.Context, token string) (*Identity, error)
}

type SessionRecorder interface {
	SessionOpened()
	SessionClosed()
}

// Frame is what clients receive.
type Frame struct {
	T models.EventType `json:"t"`
	D interface{}      `json:"d"`
}

type Ready struct {
	SessionID string         `json:"session_id"`
	User      models.User    `json:"user"`
	GuildIDs  []snowflake.ID `json:"guild_ids"`
}

// Gateway forwards bus events to websocket clients.
type Gateway struct {
	redis    redis.UniversalClient
	identify Identifier
	metrics  SessionRecorder
	upgrader websocket.Upgrader
	pingEach time.Duration
	pongWait time.Duration
}

func New(client redis.UniversalClient, identify Identifier, metrics SessionRecorder) *Gateway {
	return &Gateway{
		redis:    client,
		identify: identify,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEach: pingPeriod,
		pongWait: pongWait,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	identity, err := g.identify.Identify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied
		return
	}

	s := &session{
		id:       uuid.NewString(),
		gw:       g,
		conn:     conn,
		identity: identity,
		guilds:   make(map[snowflake.ID]bool),
	}
	sessionLog := log.With().Str("session_id", s.id).Str("user_id", identity.User.ID.String()).Logger()
	s.log = &sessionLog

	if g.metrics != nil {
		g.metrics.SessionOpened()
		defer g.metrics.SessionClosed()
	}
	s.log.Info().Msg("Gateway session started")
	err = s.run(r.Context())
	s.log.Info().Err(err).Msg("Gateway session ended")
}

type session struct {
	id       string
	gw       *Gateway
	conn     *websocket.Conn
	identity *Identity
	log      *zerolog.Logger
	sub      *redis.PubSub
	guilds   map[snowflake.ID]bool
}

func (s *session) run(ctx context.Context) error {
	defer s.conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	userID := s.identity.User.ID
	channels := []string{events.UserChannel(userID)}
	for _, id := range s.identity.GuildIDs {
		s.guilds[id] = true
		channels = append(channels, events.GuildChannel(id))
	}
	s.sub = s.gw.redis.Subscribe(ctx, channels...)
	defer s.sub.Close()
	// Wait for the subscription so no event after READY is lost
	if _, err := s.sub.Receive(ctx); err != nil {
		return err
	}

	guildIDs := s.identity.GuildIDs
	if guildIDs == nil {
		guildIDs = []snowflake.ID{}
	}
	err := s.write(Frame{T: models.EventReady, D: Ready{
		SessionID: s.id,
		User:      s.identity.User,
		GuildIDs:  guildIDs,
	}})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.readPump()
	})
	g.Go(func() error {
		defer s.conn.Close()
		return s.writePump(ctx)
	})
	return g.Wait()
}

// readPump only keeps the connection alive: clients don't send anything
// but pongs and close frames.
func (s *session) readPump() error {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.gw.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.gw.pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (s *session) writePump(ctx context.Context) error {
	ticker := time.NewTicker(s.gw.pingEach)
	defer ticker.Stop()
	messages := s.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return ctx.Err()
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case msg, ok := <-messages:
			if !ok {
				return errSessionEnded
			}
			env, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				s.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Decoding event")
				continue
			}
			end, err := s.follow(ctx, env)
			if err != nil {
				return err
			}
			if err := s.write(Frame{T: env.T, D: json.RawMessage(env.D)}); err != nil {
				return err
			}
			if end {
				return errSessionEnded
			}
		}
	}
}

// follow keeps the subscriptions in line with the guilds the user is in.
// It reports whether the session must end.
func (s *session) follow(ctx context.Context, env events.Envelope) (bool, error) {
	userID := s.identity.User.ID
	switch env.T {
	case models.EventGuildCreate:
		var guild struct {
			ID snowflake.ID `json:"id"`
		}
		if env.UserID == nil || json.Unmarshal(env.D, &guild) != nil || s.guilds[guild.ID] {
			return false, nil
		}
		s.guilds[guild.ID] = true
		return false, s.sub.Subscribe(ctx, events.GuildChannel(guild.ID))
	case models.EventGuildDelete:
		var deleted models.Deleted
		if json.Unmarshal(env.D, &deleted) != nil {
			return false, nil
		}
		return false, s.leave(ctx, deleted.ID)
	case models.EventMemberRemove:
		var removed models.MemberRemoved
		if json.Unmarshal(env.D, &removed) != nil || removed.UserID != userID {
			return false, nil
		}
		return false, s.leave(ctx, removed.GuildID)
	case models.EventUserDelete:
		return env.UserID != nil && *env.UserID == userID, nil
	}
	return false, nil
}

func (s *session) leave(ctx context.Context, guildID snowflake.ID) error {
	if !s.guilds[guildID] {
		return nil
	}
	delete(s.guilds, guildID)
	return s.sub.Unsubscribe(ctx, events.GuildChannel(guildID))
}

func (s *session) write(f Frame) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}
