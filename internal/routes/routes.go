package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/unrolled/secure"
	"gitlab.com/derailed/derailed/internal/auth"
	"gitlab.com/derailed/derailed/internal/db"
	"gitlab.com/derailed/derailed/internal/gateway"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/observability"
	"gitlab.com/derailed/derailed/internal/ratelimit"
	"gitlab.com/derailed/derailed/internal/render"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"gitlab.com/derailed/derailed/internal/utils"
)

type ContextKey int

const (
	UserHCtxKey ContextKey = iota
	GuildHCtxKey
	ChannelHCtxKey
	MessageHCtxKey
	RoleHCtxKey
)

type Routes struct {
	envConfig *models.EnvConfig
	db        *db.SharedDB
	tokens    *auth.Manager
	limiter   *ratelimit.Limiter
	metrics   *observability.Metrics
	render    render.Renderer
	validate  *validator.Validate
	log       zerolog.Logger
}

// Deps is everything the router is built from. Limiter, Metrics and
// Redis are optional; without Redis there is no gateway.
type Deps struct {
	EnvConfig *models.EnvConfig
	DB        *db.SharedDB
	Tokens    *auth.Manager
	Limiter   *ratelimit.Limiter
	Metrics   *observability.Metrics
	Redis     redis.UniversalClient
	Logger    zerolog.Logger
}

func NewRouter(deps Deps) chi.Router {
	routes := &Routes{
		envConfig: deps.EnvConfig,
		db:        deps.DB,
		tokens:    deps.Tokens,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		render:    render.NewRenderer(deps.EnvConfig),
		validate:  newValidator(),
		log:       deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("")
	}))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(middleware.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		IsDevelopment:      deps.EnvConfig.Debug,
	}).Handler)
	r.Use(deps.Metrics.Middleware)

	r.Handle("/metrics", deps.Metrics.Handler())
	if deps.Redis != nil {
		r.Handle("/gateway", gateway.New(deps.Redis, routes, deps.Metrics))
	}

	ipLimit := httprate.Limit(deps.EnvConfig.IPRequestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			routes.HandleErr(w, r, ratelimit.ErrRateLimited{Bucket: "ip", RetryAfter: time.Minute})
		}),
	)
	r.With(ipLimit).Post("/register", routes.AppHandler(routes.PostRegister))
	r.With(ipLimit).Post("/login", routes.AppHandler(routes.PostLogin))
	r.Get("/invites/{inviteCode}", routes.AppHandler(routes.GetInvitePreview))

	r.Group(func(r chi.Router) {
		r.Use(routes.UserHCtx)
		r.Use(routes.userRateLimit("global", deps.EnvConfig.RequestsPerMinute))
		r.Post("/logout", routes.AppHandler(routes.PostLogout))
		r.Post("/invites/{inviteCode}", routes.AppHandler(routes.PostJoinInvite))
		r.Route("/users", routes.UsersRouter)
		r.Route("/guilds", routes.GuildsRouter)
	})
	return r
}

// UserHCtx authenticates the request from the Authorization header.
func (routes *Routes) UserHCtx(next http.Handler) http.Handler {
	return routes.AppHandler(func(w http.ResponseWriter, r *http.Request) AppError {
		token := utils.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			return &ErrUnauthorized{}
		}
		userH, err := routes.authenticate(r.Context(), token)
		if err != nil {
			return toAppError(err)
		}
		ctx := context.WithValue(r.Context(), UserHCtxKey, userH)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	})
}

func (routes *Routes) authenticate(ctx context.Context, token string) (*db.UserH, error) {
	claims, err := routes.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	userH, err := routes.db.GetUserH(ctx, claims.UserID, claims.DeviceID)
	if err == models.ErrNotFound {
		// The device was signed out
		return nil, &ErrUnauthorized{Cause: err}
	}
	return userH, err
}

// userRateLimit limits authenticated users per bucket.
func (routes *Routes) userRateLimit(bucket string, perMinute int) func(http.Handler) http.Handler {
	return routes.rateLimit(bucket, perMinute, func(r *http.Request) string {
		if userH := GetUserH(r); userH != nil {
			return userH.ID().String()
		}
		return ""
	})
}

func (routes *Routes) rateLimit(bucket string, perMinute int, identity func(*http.Request) string) func(http.Handler) http.Handler {
	if routes.limiter == nil || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rule := ratelimit.Rule{Bucket: bucket, Limit: perMinute, Window: time.Minute}
	return routes.limiter.Middleware(rule, identity, routes.HandleErr)
}

func GetUserH(r *http.Request) *db.UserH {
	userH, _ := r.Context().Value(UserHCtxKey).(*db.UserH)
	return userH
}
func GetGuildH(r *http.Request) *db.GuildH {
	guildH, _ := r.Context().Value(GuildHCtxKey).(*db.GuildH)
	return guildH
}
func GetChannelH(r *http.Request) *db.ChannelH {
	channelH, _ := r.Context().Value(ChannelHCtxKey).(*db.ChannelH)
	return channelH
}
func GetMessageH(r *http.Request) *db.MessageH {
	messageH, _ := r.Context().Value(MessageHCtxKey).(*db.MessageH)
	return messageH
}
func GetRoleH(r *http.Request) *db.RoleH {
	roleH, _ := r.Context().Value(RoleHCtxKey).(*db.RoleH)
	return roleH
}

// urlID parses a snowflake path parameter.
func urlID(r *http.Request, param, thing string) (snowflake.ID, AppError) {
	id, err := snowflake.Parse(chi.URLParam(r, param))
	if err != nil {
		return 0, &ErrNotFound{Thing: thing, Cause: err}
	}
	return id, nil
}
