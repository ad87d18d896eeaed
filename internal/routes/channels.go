package routes

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

func (routes *Routes) ChannelsRouter(r chi.Router) {
	r.Get("/", routes.AppHandler(routes.ListChannels))
	r.Post("/", routes.AppHandler(routes.PostChannel))
	r.Route("/{channelID}", func(r chi.Router) {
		r.Use(routes.ChannelCtx)
		r.Get("/", routes.AppHandler(routes.GetChannel))
		r.Patch("/", routes.AppHandler(routes.PatchChannel))
		r.Delete("/", routes.AppHandler(routes.DeleteChannel))

		r.Get("/messages", routes.AppHandler(routes.ListMessages))
		r.With(routes.messageRateLimit()).Post("/messages", routes.AppHandler(routes.PostMessage))
		r.Route("/messages/{messageID}", func(r chi.Router) {
			r.Use(routes.MessageCtx)
			r.Get("/", routes.AppHandler(routes.GetMessage))
			r.Patch("/", routes.AppHandler(routes.PatchMessage))
			r.Delete("/", routes.AppHandler(routes.DeleteMessage))
		})
		r.With(routes.MessageCtx).Put("/pins/{messageID}", routes.AppHandler(routes.PutPin))
		r.With(routes.MessageCtx).Delete("/pins/{messageID}", routes.AppHandler(routes.DeletePin))
	})
}

// messageRateLimit limits each user per channel.
func (routes *Routes) messageRateLimit() func(http.Handler) http.Handler {
	return routes.rateLimit("messages", routes.envConfig.MessagesPerMinute, func(r *http.Request) string {
		userH, channelH := GetUserH(r), GetChannelH(r)
		if userH == nil || channelH == nil {
			return ""
		}
		return userH.ID().String() + ":" + channelH.ID().String()
	})
}

func (routes *Routes) ChannelCtx(next http.Handler) http.Handler {
	return routes.AppHandler(func(w http.ResponseWriter, r *http.Request) AppError {
		channelID, appErr := urlID(r, "channelID", "channel")
		if appErr != nil {
			return appErr
		}
		channelH, err := GetGuildH(r).GetChannelH(r.Context(), channelID)
		if err == models.ErrNotFound {
			return &ErrNotFound{Thing: "channel", Cause: err}
		} else if err != nil {
			return toAppError(err)
		}
		ctx := context.WithValue(r.Context(), ChannelHCtxKey, channelH)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	})
}

func (routes *Routes) MessageCtx(next http.Handler) http.Handler {
	return routes.AppHandler(func(w http.ResponseWriter, r *http.Request) AppError {
		messageID, appErr := urlID(r, "messageID", "message")
		if appErr != nil {
			return appErr
		}
		messageH, err := GetChannelH(r).GetMessageH(r.Context(), messageID)
		if err == models.ErrNotFound {
			return &ErrNotFound{Thing: "message", Cause: err}
		} else if err != nil {
			return toAppError(err)
		}
		ctx := context.WithValue(r.Context(), MessageHCtxKey, messageH)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	})
}

func (routes *Routes) ListChannels(w http.ResponseWriter, r *http.Request) AppError {
	channels, err := GetGuildH(r).ListChannels(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, channels)
	return nil
}

func (routes *Routes) PostChannel(w http.ResponseWriter, r *http.Request) AppError {
	var req models.ChannelReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	channel, err := GetGuildH(r).CreateChannel(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusCreated, channel)
	return nil
}

func (routes *Routes) GetChannel(w http.ResponseWriter, r *http.Request) AppError {
	routes.render.JSON(w, http.StatusOK, GetChannelH(r).Read())
	return nil
}

func (routes *Routes) PatchChannel(w http.ResponseWriter, r *http.Request) AppError {
	var req models.ChannelUpdateReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	channel, err := GetChannelH(r).Update(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, channel)
	return nil
}

func (routes *Routes) DeleteChannel(w http.ResponseWriter, r *http.Request) AppError {
	if err := GetChannelH(r).Delete(r.Context()); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

// parseMessageQuery reads ?before, ?after and ?limit.
func parseMessageQuery(r *http.Request) (models.MessageQuery, AppError) {
	var q models.MessageQuery
	values := r.URL.Query()
	for param, dst := range map[string]**snowflake.ID{"before": &q.Before, "after": &q.After} {
		raw := values.Get(param)
		if raw == "" {
			continue
		}
		id, err := snowflake.Parse(raw)
		if err != nil {
			return q, &ErrBadRequest{Msg: "Invalid " + param, Cause: err}
		}
		*dst = &id
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > models.MaxMessageLimit {
			return q, &ErrBadRequest{Msg: "Invalid limit", Cause: err}
		}
		q.Limit = limit
	}
	return q, nil
}

func (routes *Routes) ListMessages(w http.ResponseWriter, r *http.Request) AppError {
	q, appErr := parseMessageQuery(r)
	if appErr != nil {
		return appErr
	}
	messages, err := GetChannelH(r).ListMessages(r.Context(), q)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, messages)
	return nil
}

func (routes *Routes) PostMessage(w http.ResponseWriter, r *http.Request) AppError {
	var req models.MessageReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	msg, err := GetChannelH(r).CreateMessage(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusCreated, msg)
	return nil
}

func (routes *Routes) GetMessage(w http.ResponseWriter, r *http.Request) AppError {
	routes.render.JSON(w, http.StatusOK, GetMessageH(r).Read())
	return nil
}

func (routes *Routes) PatchMessage(w http.ResponseWriter, r *http.Request) AppError {
	var req models.MessageUpdateReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	msg, err := GetMessageH(r).Edit(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, msg)
	return nil
}

func (routes *Routes) DeleteMessage(w http.ResponseWriter, r *http.Request) AppError {
	if err := GetMessageH(r).Delete(r.Context()); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) PutPin(w http.ResponseWriter, r *http.Request) AppError {
	msg, err := GetMessageH(r).Pin(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, msg)
	return nil
}

func (routes *Routes) DeletePin(w http.ResponseWriter, r *http.Request) AppError {
	msg, err := GetMessageH(r).Unpin(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, msg)
	return nil
}
