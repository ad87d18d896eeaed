package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gitlab.com/derailed/derailed/internal/models"
)

type permissionsResp struct {
	Permissions models.Permissions `json:"permissions"`
	Owner       bool               `json:"owner"`
}

func (routes *Routes) GuildsRouter(r chi.Router) {
	r.Post("/", routes.AppHandler(routes.PostGuild))
	r.Route("/{guildID}", func(r chi.Router) {
		r.Use(routes.GuildCtx)
		r.Get("/", routes.AppHandler(routes.GetGuild))
		r.Patch("/", routes.AppHandler(routes.PatchGuild))
		r.Delete("/", routes.AppHandler(routes.DeleteGuild))
		r.Get("/permissions", routes.AppHandler(routes.GetMyPermissions))

		r.Get("/members", routes.AppHandler(routes.ListMembers))
		r.Delete("/members/@me", routes.AppHandler(routes.LeaveGuild))
		r.Get("/members/{userID}", routes.AppHandler(routes.GetMember))
		r.Patch("/members/{userID}", routes.AppHandler(routes.PatchMember))
		r.Delete("/members/{userID}", routes.AppHandler(routes.KickMember))

		r.Get("/bans", routes.AppHandler(routes.ListBans))
		r.Put("/bans/{userID}", routes.AppHandler(routes.PutBan))
		r.Delete("/bans/{userID}", routes.AppHandler(routes.DeleteBan))

		r.Get("/roles", routes.AppHandler(routes.ListRoles))
		r.Post("/roles", routes.AppHandler(routes.PostRole))
		r.Route("/roles/{roleID}", func(r chi.Router) {
			r.Use(routes.RoleCtx)
			r.Get("/", routes.AppHandler(routes.GetRole))
			r.Patch("/", routes.AppHandler(routes.PatchRole))
			r.Delete("/", routes.AppHandler(routes.DeleteRole))
		})
		r.With(routes.RoleCtx).Put("/members/{userID}/roles/{roleID}", routes.AppHandler(routes.PutMemberRole))
		r.With(routes.RoleCtx).Delete("/members/{userID}/roles/{roleID}", routes.AppHandler(routes.DeleteMemberRole))

		r.Get("/invites", routes.AppHandler(routes.ListInvites))
		r.Post("/invites", routes.AppHandler(routes.PostInvite))
		r.Delete("/invites/{inviteCode}", routes.AppHandler(routes.DeleteInvite))

		r.Route("/channels", routes.ChannelsRouter)
	})
}

// GuildCtx resolves the guild and the caller's permissions in it.
func (routes *Routes) GuildCtx(next http.Handler) http.Handler {
	return routes.AppHandler(func(w http.ResponseWriter, r *http.Request) AppError {
		guildID, appErr := urlID(r, "guildID", "guild")
		if appErr != nil {
			return appErr
		}
		guildH, err := GetUserH(r).GetGuildH(r.Context(), guildID)
		if err == models.ErrNotFound {
			return &ErrNotFound{Thing: "guild", Cause: err}
		} else if err != nil {
			return toAppError(err)
		}
		ctx := context.WithValue(r.Context(), GuildHCtxKey, guildH)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	})
}

func (routes *Routes) PostGuild(w http.ResponseWriter, r *http.Request) AppError {
	var req models.GuildReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	guild, err := GetUserH(r).CreateGuild(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusCreated, guild)
	return nil
}

func (routes *Routes) GetGuild(w http.ResponseWriter, r *http.Request) AppError {
	routes.render.JSON(w, http.StatusOK, GetGuildH(r).Read())
	return nil
}

func (routes *Routes) PatchGuild(w http.ResponseWriter, r *http.Request) AppError {
	var req models.GuildUpdateReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	guild, err := GetGuildH(r).Update(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, guild)
	return nil
}

func (routes *Routes) DeleteGuild(w http.ResponseWriter, r *http.Request) AppError {
	var req models.GuildDeleteReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	if err := GetGuildH(r).Delete(r.Context(), req.Password); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) GetMyPermissions(w http.ResponseWriter, r *http.Request) AppError {
	guildH := GetGuildH(r)
	routes.render.JSON(w, http.StatusOK, permissionsResp{
		Permissions: guildH.Perms(),
		Owner:       guildH.IsOwner(),
	})
	return nil
}

func (routes *Routes) ListMembers(w http.ResponseWriter, r *http.Request) AppError {
	members, err := GetGuildH(r).ListMembers(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, members)
	return nil
}

func (routes *Routes) GetMember(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "member")
	if appErr != nil {
		return appErr
	}
	member, err := GetGuildH(r).GetMember(r.Context(), userID)
	if err == models.ErrNotFound {
		return &ErrNotFound{Thing: "member", Cause: err}
	} else if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, member)
	return nil
}

func (routes *Routes) PatchMember(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "member")
	if appErr != nil {
		return appErr
	}
	var req models.MemberUpdateReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	member, err := GetGuildH(r).UpdateMember(r.Context(), userID, req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, member)
	return nil
}

func (routes *Routes) LeaveGuild(w http.ResponseWriter, r *http.Request) AppError {
	if err := GetGuildH(r).Leave(r.Context()); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) KickMember(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "member")
	if appErr != nil {
		return appErr
	}
	if err := GetGuildH(r).Kick(r.Context(), userID); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) ListBans(w http.ResponseWriter, r *http.Request) AppError {
	bans, err := GetGuildH(r).ListBans(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, bans)
	return nil
}

func (routes *Routes) PutBan(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "user")
	if appErr != nil {
		return appErr
	}
	var req models.BanReq
	if r.ContentLength != 0 {
		if err := routes.decode(r, &req); err != nil {
			return toAppError(err)
		}
	}
	ban, err := GetGuildH(r).Ban(r.Context(), userID, req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, ban)
	return nil
}

func (routes *Routes) DeleteBan(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "ban")
	if appErr != nil {
		return appErr
	}
	if err := GetGuildH(r).Unban(r.Context(), userID); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}
