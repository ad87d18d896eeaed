package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"gitlab.com/derailed/derailed/internal/models"
)

func (routes *Routes) GetInvitePreview(w http.ResponseWriter, r *http.Request) AppError {
	preview, err := routes.db.PreviewInvite(r.Context(), chi.URLParam(r, "inviteCode"))
	if err == models.ErrNotFound {
		return &ErrNotFound{Thing: "invite", Cause: err}
	} else if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, preview)
	return nil
}

func (routes *Routes) PostJoinInvite(w http.ResponseWriter, r *http.Request) AppError {
	guild, err := GetUserH(r).JoinByInvite(r.Context(), chi.URLParam(r, "inviteCode"))
	if err == models.ErrNotFound {
		return &ErrNotFound{Thing: "invite", Cause: err}
	} else if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, guild)
	return nil
}

func (routes *Routes) ListInvites(w http.ResponseWriter, r *http.Request) AppError {
	invites, err := GetGuildH(r).ListInvites(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, invites)
	return nil
}

func (routes *Routes) PostInvite(w http.ResponseWriter, r *http.Request) AppError {
	invite, err := GetGuildH(r).CreateInvite(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusCreated, invite)
	return nil
}

func (routes *Routes) DeleteInvite(w http.ResponseWriter, r *http.Request) AppError {
	err := GetGuildH(r).DeleteInvite(r.Context(), chi.URLParam(r, "inviteCode"))
	if err == models.ErrNotFound {
		return &ErrNotFound{Thing: "invite", Cause: err}
	} else if err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}
