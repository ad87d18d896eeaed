package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"gitlab.com/derailed/derailed/internal/models"
)

type tokenResp struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (routes *Routes) UsersRouter(r chi.Router) {
	r.Get("/@me", routes.AppHandler(routes.GetMe))
	r.Patch("/@me", routes.AppHandler(routes.PatchMe))
	r.Delete("/@me", routes.AppHandler(routes.DeleteMe))
	r.Get("/@me/guilds", routes.AppHandler(routes.GetMyGuilds))
	r.Get("/@me/settings", routes.AppHandler(routes.GetSettings))
	r.Patch("/@me/settings", routes.AppHandler(routes.PatchSettings))
	r.Get("/{userID}", routes.AppHandler(routes.GetUser))
}

func (routes *Routes) PostRegister(w http.ResponseWriter, r *http.Request) AppError {
	var req models.UserReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	user, err := routes.db.CreateUser(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	device, err := routes.db.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return toAppError(err)
	}
	token, err := routes.tokens.Issue(user.ID, device.ID)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.render.JSON(w, http.StatusCreated, tokenResp{Token: token, User: *user})
	return nil
}

func (routes *Routes) PostLogin(w http.ResponseWriter, r *http.Request) AppError {
	var req models.LoginReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	device, err := routes.db.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return toAppError(err)
	}
	userH, err := routes.db.GetUserH(r.Context(), device.UserID, device.ID)
	if err != nil {
		return toAppError(err)
	}
	user, err := userH.Read(r.Context())
	if err != nil {
		return toAppError(err)
	}
	token, err := routes.tokens.Issue(device.UserID, device.ID)
	if err != nil {
		return &ErrInternal{Cause: err}
	}
	routes.render.JSON(w, http.StatusOK, tokenResp{Token: token, User: *user})
	return nil
}

func (routes *Routes) PostLogout(w http.ResponseWriter, r *http.Request) AppError {
	userH := GetUserH(r)
	if err := routes.db.Signout(r.Context(), userH.DeviceID()); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) GetMe(w http.ResponseWriter, r *http.Request) AppError {
	user, err := GetUserH(r).Read(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, user)
	return nil
}

func (routes *Routes) PatchMe(w http.ResponseWriter, r *http.Request) AppError {
	var req models.UserUpdateReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	user, err := GetUserH(r).Update(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, user)
	return nil
}

func (routes *Routes) DeleteMe(w http.ResponseWriter, r *http.Request) AppError {
	var req models.UserDeleteReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	if err := GetUserH(r).Delete(r.Context(), req.Password); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) GetMyGuilds(w http.ResponseWriter, r *http.Request) AppError {
	guilds, err := GetUserH(r).ListMyGuilds(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, guilds)
	return nil
}

func (routes *Routes) GetSettings(w http.ResponseWriter, r *http.Request) AppError {
	settings, err := GetUserH(r).ReadSettings(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, settings)
	return nil
}

func (routes *Routes) PatchSettings(w http.ResponseWriter, r *http.Request) AppError {
	var req models.SettingsReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	settings, err := GetUserH(r).UpdateSettings(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, settings)
	return nil
}

func (routes *Routes) GetUser(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "user")
	if appErr != nil {
		return appErr
	}
	user, err := routes.db.ReadPublicUser(r.Context(), userID)
	if err != nil {
		return &ErrNotFound{Thing: "user", Cause: err}
	}
	routes.render.JSON(w, http.StatusOK, user)
	return nil
}
