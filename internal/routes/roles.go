package routes

import (
	"context"
	"net/http"

	"gitlab.com/derailed/derailed/internal/models"
)

func (routes *Routes) RoleCtx(next http.Handler) http.Handler {
	return routes.AppHandler(func(w http.ResponseWriter, r *http.Request) AppError {
		roleID, appErr := urlID(r, "roleID", "role")
		if appErr != nil {
			return appErr
		}
		roleH, err := GetGuildH(r).GetRoleH(r.Context(), roleID)
		if err == models.ErrNotFound {
			return &ErrNotFound{Thing: "role", Cause: err}
		} else if err != nil {
			return toAppError(err)
		}
		ctx := context.WithValue(r.Context(), RoleHCtxKey, roleH)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	})
}

func (routes *Routes) ListRoles(w http.ResponseWriter, r *http.Request) AppError {
	roles, err := GetGuildH(r).ListRoles(r.Context())
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, roles)
	return nil
}

func (routes *Routes) PostRole(w http.ResponseWriter, r *http.Request) AppError {
	var req models.RoleReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	role, err := GetGuildH(r).CreateRole(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusCreated, role)
	return nil
}

func (routes *Routes) GetRole(w http.ResponseWriter, r *http.Request) AppError {
	routes.render.JSON(w, http.StatusOK, GetRoleH(r).Read())
	return nil
}

func (routes *Routes) PatchRole(w http.ResponseWriter, r *http.Request) AppError {
	var req models.RoleUpdateReq
	if err := routes.decode(r, &req); err != nil {
		return toAppError(err)
	}
	role, err := GetRoleH(r).Update(r.Context(), req)
	if err != nil {
		return toAppError(err)
	}
	routes.render.JSON(w, http.StatusOK, role)
	return nil
}

func (routes *Routes) DeleteRole(w http.ResponseWriter, r *http.Request) AppError {
	if err := GetRoleH(r).Delete(r.Context()); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) PutMemberRole(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "member")
	if appErr != nil {
		return appErr
	}
	if err := GetGuildH(r).Assign(r.Context(), userID, *GetRoleH(r)); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}

func (routes *Routes) DeleteMemberRole(w http.ResponseWriter, r *http.Request) AppError {
	userID, appErr := urlID(r, "userID", "member")
	if appErr != nil {
		return appErr
	}
	if err := GetGuildH(r).Unassign(r.Context(), userID, *GetRoleH(r)); err != nil {
		return toAppError(err)
	}
	routes.render.NoContent(w)
	return nil
}
