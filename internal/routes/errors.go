package routes

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
	"gitlab.com/derailed/derailed/internal/auth"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/ratelimit"
)

// AppError is an error that knows how it should be shown to clients.
type AppError interface {
	error
	Status() int
	Message() string
}

type ErrInternal struct {
	Cause error
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %v", e.Cause)
}
func (e *ErrInternal) Status() int {
	return http.StatusInternalServerError
}
func (e *ErrInternal) Message() string {
	return "Internal server error"
}
func (e *ErrInternal) Unwrap() error {
	return e.Cause
}

type ErrNotFound struct {
	Thing string
	Cause error
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Thing, e.Cause)
}
func (e *ErrNotFound) Status() int {
	return http.StatusNotFound
}
func (e *ErrNotFound) Message() string {
	if e.Thing == "" {
		return "Not found"
	}
	return fmt.Sprintf("Unknown %s", e.Thing)
}
func (e *ErrNotFound) Unwrap() error {
	return e.Cause
}

type ErrBadRequest struct {
	Msg   string
	Cause error
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("bad request: %v", e.Cause)
}
func (e *ErrBadRequest) Status() int {
	return http.StatusBadRequest
}
func (e *ErrBadRequest) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "Bad request"
}
func (e *ErrBadRequest) Unwrap() error {
	return e.Cause
}

type ErrUnauthorized struct {
	Cause error
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("unauthorized: %v", e.Cause)
}
func (e *ErrUnauthorized) Status() int {
	return http.StatusUnauthorized
}
func (e *ErrUnauthorized) Message() string {
	return "Unauthorized"
}
func (e *ErrUnauthorized) Unwrap() error {
	return e.Cause
}

type ErrForbidden struct {
	Cause error
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %v", e.Cause)
}
func (e *ErrForbidden) Status() int {
	return http.StatusForbidden
}
func (e *ErrForbidden) Message() string {
	var missing models.ErrMissingPerms
	if errors.As(e.Cause, &missing) {
		return fmt.Sprintf("Missing permissions: %s", missing.Perms)
	}
	if e.Cause != nil && !errors.Is(e.Cause, models.ErrPermDenied) {
		return e.Cause.Error()
	}
	return "Missing permissions"
}
func (e *ErrForbidden) Unwrap() error {
	return e.Cause
}

type ErrTooManyRequests struct {
	Cause ratelimit.ErrRateLimited
}

func (e *ErrTooManyRequests) Error() string {
	return e.Cause.Error()
}
func (e *ErrTooManyRequests) Status() int {
	return http.StatusTooManyRequests
}
func (e *ErrTooManyRequests) Message() string {
	return "You are being rate limited"
}

type errorBody struct {
	Message    string   `json:"message"`
	Code       int      `json:"code"`
	RetryAfter *float64 `json:"retry_after,omitempty"`
}

// AppHandler turns a handler returning an AppError into a http.HandlerFunc.
func (routes *Routes) AppHandler(handler func(w http.ResponseWriter, r *http.Request) AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			routes.renderErr(w, r, err)
		}
	}
}

// HandleErr maps any error to its AppError and writes it.
func (routes *Routes) HandleErr(w http.ResponseWriter, r *http.Request, err error) {
	routes.renderErr(w, r, toAppError(err))
}

func toAppError(err error) AppError {
	var appErr AppError
	var limited ratelimit.ErrRateLimited
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &limited):
		return &ErrTooManyRequests{Cause: limited}
	case errors.As(err, &invalid):
		return &ErrBadRequest{Msg: validationMessage(invalid), Cause: err}
	case errors.Is(err, models.ErrNotFound):
		return &ErrNotFound{Cause: err}
	case errors.Is(err, models.ErrPermDenied),
		errors.Is(err, models.ErrOwnerCannotLeave),
		errors.Is(err, models.ErrBanned):
		return &ErrForbidden{Cause: err}
	case errors.Is(err, auth.ErrInvalidToken):
		return &ErrUnauthorized{Cause: err}
	case errors.Is(err, models.ErrBadPassword):
		return &ErrBadRequest{Msg: "Wrong password", Cause: err}
	case errors.Is(err, models.ErrBadContentLen),
		errors.Is(err, models.ErrInvalidFormat),
		errors.Is(err, models.ErrWeakPasswd),
		errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrEmailAlreadyUsed),
		errors.Is(err, models.ErrOwnsGuilds),
		errors.Is(err, models.ErrTooManyGuilds),
		errors.Is(err, models.ErrGuildFull),
		errors.Is(err, models.ErrBadSystemChannel),
		errors.Is(err, models.ErrNotTextChannel),
		errors.Is(err, models.ErrBadParent),
		errors.Is(err, models.ErrBadReference):
		return &ErrBadRequest{Cause: err}
	default:
		return &ErrInternal{Cause: err}
	}
}

func (routes *Routes) renderErr(w http.ResponseWriter, r *http.Request, err AppError) {
	body := errorBody{Message: err.Message(), Code: err.Status()}
	if tooMany, ok := err.(*ErrTooManyRequests); ok {
		retry := math.Ceil(tooMany.Cause.RetryAfter.Seconds()*1000) / 1000
		body.RetryAfter = &retry
	}

	logEvent := hlog.FromRequest(r).Debug()
	if err.Status() >= http.StatusInternalServerError {
		logEvent = hlog.FromRequest(r).Error()
	}
	logEvent.
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", err.Status()).
		Err(err).
		Msg(err.Message())

	if renderErr := routes.render.JSON(w, err.Status(), body); renderErr != nil {
		http.Error(w, err.Message(), err.Status())
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Invalid body"
	}
	fe := errs[0]
	return fmt.Sprintf("Invalid field %s: failed on %s", fe.Field(), fe.Tag())
}
