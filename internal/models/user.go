package models

import (
	"errors"

	"gitlab.com/derailed/derailed/internal/snowflake"
)

var (
	ErrEmailAlreadyUsed = errors.New("email already used")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrWeakPasswd       = errors.New("weak password")
	ErrBadPassword      = errors.New("wrong email or password")
	ErrOwnsGuilds       = errors.New("transfer or delete your guilds first")
)

type User struct {
	ID          snowflake.ID `json:"id"`
	Username    string       `json:"username"`
	DisplayName *string      `json:"display_name"`
	Avatar      *string      `json:"avatar"`
	Email       string       `json:"email"`
	Flags       UserFlags    `json:"flags"`
	Bot         bool         `json:"bot"`
	System      bool         `json:"system"`
}

// UserView is what other users can see.
type UserView struct {
	ID          snowflake.ID `json:"id"`
	Username    string       `json:"username"`
	DisplayName *string      `json:"display_name"`
	Avatar      *string      `json:"avatar"`
	Flags       UserFlags    `json:"flags"`
	Bot         bool         `json:"bot"`
	System      bool         `json:"system"`
}

func (u User) View() UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Flags:       u.Flags,
		Bot:         u.Bot,
		System:      u.System,
	}
}

type UserReq struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

type LoginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=100"`
}

type UserUpdateReq struct {
	CurrentPassword string  `json:"current_password" validate:"required,max=100"`
	Username        *string `json:"username" validate:"omitempty,username"`
	DisplayName     *string `json:"display_name" validate:"omitempty,min=1,max=32"`
	Email           *string `json:"email" validate:"omitempty,email,max=254"`
	Password        *string `json:"password" validate:"omitempty,min=8,max=100"`
}

type UserDeleteReq struct {
	Password string `json:"password" validate:"required,max=100"`
}

type Settings struct {
	UserID snowflake.ID `json:"user_id"`
	Theme  string       `json:"theme"`
	Status int          `json:"status"`
}

type SettingsReq struct {
	Theme  *string `json:"theme" validate:"omitempty,oneof=dark light"`
	Status *int    `json:"status" validate:"omitempty,min=0,max=3"`
}

// Device is a logged in session. Tokens are bound to one.
type Device struct {
	ID     snowflake.ID `json:"id"`
	UserID snowflake.ID `json:"user_id"`
}
