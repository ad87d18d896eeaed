package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"gitlab.com/derailed/derailed/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// UserH is an authenticated user, bound to the device the token was issued for.
type UserH struct {
	id       snowflake.ID
	deviceID snowflake.ID
	sdb      *SharedDB
}

// GetUserH authenticates a verified token: the device must still exist.
func (sdb *SharedDB) GetUserH(ctx context.Context, userID, deviceID snowflake.ID) (*UserH, error) {
	sql, args, _ := psql.
		Select("1").
		From("devices").
		Where(sq.Eq{"id": deviceID, "user_id": userID}).
		ToSql()

	var one int
	err := sdb.db.QueryRow(ctx, sql, args...).Scan(&one)
	if err != nil {
		return nil, notFound(err)
	}
	return &UserH{id: userID, deviceID: deviceID, sdb: sdb}, nil
}

func (h UserH) ID() snowflake.ID {
	return h.id
}
func (h UserH) DeviceID() snowflake.ID {
	return h.deviceID
}

func (h UserH) Read(ctx context.Context) (*models.User, error) {
	return readUser(ctx, h.sdb.db, h.id)
}

func (sdb *SharedDB) ReadPublicUser(ctx context.Context, userID snowflake.ID) (*models.UserView, error) {
	user, err := readUser(ctx, sdb.db, userID)
	if err != nil {
		return nil, err
	}
	view := user.View()
	return &view, nil
}

// Update changes the profile. The current password is always required.
// Changing the password signs out every other device.
func (h UserH) Update(ctx context.Context, req models.UserUpdateReq) (*models.User, error) {
	err := execTx(ctx, h.sdb.db, func(ctx context.Context, tx DBTX) error {
		if err := checkPasswd(ctx, tx, h.id, req.CurrentPassword); err != nil {
			return err
		}

		q := psql.Update("users").Where(sq.Eq{"id": h.id})
		changed := false
		if req.Username != nil {
			if !ValidateUsername(*req.Username) {
				return models.ErrInvalidFormat
			}
			q = q.Set("username", *req.Username)
			changed = true
		}
		if req.DisplayName != nil {
			q = q.Set("display_name", *req.DisplayName)
			changed = true
		}
		if req.Email != nil {
			if !utils.ValidateEmail(*req.Email) {
				return models.ErrInvalidFormat
			}
			q = q.Set("email", *req.Email)
			changed = true
		}
		if req.Password != nil {
			if !validatePasswd(*req.Password) {
				return models.ErrWeakPasswd
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), h.sdb.bcryptCost)
			if err != nil {
				return err
			}
			q = q.Set("password", string(hash))
			changed = true
		}
		if !changed {
			return nil
		}

		sql, args, _ := q.ToSql()
		_, err := tx.Exec(ctx, sql, args...)
		if pgErr, ok := uniqueViolation(err); ok {
			if pgErr.ConstraintName == "users_email_key" {
				return models.ErrEmailAlreadyUsed
			}
			return models.ErrUsernameTaken
		} else if err != nil {
			return err
		}

		if req.Password != nil {
			sql, args, _ = psql.
				Delete("devices").
				Where(sq.And{sq.Eq{"user_id": h.id}, sq.NotEq{"id": h.deviceID}}).
				ToSql()
			_, err = tx.Exec(ctx, sql, args...)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	user, err := h.Read(ctx)
	if err != nil {
		return nil, err
	}
	h.sdb.events.PublishUser(ctx, h.id, models.EventUserUpdate, user)
	if guildIDs, err := h.ListMyGuildIDs(ctx); err == nil {
		h.sdb.events.MultiPublish(ctx, guildIDs, models.EventUserUpdate, user.View())
	}
	return user, nil
}

// Delete removes the account. Owners must get rid of their guilds first.
func (h UserH) Delete(ctx context.Context, passwd string) error {
	err := execTx(ctx, h.sdb.db, func(ctx context.Context, tx DBTX) error {
		if err := checkPasswd(ctx, tx, h.id, passwd); err != nil {
			return err
		}
		var owned int
		sql, args, _ := psql.
			Select("COUNT(*)").
			From("guilds").
			Where(sq.Eq{"owner_id": h.id}).
			ToSql()
		if err := tx.QueryRow(ctx, sql, args...).Scan(&owned); err != nil {
			return err
		}
		if owned > 0 {
			return models.ErrOwnsGuilds
		}

		sql, args, _ = psql.Delete("users").Where(sq.Eq{"id": h.id}).ToSql()
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return err
	}
	h.sdb.events.PublishUser(ctx, h.id, models.EventUserDelete, models.Deleted{ID: h.id})
	return nil
}

func (h UserH) ListMyGuilds(ctx context.Context) ([]models.Guild, error) {
	sql, args, _ := selectGuild.
		Join("guild_members ON guild_members.guild_id = guilds.id").
		Where(sq.Eq{"guild_members.user_id": h.id}).
		OrderBy("guilds.id").
		ToSql()

	guilds := []models.Guild{}
	err := pgxscan.Select(ctx, h.sdb.db, &guilds, sql, args...)
	if err != nil {
		return nil, err
	}
	return guilds, nil
}

func (h UserH) ListMyGuildIDs(ctx context.Context) ([]snowflake.ID, error) {
	sql, args, _ := psql.
		Select("guild_id").
		From("guild_members").
		Where(sq.Eq{"user_id": h.id}).
		ToSql()

	ids := []snowflake.ID{}
	err := pgxscan.Select(ctx, h.sdb.db, &ids, sql, args...)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (h UserH) ReadSettings(ctx context.Context) (*models.Settings, error) {
	sql, args, _ := psql.
		Select("user_id", "theme", "status").
		From("settings").
		Where(sq.Eq{"user_id": h.id}).
		ToSql()
	settings := &models.Settings{}
	err := pgxscan.Get(ctx, h.sdb.db, settings, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return settings, nil
}

func (h UserH) UpdateSettings(ctx context.Context, req models.SettingsReq) (*models.Settings, error) {
	q := psql.Update("settings").Where(sq.Eq{"user_id": h.id})
	if req.Theme != nil {
		q = q.Set("theme", *req.Theme)
	}
	if req.Status != nil {
		q = q.Set("status", *req.Status)
	}
	if req.Theme != nil || req.Status != nil {
		sql, args, _ := q.ToSql()
		if _, err := h.sdb.db.Exec(ctx, sql, args...); err != nil {
			return nil, err
		}
	}
	return h.ReadSettings(ctx)
}

func readUser(ctx context.Context, db DBTX, userID snowflake.ID) (*models.User, error) {
	user := &models.User{}
	sql, args, _ := psql.
		Select("id", "username", "display_name", "avatar", "email", "flags", "bot", "system").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()

	err := pgxscan.Get(ctx, db, user, sql, args...)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}
