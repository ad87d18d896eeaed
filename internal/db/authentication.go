package db

import (
	"context"
	"errors"
	"regexp"
	"unicode"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"gitlab.com/derailed/derailed/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_.]{1,32}$`)

func ValidateUsername(username string) bool {
	return usernameRe.MatchString(username)
}

func (sdb *SharedDB) CreateUser(ctx context.Context, req models.UserReq) (*models.User, error) {
	if !ValidateUsername(req.Username) || !utils.ValidateEmail(req.Email) {
		return nil, models.ErrInvalidFormat
	}
	if !validatePasswd(req.Password) {
		return nil, models.ErrWeakPasswd
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), sdb.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       sdb.ids.Next(),
		Username: req.Username,
		Email:    req.Email,
		Flags:    models.DefaultUserFlags,
	}
	err = execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		err := insertUser(ctx, tx, user, hash)
		if pgErr, ok := uniqueViolation(err); ok {
			if pgErr.ConstraintName == "users_email_key" {
				return models.ErrEmailAlreadyUsed
			}
			return models.ErrUsernameTaken
		} else if err != nil {
			return err
		}

		sql, args, _ := psql.
			Insert("settings").
			Columns("user_id").
			Values(user.ID).
			ToSql()
		_, err = tx.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and registers a new device for the user.
func (sdb *SharedDB) Login(ctx context.Context, email string, passwd string) (*models.Device, error) {
	sql, args, _ := psql.
		Select("id", "password").
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()

	var data struct {
		ID       snowflake.ID
		Password string
	}
	err := pgxscan.Get(ctx, sdb.db, &data, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, models.ErrBadPassword
	} else if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(data.Password), []byte(passwd)) != nil {
		return nil, models.ErrBadPassword
	}

	device := &models.Device{ID: sdb.ids.Next(), UserID: data.ID}
	sql, args, _ = psql.
		Insert("devices").
		Columns("id", "user_id").
		Values(device.ID, device.UserID).
		ToSql()

	_, err = sdb.db.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return device, nil
}

// Signout removes the device a token was issued for.
func (sdb *SharedDB) Signout(ctx context.Context, deviceID snowflake.ID) error {
	sql, args, _ := psql.
		Delete("devices").
		Where(sq.Eq{"id": deviceID}).
		ToSql()
	_, err := sdb.db.Exec(ctx, sql, args...)
	return err
}

func validatePasswd(passwd string) bool {
	if len(passwd) < 8 || len(passwd) > 100 {
		return false
	}

	containsLetter := false
	containsNumber := false
	for _, r := range passwd {
		if !unicode.IsPrint(r) {
			return false
		}

		if unicode.IsLetter(r) {
			containsLetter = true
		} else if unicode.IsNumber(r) {
			containsNumber = true
		}
	}
	return containsLetter && containsNumber
}

func checkPasswd(ctx context.Context, db DBTX, userID snowflake.ID, passwd string) error {
	var hash string
	sql, args, _ := psql.
		Select("password").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	err := db.QueryRow(ctx, sql, args...).Scan(&hash)
	if err != nil {
		return notFound(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passwd)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.ErrBadPassword
		}
		return err
	}
	return nil
}

func insertUser(ctx context.Context, db DBTX, user *models.User, hash []byte) error {
	sql, args, _ := psql.
		Insert("users").
		Columns("id", "username", "email", "password", "flags").
		Values(user.ID, user.Username, user.Email, string(hash), user.Flags).
		ToSql()

	_, err := db.Exec(ctx, sql, args...)
	return err
}
