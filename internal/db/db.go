package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/pkger"
	"github.com/markbates/pkger"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"gitlab.com/derailed/derailed/internal/domain"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/snowflake"
	"golang.org/x/crypto/bcrypt"
)

const migrationsURL = "pkger:///migrations"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type SharedDB struct {
	db         DBTX
	pool       *pgxpool.Pool
	config     *models.EnvConfig
	bcryptCost int
	ids        domain.IDGenerator
	events     models.NotificationService
	purger     domain.MessagePurger
}

type Option func(*SharedDB)

func WithNotificationService(n models.NotificationService) Option {
	return func(sdb *SharedDB) {
		sdb.events = n
	}
}

func WithPurger(p domain.MessagePurger) Option {
	return func(sdb *SharedDB) {
		sdb.purger = p
	}
}

func init() {
	pkger.Include("/migrations")
}

func newMigrate(dbURL string) (*migrate.Migrate, error) {
	m, err := migrate.New(migrationsURL, dbURL)
	if err != nil {
		return nil, fmt.Errorf("Error reading migrations: %w", err)
	}
	return m, nil
}

func MigrateUp(dbURL string) error {
	m, err := newMigrate(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("While migrating up: %w", err)
	}
	return nil
}
func MigrateDown(dbURL string) error {
	m, err := newMigrate(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	err = m.Down()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("While migrating down: %w", err)
	}
	return nil
}
func Drop(dbURL string) error {
	m, err := newMigrate(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	err = m.Drop()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("While dropping: %w", err)
	}
	return nil
}

func Connect(ctx context.Context, config *models.EnvConfig, ids domain.IDGenerator, opts ...Option) (*SharedDB, error) {
	pool, err := pgxpool.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to postgres: %w", err)
	}
	bcryptCost := bcrypt.DefaultCost + 2
	if config.Debug {
		bcryptCost = bcrypt.MinCost
	}

	sdb := &SharedDB{
		db:         pool,
		pool:       pool,
		config:     config,
		bcryptCost: bcryptCost,
		ids:        ids,
		events:     discard{},
		purger:     discard{},
	}
	for _, opt := range opts {
		opt(sdb)
	}
	return sdb, nil
}

func (sdb *SharedDB) Close() {
	if sdb.pool != nil {
		sdb.pool.Close()
	}
}

func (sdb *SharedDB) Ping(ctx context.Context) error {
	_, err := sdb.db.Exec(ctx, "SELECT 1")
	return err
}

func execTx(ctx context.Context, db DBTX, txFunc func(context.Context, DBTX) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	err = txFunc(ctx, tx)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// notFound turns pgx.ErrNoRows into models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

func uniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr, true
	}
	return nil, false
}

func foreignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

type discard struct{}

func (discard) PublishGuild(context.Context, snowflake.ID, models.EventType, interface{})   {}
func (discard) PublishUser(context.Context, snowflake.ID, models.EventType, interface{})    {}
func (discard) MultiPublish(context.Context, []snowflake.ID, models.EventType, interface{}) {}
func (discard) PurgeChannel(context.Context, snowflake.ID) error                            { return nil }
