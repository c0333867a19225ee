package sqlstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

//go:embed migrations
var migrations embed.FS

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// Open connects and pings the database.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	if err := checkDriver(opts.Driver); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", opts.Driver, err)
	}

	switch opts.Driver {
	case DriverSQLite:
		// one writer; concurrent callers queue on the pool instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	default:
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", opts.Driver, err)
	}
	return db, nil
}

// Migrate applies every pending up migration for the driver over a dedicated
// connection. It returns the schema version reached.
func Migrate(opts Options) (uint, error) {
	if err := checkDriver(opts.Driver); err != nil {
		return 0, err
	}
	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: open for migrate: %w", err)
	}

	src, err := iofs.New(migrations, "migrations/"+opts.Driver)
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("sqlstore: migration source: %w", err)
	}

	var target database.Driver
	switch opts.Driver {
	case DriverMySQL:
		target, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	}
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("sqlstore: migration target: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, opts.Driver, target)
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("sqlstore: migrate init: %w", err)
	}
	defer func() {
		_, _ = m.Close()
		_ = db.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("sqlstore: migrate up: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: migrate version: %w", err)
	}
	return version, nil
}

func checkDriver(driver string) error {
	switch driver {
	case DriverMySQL, DriverSQLite:
		return nil
	}
	return fmt.Errorf("sqlstore: unsupported driver %q", driver)
}
