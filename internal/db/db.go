// Package db opens the relational store used for run history and the dedup
// ledger, and keeps its schema current.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// import db drivers
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/montarelab/rev-ai/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// MemoryPath opens a private in-memory sqlite database.
	MemoryPath = ":memory:"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed schema_sqlite.sql
var sqliteSchema string

// DB is a wrapper around the sqlx.DB connection pool.
type DB struct {
	*sqlx.DB
	Driver string
}

// NewDatabase opens the configured database and applies the schema.
func NewDatabase(cfg *config.DBConfig) (*DB, func(), error) {
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(cfg)
	case DriverSQLite, "":
		return OpenSQLite(cfg.Path)
	default:
		return nil, func() {}, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func openPostgres(cfg *config.DBConfig) (*DB, func(), error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, func() {}, fmt.Errorf("failed to ping database: %w", err)
	}

	return finish(&DB{DB: conn, Driver: DriverPostgres})
}

// OpenSQLite opens (creating if needed) a sqlite database at path.
// MemoryPath gives a throwaway database, which is what tests use.
func OpenSQLite(path string) (*DB, func(), error) {
	if path == "" {
		path = MemoryPath
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, func() {}, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	conn.SetMaxOpenConns(1)

	return finish(&DB{DB: conn, Driver: DriverSQLite})
}

func finish(db *DB) (*DB, func(), error) {
	slog.Debug("running database migrations", "driver", db.Driver)
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, func() {}, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database connection", "error", err)
		}
	}, nil
}

// RunMigrations brings the schema up to date. Postgres uses the embedded
// golang-migrate files; sqlite applies the idempotent schema directly.
func (db *DB) RunMigrations() error {
	if db.Driver == DriverSQLite {
		if _, err := db.Exec(sqliteSchema); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
		return nil
	}

	migrator, err := db.newMigrator()
	if err != nil {
		return err
	}

	_, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("failed to apply migrations: database is in dirty state, fix it with 'migrate force <version>'")
	}

	err = migrator.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (db *DB) newMigrator() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return migrator, nil
}
