package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"habittracker/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

type DB struct {
	*sqlx.DB
	driver string
	path   string
	logger *zerolog.Logger
}

// NewDB opens (and migrates) a SQLite database at path. ":memory:" is supported.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := open(config.DriverSQLite, dsn, logger)
	if err != nil {
		return nil, err
	}
	db.path = path
	return db, nil
}

// Open selects the driver from config.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	if cfg.Driver == config.DriverPostgres {
		db, err := open(config.DriverPostgres, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return db, nil
	}
	return NewDB(cfg.Path, logger)
}

func open(driver, dsn string, logger *zerolog.Logger) (*DB, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == config.DriverSQLite {
		// Одно соединение: :memory: живет в рамках соединения, запись в SQLite все равно последовательна
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, driver: driver, logger: logger}
	if err := db.migrate(dsn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("driver", driver).Str("target", redactDSN(dsn)).Msg("database initialized")
	return db, nil
}

// Driver returns the sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) isPostgres() bool {
	return db.driver == config.DriverPostgres
}

// Ready pings the database.
func (db *DB) Ready(ctx context.Context) error {
	return db.PingContext(ctx)
}

func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
