package database

import (
	"embed"
	"errors"
	"fmt"

	"habittracker/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// migrator URLs
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func (db *DB) migrate(dsn string) error {
	dir := "migrations/sqlite"
	if db.isPostgres() {
		dir = "migrations/postgres"
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	var m *migrate.Migrate
	if db.isPostgres() {
		// Отдельное соединение мигратора, закрывается после применения
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
		if err != nil {
			return fmt.Errorf("init migrator: %w", err)
		}
		defer m.Close()
	} else {
		// m.Close() закрыл бы общий *sql.DB, поэтому здесь не вызывается
		driver, derr := sqlite3.WithInstance(db.DB.DB, &sqlite3.Config{})
		if derr != nil {
			return fmt.Errorf("init sqlite migration driver: %w", derr)
		}
		m, err = migrate.NewWithInstance("iofs", src, config.DriverSQLite, driver)
		if err != nil {
			return fmt.Errorf("init migrator: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err == nil {
		db.logger.Debug().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
	}
	return nil
}
