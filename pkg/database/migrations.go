// Package database applies the dashboard schema and seed migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/ekaya-inc/gamedash/migrations"
	"github.com/ekaya-inc/gamedash/pkg/adapters/datasource"
)

// Direction selects which way migrations run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// SupportsDialect reports whether embedded migrations exist for the dialect.
func SupportsDialect(dialect string) bool {
	return dialect == "mysql" || dialect == "sqlite"
}

// RunMigrations executes pending database migrations for the dialect.
// It is idempotent and safe to call multiple times - only pending migrations will be executed.
// MySQL connections must be opened with multiStatements=true.
func RunMigrations(db *sql.DB, dialect string, logger *zap.Logger) error {
	return Migrate(db, dialect, Up, logger)
}

// Migrate moves the schema all the way up or all the way down.
func Migrate(db *sql.DB, dialect string, dir Direction, logger *zap.Logger) error {
	driver, err := newDriver(db, dialect)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.FS, dialect)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply (database up-to-date)", zap.String("direction", string(dir)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if errors.Is(verr, migrate.ErrNilVersion) {
		logger.Info("Rolled back all migrations")
		return nil
	}
	logger.Info("Applied migrations successfully",
		zap.String("direction", string(dir)),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func newDriver(db *sql.DB, dialect string) (migratedb.Driver, error) {
	var (
		driver migratedb.Driver
		err    error
	)
	switch dialect {
	case "mysql":
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	case "sqlite":
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	return driver, nil
}

// MigrateWith runs migrations over a freshly acquired session, so the schema
// can be managed through the same tunnel the dashboard uses. MySQL endpoints
// need the multiStatements=true DSN parameter.
func MigrateWith(ctx context.Context, c datasource.Connector, dir Direction, logger *zap.Logger) error {
	dialect := c.Dialect().Name()
	if !SupportsDialect(dialect) {
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	return datasource.WithSession(ctx, c, logger, func(sess datasource.Session) error {
		p, ok := sess.(datasource.DBProvider)
		if !ok {
			return fmt.Errorf("session %s does not expose a database handle", sess.ID())
		}
		return Migrate(p.DB(), dialect, dir, logger)
	})
}
