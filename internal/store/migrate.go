package store

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateURL rewrites a postgres:// DSN to the pgx5:// scheme the migrate
// driver registers under.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// runMigrations applies every embedded up migration not yet recorded in
// schema_migrations.
func runMigrations(dsn string) error {
	if dsn == "" {
		return eris.New("postgres: migrate: no database url")
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: migrate: open embedded source")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return eris.Wrap(err, "postgres: migrate: init")
	}
	defer m.Close() //nolint:errcheck

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return eris.Wrap(err, "postgres: migrate: read version")
	}
	if dirty {
		return eris.Errorf("postgres: migrate: database is dirty at version %d", version)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		zap.L().Info("postgres: schema up to date", zap.Uint("version", version))
		return nil
	case err != nil:
		return eris.Wrap(err, "postgres: migrate: up")
	}

	newVersion, _, _ := m.Version()
	zap.L().Info("postgres: schema migrated", zap.Uint("from", version), zap.Uint("to", newVersion))
	return nil
}
