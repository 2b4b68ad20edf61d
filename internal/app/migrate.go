package app

import (
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/postgres"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
)

// Migrate applies the pending history schema migrations on a dedicated
// connection.
func Migrate(cfg postgres.PostgresConfig, logger logging.Logger) error {
	mg, err := postgres.OpenMigrator(cfg, logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}

// MigrationStatus reports the applied schema version.
func MigrationStatus(cfg postgres.PostgresConfig, logger logging.Logger) (postgres.MigrationStatus, error) {
	mg, err := postgres.OpenMigrator(cfg, logger)
	if err != nil {
		return postgres.MigrationStatus{}, err
	}
	defer mg.Close()
	return mg.Status()
}

// MigrateDown rolls back steps migrations.
func MigrateDown(cfg postgres.PostgresConfig, steps int, logger logging.Logger) error {
	mg, err := postgres.OpenMigrator(cfg, logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Down(steps)
}
