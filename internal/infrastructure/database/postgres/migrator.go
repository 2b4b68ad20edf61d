package postgres

import (
	"database/sql"
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus is the schema version recorded by golang-migrate.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator binds the embedded migrations to db.
func NewMigrator(db *sql.DB, log logging.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "open embedded migrations")
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "create migrate instance")
	}
	return &Migrator{m: m, logger: log}, nil
}

// OpenMigrator opens a dedicated connection for migrations, since closing a
// Migrator also closes its database handle.
func OpenMigrator(cfg PostgresConfig, log logging.Logger) (*Migrator, error) {
	db, err := sqlOpen("pgx", buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "open migration connection")
	}
	mg, err := NewMigrator(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return mg, nil
}

// Up applies all pending migrations. No pending migration is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "apply migrations")
	}
	st, err := mg.Status()
	if err != nil {
		return err
	}
	mg.logger.Info("Database migrations completed",
		logging.Int64("version", int64(st.Version)),
		logging.Bool("dirty", st.Dirty))
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.New(errors.ErrCodeBadRequest, "steps must be greater than 0")
	}
	if err := mg.m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "roll back %d step(s)", steps)
	}
	return nil
}

// Status returns the applied version; an empty schema reports version 0.
func (mg *Migrator) Status() (MigrationStatus, error) {
	v, dirty, err := mg.m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "read migration version")
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// Force sets the version without running migrations, to recover a dirty state.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "force version %d", version)
	}
	return nil
}

// Close releases the migration source and closes the database handle passed
// to NewMigrator.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return stderrors.Join(srcErr, dbErr)
}
