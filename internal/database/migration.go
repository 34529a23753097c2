package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"userservice/pkg/database"
	"userservice/pkg/logger"
)

type Migration struct {
	Name string
	Up   func(ctx context.Context, tx *sql.Tx, d Dialect) error
}

// Dialect carries the DDL fragments that differ between sqlite3 and postgres.
type Dialect struct {
	AutoIncrementPK string
}

func DialectFor(driver string) Dialect {
	if driver == database.DriverPostgres {
		return Dialect{AutoIncrementPK: "BIGSERIAL PRIMARY KEY"}
	}
	return Dialect{AutoIncrementPK: "INTEGER PRIMARY KEY AUTOINCREMENT"}
}

type MigrationService struct {
	db      *sql.DB
	dialect Dialect
	logger  logger.Logger
}

func NewMigrationService(db *sql.DB, driver string, logger logger.Logger) *MigrationService {
	return &MigrationService{
		db:      db,
		dialect: DialectFor(driver),
		logger:  logger,
	}
}

func Migrations() []Migration {
	return []Migration{
		{Name: "create_users_table", Up: createUsersTable},
		{Name: "create_users_active_index", Up: createUsersActiveIndex},
	}
}

func (m *MigrationService) initMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS migrations (
        id %s,
        name TEXT NOT NULL UNIQUE,
        applied_at TIMESTAMP NOT NULL
    )`, m.dialect.AutoIncrementPK)

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		m.logger.Error("Failed to create migrations table", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (m *MigrationService) IsMigrationApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM migrations WHERE name = $1`, name).Scan(&count)
	if err != nil {
		m.logger.Error("Failed to check migration state", map[string]interface{}{"name": name, "error": err.Error()})
		return false, err
	}
	return count > 0, nil
}

func (m *MigrationService) ApplyMigration(ctx context.Context, mig Migration) (err error) {
	applied, err := m.IsMigrationApplied(ctx, mig.Name)
	if err != nil {
		return err
	}
	if applied {
		m.logger.Debug("Migration already applied", map[string]interface{}{"name": mig.Name})
		return nil
	}

	m.logger.Info("Applying migration", map[string]interface{}{"name": mig.Name})

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			m.logger.Error("Migration rolled back", map[string]interface{}{"name": mig.Name, "error": err.Error()})
		}
	}()

	if err = mig.Up(ctx, tx, m.dialect); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO migrations (name, applied_at) VALUES ($1, $2)`, mig.Name, time.Now().UTC()); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	m.logger.Info("Migration applied", map[string]interface{}{"name": mig.Name})
	return nil
}

func (m *MigrationService) RunMigrations(ctx context.Context) error {
	if err := m.initMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, mig := range Migrations() {
		if err := m.ApplyMigration(ctx, mig); err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.Name, err)
		}
	}

	return nil
}

func createUsersTable(ctx context.Context, tx *sql.Tx, d Dialect) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS users (
        id %s,
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        phone TEXT NOT NULL DEFAULT '',
        role TEXT NOT NULL DEFAULT 'USER',
        active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at TIMESTAMP NOT NULL,
        updated_at TIMESTAMP NOT NULL
    )`, d.AutoIncrementPK)

	_, err := tx.ExecContext(ctx, query)
	return err
}

func createUsersActiveIndex(ctx context.Context, tx *sql.Tx, _ Dialect) error {
	_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS users_active_idx ON users (active)`)
	return err
}
