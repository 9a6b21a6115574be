package storage

import (
	"database/sql"
	"fmt"
)

// SQLiteMigration represents a database schema migration for SQLite
type SQLiteMigration struct {
	Version int
	Up      string
	Down    string // Optional rollback SQL
}

// sqliteMigrations contains all SQLite database migrations in chronological order
var sqliteMigrations = []SQLiteMigration{
	{
		Version: 1,
		Up: `CREATE TABLE metrics (
			store TEXT NOT NULL,
			lifetime TEXT NOT NULL CHECK (lifetime IN ('ping', 'application', 'user')),
			identifier TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (store, lifetime, identifier)
		);

		CREATE INDEX idx_metrics_lifetime ON metrics(lifetime);`,
		Down: `DROP TABLE IF EXISTS metrics;`,
	},
	{
		Version: 2,
		Up: `CREATE TABLE ping_sequences (
			ping TEXT PRIMARY KEY,
			seq INTEGER NOT NULL
		);

		CREATE TABLE pending_uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL UNIQUE,
			ping_name TEXT NOT NULL,
			path TEXT NOT NULL,
			body BLOB NOT NULL,
			headers TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			not_before INTEGER NOT NULL DEFAULT 0,
			enqueued_at INTEGER NOT NULL
		);`,
		Down: `DROP TABLE IF EXISTS pending_uploads; DROP TABLE IF EXISTS ping_sequences;`,
	},
}

// runSQLiteMigrations applies all pending SQLite migrations to the database
func runSQLiteMigrations(db *sql.DB) error {
	if err := createSQLiteMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentSQLiteVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range sqliteMigrations {
		if migration.Version <= currentVersion {
			continue // Migration already applied
		}

		if err := applySQLiteMigration(db, migration); err != nil {
			return fmt.Errorf("failed to apply migration version %d: %w", migration.Version, err)
		}
	}

	return nil
}

// createSQLiteMigrationsTable creates the schema_migrations table for tracking applied migrations
func createSQLiteMigrationsTable(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	)`

	_, err := db.Exec(query)
	return err
}

// getCurrentSQLiteVersion returns the highest applied migration version
func getCurrentSQLiteVersion(db *sql.DB) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`

	var version int
	err := db.QueryRow(query).Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// applySQLiteMigration applies a single migration within a transaction
func applySQLiteMigration(db *sql.DB, migration SQLiteMigration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// GetSQLiteSchemaVersion returns the current schema version (for testing/debugging)
func GetSQLiteSchemaVersion(db *sql.DB) (int, error) {
	return getCurrentSQLiteVersion(db)
}
