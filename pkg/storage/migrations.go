package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 1

// InitializeDatabase creates the viztrail schema and records the applied
// migration version.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

// applyMigration1 creates the viztrails and workflows tables.
func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	viztrailsTable := `
	CREATE TABLE viztrails (
		id TEXT PRIMARY KEY,
		env_id TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_modified_at TIMESTAMP NOT NULL
	);`

	if _, err := tx.Exec(viztrailsTable); err != nil {
		return fmt.Errorf("failed to create viztrails table: %w", err)
	}

	// Versions are write-once: (viztrail_id, version) is never updated.
	workflowsTable := `
	CREATE TABLE workflows (
		viztrail_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		has_error INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		PRIMARY KEY (viztrail_id, version),
		FOREIGN KEY (viztrail_id) REFERENCES viztrails(id) ON DELETE CASCADE
	);`

	if _, err := tx.Exec(workflowsTable); err != nil {
		return fmt.Errorf("failed to create workflows table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX idx_viztrails_created_at ON viztrails(created_at);",
		"CREATE INDEX idx_workflows_branch ON workflows(viztrail_id, branch_id, version);",
	}

	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
