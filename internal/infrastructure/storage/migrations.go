package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_vendors_table",
		Up:      migration002AddVendorsTable,
	},
	{
		Version: 3,
		Name:    "add_attachment_uploaded_column",
		Up:      migration003AddAttachmentUploadedColumn,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'application/pdf',
			company_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'uploaded',
			object_uri TEXT NOT NULL DEFAULT '',
			uploaded_at TIMESTAMP NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS reconcile_runs (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id),
			account_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'running',
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			total_transactions INTEGER NOT NULL DEFAULT 0,
			matched INTEGER NOT NULL DEFAULT 0,
			high_confidence INTEGER NOT NULL DEFAULT 0,
			with_check_images INTEGER NOT NULL DEFAULT 0,
			match_rate TEXT NOT NULL DEFAULT '0%',
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS match_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES reconcile_runs(id),
			document_id TEXT NOT NULL REFERENCES documents(id),
			txn_date TIMESTAMP NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL,
			txn_type TEXT NOT NULL DEFAULT 'unknown',
			check_number TEXT NOT NULL DEFAULT '',
			matched BOOLEAN NOT NULL DEFAULT 0,
			feed_transaction_id TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			has_check_image BOOLEAN NOT NULL DEFAULT 0,
			check_image_ref TEXT NOT NULL DEFAULT '',
			vendor_id TEXT NOT NULL DEFAULT '',
			vendor_name TEXT NOT NULL DEFAULT '',
			reasons_json TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_run ON match_records(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_records_document ON match_records(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_document ON reconcile_runs(document_id)`,
	}

	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddVendorsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		qbo_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	return err
}

func migration003AddAttachmentUploadedColumn(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE match_records ADD COLUMN attachment_uploaded BOOLEAN NOT NULL DEFAULT 0`)
	return err
}
