package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order.
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_match_runs",
		Up:      migration002AddMatchRuns,
	},
	{
		Version: 3,
		Name:    "add_manual_unmatches",
		Up:      migration003AddManualUnmatches,
	},
}

// runMigrations executes all pending migrations.
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range allMigrations {
		if applied[m.Version] {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d (%s): begin: %w", m.Version, m.Name, err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): record: %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): commit: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
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
	_, err := tx.Exec(`
		CREATE TABLE statements (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			home_currency TEXT NOT NULL DEFAULT 'EUR',
			imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			date TIMESTAMP,
			amount TEXT NOT NULL,
			raw_description TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT 'EUR',
			foreign_amount TEXT,
			foreign_currency TEXT,
			matched INTEGER NOT NULL DEFAULT 0,
			matched_receipt_id TEXT,
			confidence INTEGER NOT NULL DEFAULT 0,
			no_receipt_needed INTEGER NOT NULL DEFAULT 0,
			manually_unmatched INTEGER NOT NULL DEFAULT 0,
			UNIQUE (statement_id, row_index)
		);
		CREATE INDEX idx_transactions_statement ON transactions(statement_id);

		CREATE TABLE receipts (
			id TEXT PRIMARY KEY,
			statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			amount TEXT,
			date TIMESTAMP,
			date_corrected INTEGER NOT NULL DEFAULT 0,
			merchant TEXT NOT NULL DEFAULT '',
			currency TEXT NOT NULL DEFAULT 'EUR',
			source_is_image INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_receipts_statement ON receipts(statement_id);
	`)
	return err
}

func migration002AddMatchRuns(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE match_runs (
			id TEXT PRIMARY KEY,
			statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			total_transactions INTEGER NOT NULL,
			matched INTEGER NOT NULL,
			unmatched INTEGER NOT NULL,
			match_rate REAL NOT NULL,
			average_confidence REAL NOT NULL
		);
		CREATE INDEX idx_match_runs_statement ON match_runs(statement_id);

		CREATE TABLE match_assignments (
			run_id TEXT NOT NULL REFERENCES match_runs(id) ON DELETE CASCADE,
			transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
			confidence INTEGER NOT NULL,
			UNIQUE (run_id, transaction_id),
			UNIQUE (run_id, receipt_id)
		);
	`)
	return err
}

func migration003AddManualUnmatches(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE manual_unmatches (
			statement_id TEXT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
			transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (transaction_id, receipt_id)
		);
	`)
	return err
}
