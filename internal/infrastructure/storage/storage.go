// Package storage persists statements, transactions, receipts and match
// results in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// Storage provides database access for statements and match results.
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new storage instance with an SQLite database.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateStatement registers a statement and returns it.
func (s *Storage) CreateStatement(name, homeCurrency string) (*Statement, error) {
	st := &Statement{
		ID:           uuid.NewString(),
		Name:         name,
		HomeCurrency: homeCurrency,
		ImportedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO statements (id, name, home_currency, imported_at) VALUES (?, ?, ?, ?)`,
		st.ID, st.Name, st.HomeCurrency, st.ImportedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create statement %q: %w", name, err)
	}
	return st, nil
}

// GetStatement loads one statement by id.
func (s *Storage) GetStatement(id string) (*Statement, error) {
	st := &Statement{}
	err := s.db.QueryRow(
		`SELECT id, name, home_currency, imported_at FROM statements WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.HomeCurrency, &st.ImportedAt)
	if err != nil {
		return nil, fmt.Errorf("get statement %s: %w", id, err)
	}
	return st, nil
}

// ListStatements returns all statements, newest first.
func (s *Storage) ListStatements() ([]*Statement, error) {
	rows, err := s.db.Query(
		`SELECT id, name, home_currency, imported_at FROM statements ORDER BY imported_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statements []*Statement
	for rows.Next() {
		st := &Statement{}
		if err := rows.Scan(&st.ID, &st.Name, &st.HomeCurrency, &st.ImportedAt); err != nil {
			return nil, err
		}
		statements = append(statements, st)
	}
	return statements, rows.Err()
}

// InsertTransactions stores parsed statement rows. IDs are assigned when
// empty.
func (s *Storage) InsertTransactions(statementID string, txs []*model.Transaction) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := dbTx.Prepare(`
		INSERT INTO transactions (
			id, statement_id, row_index, date, amount, raw_description, currency,
			foreign_amount, foreign_currency,
			matched, matched_receipt_id, confidence, no_receipt_needed, manually_unmatched
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = dbTx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		_, err := stmt.Exec(
			tx.ID, statementID, tx.RowIndex, nullTime(tx.Date), tx.Amount.String(),
			tx.RawDescription, string(tx.Currency),
			nullDecimal(tx.ForeignAmount), nullString(string(tx.ForeignCurrency)),
			tx.Matched, nullString(tx.MatchedReceiptID), tx.Confidence,
			tx.NoReceiptNeeded, tx.ManuallyUnmatched,
		)
		if err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("insert transaction row %d: %w", tx.RowIndex, err)
		}
	}
	return dbTx.Commit()
}

// GetTransactions loads a statement's rows in stable source order.
func (s *Storage) GetTransactions(statementID string) ([]*model.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, row_index, date, amount, raw_description, currency,
		       foreign_amount, foreign_currency,
		       matched, matched_receipt_id, confidence, no_receipt_needed, manually_unmatched
		FROM transactions WHERE statement_id = ? ORDER BY row_index`, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*model.Transaction
	for rows.Next() {
		tx := &model.Transaction{}
		var date sql.NullTime
		var amount, currency string
		var fAmount, fCurrency, receiptID sql.NullString
		err := rows.Scan(
			&tx.ID, &tx.RowIndex, &date, &amount, &tx.RawDescription, &currency,
			&fAmount, &fCurrency,
			&tx.Matched, &receiptID, &tx.Confidence, &tx.NoReceiptNeeded, &tx.ManuallyUnmatched,
		)
		if err != nil {
			return nil, err
		}
		if date.Valid {
			tx.Date = date.Time
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: bad amount %q: %w", tx.ID, amount, err)
		}
		tx.Currency = model.Currency(currency)
		if fAmount.Valid {
			d, err := decimal.NewFromString(fAmount.String)
			if err != nil {
				return nil, fmt.Errorf("transaction %s: bad foreign amount %q: %w", tx.ID, fAmount.String, err)
			}
			tx.ForeignAmount = &d
		}
		if fCurrency.Valid {
			tx.ForeignCurrency = model.Currency(fCurrency.String)
		}
		tx.MatchedReceiptID = receiptID.String
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// GetTransaction loads one transaction and the statement it belongs to.
func (s *Storage) GetTransaction(transactionID string) (*model.Transaction, string, error) {
	var statementID string
	err := s.db.QueryRow(
		`SELECT statement_id FROM transactions WHERE id = ?`, transactionID,
	).Scan(&statementID)
	if err != nil {
		return nil, "", fmt.Errorf("get transaction %s: %w", transactionID, err)
	}
	txs, err := s.GetTransactions(statementID)
	if err != nil {
		return nil, "", err
	}
	for _, tx := range txs {
		if tx.ID == transactionID {
			return tx, statementID, nil
		}
	}
	return nil, "", fmt.Errorf("transaction %s not found", transactionID)
}

// InsertReceipts stores extraction results for a statement's receipt pool.
func (s *Storage) InsertReceipts(statementID string, receipts []*model.Receipt) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := dbTx.Prepare(`
		INSERT INTO receipts (
			id, statement_id, filename, amount, date, date_corrected,
			merchant, currency, source_is_image
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = dbTx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range receipts {
		var date sql.NullTime
		if r.Date != nil {
			date = sql.NullTime{Time: *r.Date, Valid: true}
		}
		_, err := stmt.Exec(
			r.ID, statementID, r.Filename, nullDecimal(r.Amount), date,
			r.DateCorrected, r.Merchant, string(r.Currency), r.SourceIsImage,
		)
		if err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("insert receipt %s: %w", r.ID, err)
		}
	}
	return dbTx.Commit()
}

// GetReceipts loads a statement's receipt pool in insertion order.
func (s *Storage) GetReceipts(statementID string) ([]*model.Receipt, error) {
	rows, err := s.db.Query(`
		SELECT id, filename, amount, date, date_corrected, merchant, currency, source_is_image
		FROM receipts WHERE statement_id = ? ORDER BY rowid`, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*model.Receipt
	for rows.Next() {
		r := &model.Receipt{}
		var amount sql.NullString
		var date sql.NullTime
		var currency string
		err := rows.Scan(&r.ID, &r.Filename, &amount, &date, &r.DateCorrected,
			&r.Merchant, &currency, &r.SourceIsImage)
		if err != nil {
			return nil, err
		}
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("receipt %s: bad amount %q: %w", r.ID, amount.String, err)
			}
			r.Amount = &d
		}
		if date.Valid {
			t := date.Time
			r.Date = &t
		}
		r.Currency = model.Currency(currency)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// ApplyAssignment marks a transaction matched to a receipt. A manual
// assignment also clears the manually_unmatched flag.
func (s *Storage) ApplyAssignment(transactionID, receiptID string, confidence int) error {
	res, err := s.db.Exec(`
		UPDATE transactions
		SET matched = 1, matched_receipt_id = ?, confidence = ?, manually_unmatched = 0
		WHERE id = ?`, receiptID, confidence, transactionID)
	if err != nil {
		return fmt.Errorf("assign receipt %s to transaction %s: %w", receiptID, transactionID, err)
	}
	return requireOneRow(res, transactionID)
}

// ClearMatch removes a transaction's match. When manual is set the row is
// flagged manually_unmatched so automatic matching leaves it alone.
func (s *Storage) ClearMatch(transactionID string, manual bool) error {
	res, err := s.db.Exec(`
		UPDATE transactions
		SET matched = 0, matched_receipt_id = NULL, confidence = 0, manually_unmatched = ?
		WHERE id = ?`, manual, transactionID)
	if err != nil {
		return fmt.Errorf("clear match on transaction %s: %w", transactionID, err)
	}
	return requireOneRow(res, transactionID)
}

// RecordManualUnmatch stores a reviewer-rejected pairing. Idempotent.
func (s *Storage) RecordManualUnmatch(statementID, transactionID, receiptID string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO manual_unmatches (statement_id, transaction_id, receipt_id)
		VALUES (?, ?, ?)`, statementID, transactionID, receiptID)
	return err
}

// GetManualUnmatches returns all reviewer-rejected pairings for a statement.
func (s *Storage) GetManualUnmatches(statementID string) ([]model.UnmatchedPair, error) {
	rows, err := s.db.Query(`
		SELECT transaction_id, receipt_id FROM manual_unmatches
		WHERE statement_id = ? ORDER BY transaction_id, receipt_id`, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.UnmatchedPair
	for rows.Next() {
		var p model.UnmatchedPair
		if err := rows.Scan(&p.TransactionID, &p.ReceiptID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// SaveMatchRun stores a run and its assignments atomically, and updates the
// matched transactions' state.
func (s *Storage) SaveMatchRun(run *MatchRun, assignments []model.MatchAssignment) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	_, err = dbTx.Exec(`
		INSERT INTO match_runs (
			id, statement_id, started_at, finished_at,
			total_transactions, matched, unmatched, match_rate, average_confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StatementID, run.StartedAt, run.FinishedAt,
		run.TotalTransactions, run.Matched, run.Unmatched, run.MatchRate, run.AverageConfidence,
	)
	if err != nil {
		_ = dbTx.Rollback()
		return fmt.Errorf("save match run %s: %w", run.ID, err)
	}
	for _, a := range assignments {
		_, err = dbTx.Exec(`
			INSERT INTO match_assignments (run_id, transaction_id, receipt_id, confidence)
			VALUES (?, ?, ?, ?)`, run.ID, a.TransactionID, a.ReceiptID, a.Confidence)
		if err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("save assignment %s -> %s: %w", a.TransactionID, a.ReceiptID, err)
		}
		_, err = dbTx.Exec(`
			UPDATE transactions
			SET matched = 1, matched_receipt_id = ?, confidence = ?
			WHERE id = ?`, a.ReceiptID, a.Confidence, a.TransactionID)
		if err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("update transaction %s: %w", a.TransactionID, err)
		}
	}
	return dbTx.Commit()
}

// GetMatchRuns returns a statement's runs, newest first.
func (s *Storage) GetMatchRuns(statementID string) ([]*MatchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, statement_id, started_at, finished_at,
		       total_transactions, matched, unmatched, match_rate, average_confidence
		FROM match_runs WHERE statement_id = ? ORDER BY started_at DESC`, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*MatchRun
	for rows.Next() {
		run := &MatchRun{}
		err := rows.Scan(&run.ID, &run.StatementID, &run.StartedAt, &run.FinishedAt,
			&run.TotalTransactions, &run.Matched, &run.Unmatched, &run.MatchRate, &run.AverageConfidence)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunAssignments returns the assignments persisted for one run.
func (s *Storage) GetRunAssignments(runID string) ([]model.MatchAssignment, error) {
	rows, err := s.db.Query(`
		SELECT transaction_id, receipt_id, confidence
		FROM match_assignments WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.MatchAssignment
	for rows.Next() {
		var a model.MatchAssignment
		if err := rows.Scan(&a.TransactionID, &a.ReceiptID, &a.Confidence); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetStatementStats computes a statement's completion summary.
func (s *Storage) GetStatementStats(statementID string) (*StatementStats, error) {
	stats := &StatementStats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(matched), 0),
		       COALESCE(SUM(no_receipt_needed), 0)
		FROM transactions WHERE statement_id = ?`, statementID).
		Scan(&stats.Total, &stats.Matched, &stats.NoReceiptNeeded)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM receipts WHERE statement_id = ?`, statementID).
		Scan(&stats.Receipts)
	if err != nil {
		return nil, err
	}
	stats.Completed = stats.Matched + stats.NoReceiptNeeded
	stats.Missing = stats.Total - stats.Completed
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
