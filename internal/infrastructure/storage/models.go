package storage

import (
	"time"
)

// Statement is one uploaded bank statement and the unit every matching run
// operates on.
type Statement struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	HomeCurrency string    `json:"home_currency"`
	ImportedAt   time.Time `json:"imported_at"`
}

// MatchRun records one execution of the matching engine against a statement.
type MatchRun struct {
	ID          string    `json:"id"`
	StatementID string    `json:"statement_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	TotalTransactions int     `json:"total_transactions"`
	Matched           int     `json:"matched"`
	Unmatched         int     `json:"unmatched"`
	MatchRate         float64 `json:"match_rate"`
	AverageConfidence float64 `json:"average_confidence"`
}

// StatementStats summarizes a statement's completion state for the dashboard
// API.
type StatementStats struct {
	Total           int     `json:"total"`
	Matched         int     `json:"matched"`
	NoReceiptNeeded int     `json:"no_receipt_needed"`
	Completed       int     `json:"completed"`
	Missing         int     `json:"missing"`
	CompletionRate  float64 `json:"completion_rate"`
	Receipts        int     `json:"receipts"`
}
