// Package service coordinates matching runs against stored statements and
// applies reviewer decisions the matcher must respect.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/matcher"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

// ManualConfidence is recorded for assignments a reviewer made by hand.
const ManualConfidence = 100

// MatchService runs the matching engine over persisted statements.
type MatchService struct {
	store   *storage.Storage
	matcher *matcher.Matcher
	logger  *slog.Logger
}

// NewMatchService wires the service. The matcher must already be validated
// (matcher.New fails fast on bad config).
func NewMatchService(store *storage.Storage, m *matcher.Matcher, logger *slog.Logger) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		store:   store,
		matcher: m,
		logger:  logger,
	}
}

// RunMatching executes one matching pass for a statement, persists the
// assignments and run stats, and returns both.
func (s *MatchService) RunMatching(statementID string) (*storage.MatchRun, *matcher.Result, error) {
	startedAt := time.Now().UTC()

	transactions, err := s.store.GetTransactions(statementID)
	if err != nil {
		return nil, nil, fmt.Errorf("load transactions: %w", err)
	}
	receipts, err := s.store.GetReceipts(statementID)
	if err != nil {
		return nil, nil, fmt.Errorf("load receipts: %w", err)
	}
	excluded, err := s.store.GetManualUnmatches(statementID)
	if err != nil {
		return nil, nil, fmt.Errorf("load manual unmatches: %w", err)
	}

	// Corrected years are a heuristic, never ground truth. Surface every one.
	for _, r := range receipts {
		if r.DateCorrected && r.Date != nil {
			s.logger.Warn("receipt date year was corrected during extraction",
				"receipt", r.ID,
				"date", r.Date.Format("2006-01-02"))
		}
	}

	result := s.matcher.Run(transactions, receipts, excluded)

	run := &storage.MatchRun{
		ID:                uuid.NewString(),
		StatementID:       statementID,
		StartedAt:         startedAt,
		FinishedAt:        time.Now().UTC(),
		TotalTransactions: result.Report.TotalTransactions,
		Matched:           result.Report.Matched,
		Unmatched:         result.Report.Unmatched,
		MatchRate:         result.Report.MatchRate,
		AverageConfidence: result.Report.AverageConfidence,
	}
	if err := s.store.SaveMatchRun(run, result.Assignments); err != nil {
		return nil, nil, fmt.Errorf("save match run: %w", err)
	}

	s.logger.Info("matching run finished",
		"run", run.ID,
		"statement", statementID,
		"matched", run.Matched,
		"unmatched", run.Unmatched,
		"match_rate", fmt.Sprintf("%.1f%%", run.MatchRate))

	return run, &result, nil
}

// Unmatch reverses a match on a transaction. The rejected pairing is recorded
// so automatic matching never proposes it again, and the row stays unmatched
// until a reviewer assigns it by hand.
func (s *MatchService) Unmatch(transactionID string) error {
	tx, statementID, err := s.store.GetTransaction(transactionID)
	if err != nil {
		return err
	}
	if tx.MatchedReceiptID != "" {
		if err := s.store.RecordManualUnmatch(statementID, transactionID, tx.MatchedReceiptID); err != nil {
			return fmt.Errorf("record manual unmatch: %w", err)
		}
	}
	if err := s.store.ClearMatch(transactionID, true); err != nil {
		return err
	}
	s.logger.Info("transaction manually unmatched",
		"transaction", transactionID,
		"receipt", tx.MatchedReceiptID)
	return nil
}

// Assign pairs a transaction with a receipt by reviewer decision. Clears any
// manually_unmatched flag on the row.
func (s *MatchService) Assign(transactionID, receiptID string) error {
	if err := s.store.ApplyAssignment(transactionID, receiptID, ManualConfidence); err != nil {
		return err
	}
	s.logger.Info("transaction manually assigned",
		"transaction", transactionID,
		"receipt", receiptID)
	return nil
}
