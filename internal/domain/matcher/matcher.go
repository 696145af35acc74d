// Package matcher assigns bank statement transactions to extracted receipt
// records.
//
// A run is a single-threaded, pure batch pass over two in-memory
// collections:
//
//	candidate filter -> confidence scorer -> assignment resolver
//
// The filter applies hard gates (currency-aware amount tolerance, exclusion
// keywords, merchant family mismatch), the scorer combines amount, merchant
// similarity and date proximity into a 0-100 confidence with a tiered
// acceptance policy, and the resolver greedily picks a strict 1:1 assignment.
// The design favors false negatives over false positives throughout: anything
// doubtful degrades to "no match", never to a wrong match.
//
// Example usage:
//
//	m, err := matcher.New(matcher.DefaultConfig(), nil)
//	if err != nil {
//		return err
//	}
//	result := m.Run(transactions, receipts, previouslyUnmatched)
//	for _, a := range result.Assignments {
//		// persist a.TransactionID -> a.ReceiptID at a.Confidence
//	}
package matcher

import (
	"fmt"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/merchant"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// Matcher runs matching passes. Immutable after construction, so one Matcher
// can serve concurrent runs over independent statements.
type Matcher struct {
	config     Config
	scorer     *merchant.Scorer
	resolver   Resolver
	exclusions []string // normalized exclusion keywords
}

// New validates the configuration and builds a matcher. A nil scorer selects
// the default alias/family tables.
func New(cfg Config, scorer *merchant.Scorer) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("matcher config: %w", err)
	}
	if scorer == nil {
		scorer = merchant.NewScorer(nil, nil)
	}
	m := &Matcher{
		config:   cfg,
		scorer:   scorer,
		resolver: GreedyResolver{},
	}
	for _, keyword := range cfg.ExclusionKeywords {
		if normalized := merchant.Normalize(keyword); normalized != "" {
			m.exclusions = append(m.exclusions, normalized)
		}
	}
	return m, nil
}

// WithResolver swaps the assignment resolver and returns the matcher.
func (m *Matcher) WithResolver(r Resolver) *Matcher {
	m.resolver = r
	return m
}

// Run executes one matching pass. Pure and deterministic: identical inputs
// yield identical output, and nothing outside the returned Result is touched.
// Receipts already held by matched transactions are consumed from the start,
// so a repeated run over partially matched input keeps the assignment 1:1.
// excluded lists (transaction, receipt) pairs a reviewer rejected; those
// pairings are never proposed again.
func (m *Matcher) Run(transactions []*model.Transaction, receipts []*model.Receipt, excluded []model.UnmatchedPair) Result {
	excludedSet := make(map[model.UnmatchedPair]bool, len(excluded))
	for _, pair := range excluded {
		excludedSet[pair] = true
	}

	consumed := make(map[string]bool)
	for _, tx := range transactions {
		if tx.Matched && tx.MatchedReceiptID != "" {
			consumed[tx.MatchedReceiptID] = true
		}
	}

	candidatesFor := func(tx *model.Transaction, used map[string]bool) []Candidate {
		if m.skipTransaction(tx) {
			return nil
		}
		var out []Candidate
		for _, r := range receipts {
			if used[r.ID] || consumed[r.ID] {
				continue
			}
			if !m.eligible(tx, r, excludedSet) {
				continue
			}
			c, ok := m.scoreCandidate(tx, r, m.exactUnique(tx, r, receipts, used, consumed))
			if !ok {
				continue
			}
			out = append(out, c)
		}
		return out
	}

	assignments := m.resolver.Resolve(transactions, candidatesFor)
	return Result{
		Assignments: assignments,
		Report:      buildReport(len(transactions), assignments),
	}
}

// exactUnique reports whether the receipt's amount equals the transaction's
// exactly and no other unconsumed receipt in the pool shares that amount. A
// uniquely identifying amount is strong evidence even when OCR garbled the
// merchant text.
func (m *Matcher) exactUnique(tx *model.Transaction, r *model.Receipt, pool []*model.Receipt, used, consumed map[string]bool) bool {
	if r.Amount == nil || !r.Amount.Abs().Equal(tx.Amount.Abs()) {
		return false
	}
	for _, other := range pool {
		if other.ID == r.ID || used[other.ID] || consumed[other.ID] || other.Amount == nil {
			continue
		}
		if other.Amount.Abs().Equal(r.Amount.Abs()) {
			return false
		}
	}
	return true
}

func buildReport(total int, assignments []model.MatchAssignment) Report {
	report := Report{
		TotalTransactions: total,
		Matched:           len(assignments),
		Unmatched:         total - len(assignments),
	}
	if total > 0 {
		report.MatchRate = float64(report.Matched) / float64(total) * 100
	}
	if len(assignments) > 0 {
		sum := 0
		for _, a := range assignments {
			sum += a.Confidence
		}
		report.AverageConfidence = float64(sum) / float64(len(assignments))
	}
	return report
}
