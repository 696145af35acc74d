package matcher

import (
	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// CandidateSource yields the accepted, scored candidates for one transaction
// against the receipts not yet consumed. used holds consumed receipt IDs.
type CandidateSource func(tx *model.Transaction, used map[string]bool) []Candidate

// Resolver turns per-transaction candidates into the final 1:1 assignment.
// GreedyResolver is the default; a maximum-weight bipartite matching
// (Hungarian algorithm) could be substituted behind this interface without
// touching the filter or scorer.
type Resolver interface {
	Resolve(transactions []*model.Transaction, candidates CandidateSource) []model.MatchAssignment
}

// GreedyResolver walks transactions in stable input order and gives each one
// the highest-confidence receipt still in the pool, then consumes it. Not
// globally optimal: an early transaction can take a receipt a later one
// needed more. Acceptable at low contention, since most amounts are distinct,
// and in exchange the allocation is simple and deterministic.
type GreedyResolver struct{}

// Resolve implements Resolver.
func (GreedyResolver) Resolve(transactions []*model.Transaction, candidates CandidateSource) []model.MatchAssignment {
	used := make(map[string]bool)
	assignments := make([]model.MatchAssignment, 0)

	for _, tx := range transactions {
		cands := candidates(tx, used)
		best := -1
		for i := range cands {
			if best < 0 || better(cands[i], cands[best]) {
				best = i
			}
		}
		if best < 0 {
			// No eligible candidate. Not an error, the row stays unmatched.
			continue
		}
		chosen := cands[best]
		used[chosen.Receipt.ID] = true
		assignments = append(assignments, model.MatchAssignment{
			TransactionID: tx.ID,
			ReceiptID:     chosen.Receipt.ID,
			Confidence:    chosen.Confidence,
		})
	}
	return assignments
}

// better decides ties: higher confidence wins, then the exact-amount-unique
// candidate, then the earlier receipt in pool order (the incumbent).
func better(c, incumbent Candidate) bool {
	if c.Confidence != incumbent.Confidence {
		return c.Confidence > incumbent.Confidence
	}
	return c.ExactUnique && !incumbent.ExactUnique
}
