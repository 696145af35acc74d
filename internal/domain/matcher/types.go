package matcher

import (
	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// Candidate is a provisional (transaction, receipt) pairing under evaluation.
// Candidates live only within one matching run and are discarded after
// assignment resolution.
type Candidate struct {
	Transaction *model.Transaction
	Receipt     *model.Receipt

	AmountScore   int
	MerchantScore int
	DateScore     int
	Confidence    int

	// ExactUnique marks that the receipt's amount equals the transaction's
	// exactly and no other unconsumed receipt shares it; such candidates
	// carry the exact-amount boost and win confidence ties.
	ExactUnique bool
}

// Report summarizes one matching run.
type Report struct {
	TotalTransactions int     `json:"total_transactions"`
	Matched           int     `json:"matched"`
	Unmatched         int     `json:"unmatched"`
	MatchRate         float64 `json:"match_rate"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Result is the output of one matching run. Assignments is a strict 1:1
// bipartite matching: no transaction or receipt ever appears twice.
type Result struct {
	Assignments []model.MatchAssignment `json:"assignments"`
	Report      Report                  `json:"report"`
}
