// Package model defines the core records shared by the normalizer, matcher,
// storage and API layers.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the currency tag attached to an amount. Statements observed so
// far are EUR; anything else is inferred from symbols or description text.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
)

// Transaction is one bank statement row. Parsed fields are immutable; only the
// match-state fields change after parsing.
type Transaction struct {
	ID       string `json:"id"`
	RowIndex int    `json:"row_index"` // stable source order within the statement

	Date           time.Time       `json:"date"` // zero when the row date was unparseable
	Amount         decimal.Decimal `json:"amount"` // signed, negative = debit
	RawDescription string          `json:"raw_description"`
	Currency       Currency        `json:"currency"`

	// ForeignAmount carries an amount quoted in the description in another
	// currency (e.g. "USD 72,00" on a card statement line), when present.
	ForeignAmount   *decimal.Decimal `json:"foreign_amount,omitempty"`
	ForeignCurrency Currency         `json:"foreign_currency,omitempty"`

	// Match state.
	Matched           bool   `json:"matched"`
	MatchedReceiptID  string `json:"matched_receipt_id,omitempty"`
	Confidence        int    `json:"confidence"`
	NoReceiptNeeded   bool   `json:"no_receipt_needed"`
	ManuallyUnmatched bool   `json:"manually_unmatched"`
}

// Receipt is the extraction result for one receipt file. Extraction is
// best-effort, so amount, date and merchant may all be absent.
type Receipt struct {
	ID       string `json:"id"` // filename-derived
	Filename string `json:"filename"`

	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Date          *time.Time       `json:"date,omitempty"`
	DateCorrected bool             `json:"date_corrected"` // year fixed by the OCR-misread heuristic
	Merchant      string           `json:"merchant,omitempty"`
	Currency      Currency         `json:"currency"`
	SourceIsImage bool             `json:"source_is_image"`
}

// MatchAssignment pairs one transaction with one receipt. Within a single run
// both sides are unique: strict 1:1 bipartite matching.
type MatchAssignment struct {
	TransactionID string `json:"transaction_id"`
	ReceiptID     string `json:"receipt_id"`
	Confidence    int    `json:"confidence"`
}

// UnmatchedPair is a (transaction, receipt) pairing a reviewer rejected. The
// matcher never re-proposes a recorded pair.
type UnmatchedPair struct {
	TransactionID string `json:"transaction_id"`
	ReceiptID     string `json:"receipt_id"`
}
