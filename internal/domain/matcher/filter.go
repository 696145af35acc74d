package matcher

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/merchant"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// skipTransaction reports whether a transaction takes part in matching at
// all. Already-matched rows keep their assignment, manually unmatched rows
// stay unmatched until a reviewer assigns them by hand, and
// non-receipt-bearing lines (VAT, fees, interest) never match.
func (m *Matcher) skipTransaction(tx *model.Transaction) bool {
	if tx.Matched || tx.NoReceiptNeeded || tx.ManuallyUnmatched {
		return true
	}
	if tx.Amount.IsZero() {
		return true
	}
	return m.excludedText(tx.RawDescription)
}

// eligible applies the hard gates for one (transaction, receipt) pairing.
// Pure: no side effects, no pool mutation.
func (m *Matcher) eligible(tx *model.Transaction, r *model.Receipt, excluded map[model.UnmatchedPair]bool) bool {
	if excluded[model.UnmatchedPair{TransactionID: tx.ID, ReceiptID: r.ID}] {
		return false
	}

	// Absent amount is an automatic reject, never a guessed zero.
	if r.Amount == nil || r.Amount.IsZero() {
		return false
	}
	if m.excludedText(r.Merchant) {
		return false
	}

	if !m.amountGate(tx, r) {
		return false
	}

	// Hard mismatch: both sides map to known but different merchant
	// families. Coincidental amount equality must not beat this.
	famTx := m.scorer.Family(tx.RawDescription)
	famRc := m.scorer.Family(r.Merchant)
	if famTx != "" && famRc != "" && famTx != famRc {
		return false
	}

	return true
}

// amountGate checks the currency-aware amount tolerance. Same currency gets
// the tight home tolerance; a foreign-currency receipt is allowed the wide
// tolerance against the booked home amount, or the home tolerance against the
// original charge amount when the statement line quotes it.
func (m *Matcher) amountGate(tx *model.Transaction, r *model.Receipt) bool {
	txAmount := tx.Amount.Abs()

	if r.Currency == tx.Currency {
		return relativeDiff(txAmount, r.Amount.Abs()) <= m.config.HomeTolerance
	}

	if tx.ForeignAmount != nil && tx.ForeignCurrency == r.Currency {
		if relativeDiff(tx.ForeignAmount.Abs(), r.Amount.Abs()) <= m.config.HomeTolerance {
			return true
		}
	}
	return relativeDiff(txAmount, r.Amount.Abs()) <= m.config.ForeignTolerance
}

// relativeDiff is |a-b| / max(a, b) for non-negative decimals.
func relativeDiff(a, b decimal.Decimal) float64 {
	max := a
	if b.GreaterThan(max) {
		max = b
	}
	if max.IsZero() {
		return 0
	}
	diff, _ := a.Sub(b).Abs().Div(max).Float64()
	return diff
}

func (m *Matcher) excludedText(text string) bool {
	if text == "" {
		return false
	}
	normalized := merchant.Normalize(text)
	for _, keyword := range m.exclusions {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}
