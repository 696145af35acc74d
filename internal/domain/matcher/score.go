package matcher

import (
	"math"
	"time"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// scoreCandidate computes the composite confidence for a pairing that already
// passed the hard gates. Returns ok=false when the tiered acceptance policy
// rejects the candidate.
func (m *Matcher) scoreCandidate(tx *model.Transaction, r *model.Receipt, exactUnique bool) (Candidate, bool) {
	c := Candidate{
		Transaction: tx,
		Receipt:     r,
		ExactUnique: exactUnique,
	}

	relDiff := m.bestRelativeDiff(tx, r)
	tolerance := m.config.HomeTolerance
	if r.Currency != tx.Currency {
		tolerance = m.config.ForeignTolerance
	}
	c.AmountScore = m.amountScore(relDiff, tolerance)
	c.MerchantScore = m.scorer.Score(r.Merchant, tx.RawDescription)
	gapDays, hasGap := dateGapDays(tx, r)
	c.DateScore = m.dateScore(gapDays, hasGap)

	confidence := c.AmountScore + c.MerchantScore*m.config.MerchantPoints/100 + c.DateScore
	if exactUnique {
		confidence += m.config.ExactBoost
	}
	if confidence > 100 {
		confidence = 100
	}
	c.Confidence = confidence

	return c, m.accept(c, relDiff, gapDays, hasGap)
}

// accept applies the tiered policy: merchant evidence below the floor is
// never trusted; in the weak band the amount or date must corroborate; above
// MerchantStrong the standard tolerances stand. The composite threshold comes
// last.
func (m *Matcher) accept(c Candidate, relDiff float64, gapDays int, hasGap bool) bool {
	if c.MerchantScore < m.config.MerchantFloor {
		return false
	}
	if c.MerchantScore < m.config.MerchantStrong {
		tight := relDiff <= m.config.TightTolerance
		close := hasGap && gapDays <= m.config.CorroborationDays
		if !tight && !close {
			return false
		}
	}
	return c.Confidence >= m.config.MinConfidence
}

// amountScore grants full points inside the tight band and scales down toward
// the tolerance boundary. The gate already capped relDiff, so the scale
// bottoms out at 60% of the amount points rather than zero: an amount inside
// tolerance is always meaningful evidence.
func (m *Matcher) amountScore(relDiff, tolerance float64) int {
	full := float64(m.config.AmountPoints)
	if relDiff <= m.config.TightTolerance {
		return m.config.AmountPoints
	}
	span := tolerance - m.config.TightTolerance
	if span <= 0 {
		return m.config.AmountPoints
	}
	frac := (relDiff - m.config.TightTolerance) / span
	if frac > 1 {
		frac = 1
	}
	return int(math.Round(full - frac*full*0.4))
}

// bestRelativeDiff mirrors the amount gate: the smallest relative difference
// over the comparisons the gate allows for this currency pairing.
func (m *Matcher) bestRelativeDiff(tx *model.Transaction, r *model.Receipt) float64 {
	best := relativeDiff(tx.Amount.Abs(), r.Amount.Abs())
	if r.Currency != tx.Currency && tx.ForeignAmount != nil && tx.ForeignCurrency == r.Currency {
		if d := relativeDiff(tx.ForeignAmount.Abs(), r.Amount.Abs()); d < best {
			best = d
		}
	}
	return best
}

// dateScore walks the step curve. A missing date on either side earns zero
// points but never disqualifies: transactions legitimately post weeks after
// the receipt date.
func (m *Matcher) dateScore(gapDays int, hasGap bool) int {
	if !hasGap {
		return 0
	}
	for _, step := range m.config.DateCurve {
		if gapDays <= step.MaxDays {
			return step.Points
		}
	}
	return 0
}

func dateGapDays(tx *model.Transaction, r *model.Receipt) (int, bool) {
	if tx.Date.IsZero() || r.Date == nil || r.Date.IsZero() {
		return 0, false
	}
	gap := tx.Date.Sub(*r.Date) / (24 * time.Hour)
	if gap < 0 {
		gap = -gap
	}
	return int(gap), true
}
