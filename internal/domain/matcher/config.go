package matcher

import (
	"fmt"
)

// DateStep is one step of the date-proximity curve: a gap of at most MaxDays
// days earns Points.
type DateStep struct {
	MaxDays int `yaml:"max_days"`
	Points  int `yaml:"points"`
}

// Config holds every tunable of the matching engine. The cutoffs were derived
// empirically from observed statements and are defaults to tune, not
// load-bearing constants.
type Config struct {
	// HomeTolerance is the maximum relative amount difference when the
	// receipt is in the statement's home currency.
	HomeTolerance float64 `yaml:"home_tolerance"`
	// ForeignTolerance applies when the receipt's currency differs,
	// absorbing FX spread and conversion fees.
	ForeignTolerance float64 `yaml:"foreign_tolerance"`
	// TightTolerance is the band that earns full amount points and that the
	// weak-merchant tier accepts as corroboration.
	TightTolerance float64 `yaml:"tight_tolerance"`

	// AmountPoints and MerchantPoints cap the respective score components.
	// Date points come from the top step of DateCurve.
	AmountPoints   int `yaml:"amount_points"`
	MerchantPoints int `yaml:"merchant_points"`

	// MerchantFloor rejects candidates outright below this merchant score.
	MerchantFloor int `yaml:"merchant_floor"`
	// MerchantStrong is the merchant score at which standard tolerances
	// apply; between MerchantFloor and MerchantStrong a candidate needs a
	// tight amount match or close date proximity.
	MerchantStrong int `yaml:"merchant_strong"`
	// CorroborationDays is "close date proximity" for the weak-merchant band.
	CorroborationDays int `yaml:"corroboration_days"`

	// ExactBoost is added when the receipt amount equals the transaction
	// amount exactly and no other unconsumed receipt shares it.
	ExactBoost int `yaml:"exact_boost"`

	// MinConfidence is the composite score needed to reach the resolver.
	MinConfidence int `yaml:"min_confidence"`

	// DateCurve maps day gaps onto points, closest step first. Date is
	// guidance only and never gates a candidate.
	DateCurve []DateStep `yaml:"date_curve"`

	// ExclusionKeywords mark non-receipt-bearing lines (VAT, bank fees,
	// interest); matching rows and receipts are never assigned.
	ExclusionKeywords []string `yaml:"exclusion_keywords"`
}

// DefaultConfig returns the tuned defaults for GLS-style EUR statements.
func DefaultConfig() Config {
	return Config{
		HomeTolerance:     0.02,
		ForeignTolerance:  0.20,
		TightTolerance:    0.01,
		AmountPoints:      50,
		MerchantPoints:    35,
		MerchantFloor:     20,
		MerchantStrong:    50,
		CorroborationDays: 7,
		ExactBoost:        30,
		MinConfidence:     60,
		DateCurve: []DateStep{
			{MaxDays: 0, Points: 15},
			{MaxDays: 7, Points: 12},
			{MaxDays: 14, Points: 8},
			{MaxDays: 30, Points: 4},
			{MaxDays: 45, Points: 2},
		},
		ExclusionKeywords: []string{
			"mehrwertsteuer",
			"umsatzsteuer",
			"vat",
			"kontoführung",
			"kontofuehrung",
			"entgelt",
			"bank fee",
			"gebühren",
			"zinsen",
			"interest",
			"abschluss",
		},
	}
}

// Validate fails fast on out-of-range settings so a bad configuration aborts
// before a run starts, not mid-run.
func (c Config) Validate() error {
	if c.HomeTolerance < 0 || c.HomeTolerance > 1 {
		return fmt.Errorf("home_tolerance %v outside [0,1]", c.HomeTolerance)
	}
	if c.ForeignTolerance < 0 || c.ForeignTolerance > 1 {
		return fmt.Errorf("foreign_tolerance %v outside [0,1]", c.ForeignTolerance)
	}
	if c.TightTolerance < 0 || c.TightTolerance > c.HomeTolerance {
		return fmt.Errorf("tight_tolerance %v outside [0, home_tolerance]", c.TightTolerance)
	}
	if c.AmountPoints <= 0 || c.MerchantPoints <= 0 {
		return fmt.Errorf("score weights must be positive (amount=%d, merchant=%d)", c.AmountPoints, c.MerchantPoints)
	}
	if c.MerchantFloor < 0 || c.MerchantFloor > 100 {
		return fmt.Errorf("merchant_floor %d outside [0,100]", c.MerchantFloor)
	}
	if c.MerchantStrong < c.MerchantFloor || c.MerchantStrong > 100 {
		return fmt.Errorf("merchant_strong %d outside [merchant_floor,100]", c.MerchantStrong)
	}
	if c.CorroborationDays < 0 {
		return fmt.Errorf("corroboration_days must not be negative, got %d", c.CorroborationDays)
	}
	if c.ExactBoost < 0 {
		return fmt.Errorf("exact_boost must not be negative, got %d", c.ExactBoost)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("min_confidence %d outside [0,100]", c.MinConfidence)
	}
	if len(c.DateCurve) == 0 {
		return fmt.Errorf("date_curve must not be empty")
	}
	prevDays := -1
	for i, step := range c.DateCurve {
		if step.MaxDays <= prevDays {
			return fmt.Errorf("date_curve step %d: max_days must be strictly increasing", i)
		}
		if step.Points < 0 || step.Points > 100 {
			return fmt.Errorf("date_curve step %d: points %d outside [0,100]", i, step.Points)
		}
		prevDays = step.MaxDays
	}
	return nil
}
