package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

func TestParseAmount_GermanLocale(t *testing.T) {
	amount, currency, ok := ParseAmount("1.234,56")

	require.True(t, ok)
	assert.Equal(t, model.EUR, currency)
	assert.True(t, amount.Equal(decimal.RequireFromString("1234.56")), "got %s", amount)
}

func TestParseAmount_USLocale(t *testing.T) {
	amount, _, ok := ParseAmount("1,234.56")

	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("1234.56")), "got %s", amount)
}

func TestParseAmount_CurrencySymbols(t *testing.T) {
	tests := []struct {
		raw      string
		want     string
		currency model.Currency
	}{
		{"€ 45,00", "45.00", model.EUR},
		{"$19.99", "19.99", model.USD},
		{"£7.50", "7.50", model.GBP},
	}

	for _, tt := range tests {
		amount, currency, ok := ParseAmount(tt.raw)
		require.True(t, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.currency, currency, "raw %q", tt.raw)
		assert.True(t, amount.Equal(decimal.RequireFromString(tt.want)), "raw %q got %s", tt.raw, amount)
	}
}

func TestParseAmount_MultipleSymbolsFixedOrder(t *testing.T) {
	// Two different symbols in one cell: the euro wins regardless of their
	// position in the text, every time.
	for i := 0; i < 10; i++ {
		_, currency, ok := ParseAmount("$ 5,40 / € 5,00")
		require.True(t, ok)
		assert.Equal(t, model.EUR, currency)
	}
}

func TestParseAmount_SingleSeparator(t *testing.T) {
	// One or two digits after a lone separator is a decimal point.
	amount, _, ok := ParseAmount("72,00")
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("72.00")))

	amount, _, ok = ParseAmount("12,5")
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.5")))

	// Three digits is thousands grouping.
	amount, _, ok = ParseAmount("1.234")
	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("1234")))
}

func TestParseAmount_Negative(t *testing.T) {
	amount, _, ok := ParseAmount("-23,10")

	require.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("-23.10")))
}

func TestParseAmount_Unparseable(t *testing.T) {
	_, _, ok := ParseAmount("n/a")
	assert.False(t, ok)

	_, _, ok = ParseAmount("")
	assert.False(t, ok)
}

func TestExtractForeignAmount(t *testing.T) {
	amount, currency := ExtractForeignAmount("PAYPAL *BEATPORT, Ihr Einkauf USD 72,00 Kurs 1,0850")

	require.NotNil(t, amount)
	assert.Equal(t, model.USD, currency)
	assert.True(t, amount.Equal(decimal.RequireFromString("72.00")))
}

func TestExtractForeignAmount_NoQuote(t *testing.T) {
	amount, currency := ExtractForeignAmount("REWE SAGT DANKE // KOELN")

	assert.Nil(t, amount)
	assert.Equal(t, model.Currency(""), currency)
}

func TestParseDate_GermanNamedMonth(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("10. Dezember 2024", now)

	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC), result.Date)
	assert.False(t, result.Corrected)
}

func TestParseDate_EnglishMonthFirst(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("December 10, 2024", now)

	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC), result.Date)
}

func TestParseDate_NumericDayFirst(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("03.04.2025", now)

	require.True(t, ok)
	// Day-first: April 3rd, not March 4th.
	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), result.Date)
}

func TestParseDate_ISO(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("2025-12-05", now)

	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), result.Date)
}

func TestParseDate_YearCorrection(t *testing.T) {
	// A 2029 on a receipt read in mid-2025 must be a misread digit. The
	// plausible single-digit substitution closest to now is 2025.
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("15.01.2029", now)

	require.True(t, ok)
	assert.True(t, result.Corrected)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), result.Date)
}

func TestParseDate_YearKeptWhenNoPlausibleFix(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("15.01.5555", now)

	require.True(t, ok)
	assert.False(t, result.Corrected)
	assert.Equal(t, 5555, result.Date.Year())
}

func TestParseDate_NearFutureNotCorrected(t *testing.T) {
	// One year ahead is plausible (statements spanning year boundaries).
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, ok := ParseDate("02.01.2026", now)

	require.True(t, ok)
	assert.False(t, result.Corrected)
	assert.Equal(t, 2026, result.Date.Year())
}

func TestParseDate_Invalid(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, ok := ParseDate("31.02.2025", now)
	assert.False(t, ok)

	_, ok = ParseDate("not a date", now)
	assert.False(t, ok)

	_, ok = ParseDate("", now)
	assert.False(t, ok)
}
