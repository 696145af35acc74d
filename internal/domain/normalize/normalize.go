// Package normalize turns raw extracted text into canonical amounts, currency
// tags and calendar dates.
//
// Everything here is best-effort: statement cells and OCR output carry mixed
// locales (German "1.234,56" next to US "1,234.56"), stray currency symbols
// and misread years. Fields that cannot be normalized are reported as absent,
// never guessed.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
)

// DateResult is a parsed calendar date plus whether the year was rewritten by
// the OCR-misread heuristic. Callers must surface Corrected, not trust the
// date silently.
type DateResult struct {
	Date      time.Time
	Corrected bool
}

// currencySymbols is checked in fixed order; the first symbol present wins.
var currencySymbols = []struct {
	symbol   string
	currency model.Currency
}{
	{"€", model.EUR},
	{"$", model.USD},
	{"£", model.GBP},
}

var amountDigits = regexp.MustCompile(`-?\d[\d.,]*`)

// ParseAmount parses a locale-ambiguous numeric string into a decimal amount
// and a currency tag. A currency symbol in the text selects the tag; without
// one the statement's home currency (EUR) is assumed. Returns ok=false when no
// amount can be read, so absent fields stay absent instead of becoming zero.
func ParseAmount(raw string) (decimal.Decimal, model.Currency, bool) {
	currency := model.EUR
	s := strings.TrimSpace(raw)
	for _, entry := range currencySymbols {
		if strings.Contains(s, entry.symbol) {
			currency = entry.currency
			s = strings.ReplaceAll(s, entry.symbol, "")
			break
		}
	}
	s = strings.TrimSpace(s)

	num := amountDigits.FindString(s)
	if num == "" {
		return decimal.Decimal{}, currency, false
	}

	normalized, ok := normalizeSeparators(num)
	if !ok {
		return decimal.Decimal{}, currency, false
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, currency, false
	}
	return d, currency, true
}

// normalizeSeparators rewrites a numeric string to use '.' as the decimal
// point. When both ',' and '.' appear, the rightmost one is the decimal point
// and the other is thousands grouping. With a single separator kind, a lone
// occurrence followed by one or two digits is a decimal point; anything else
// (three digits, repeated occurrences) is grouping.
func normalizeSeparators(num string) (string, bool) {
	lastComma := strings.LastIndex(num, ",")
	lastDot := strings.LastIndex(num, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// German: '.' groups, ',' is the decimal point.
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case lastComma >= 0:
		num = resolveSingleSeparator(num, ",")
	case lastDot >= 0:
		num = resolveSingleSeparator(num, ".")
	}

	if num == "" || num == "-" {
		return "", false
	}
	return num, true
}

func resolveSingleSeparator(num, sep string) string {
	decimals := len(num) - strings.LastIndex(num, sep) - 1
	if strings.Count(num, sep) == 1 && decimals >= 1 && decimals <= 2 {
		return strings.Replace(num, sep, ".", 1)
	}
	// Grouping separator.
	return strings.ReplaceAll(num, sep, "")
}

var foreignAmount = regexp.MustCompile(`\b(USD|GBP)\s+([\d.,]+)`)

// ExtractForeignAmount pulls a foreign-currency amount quoted inside a
// statement description, e.g. "PAYPAL ... USD 72,00". Card statements book in
// EUR but keep the original charge in the purpose line.
func ExtractForeignAmount(description string) (*decimal.Decimal, model.Currency) {
	m := foreignAmount.FindStringSubmatch(description)
	if m == nil {
		return nil, ""
	}
	amount, _, ok := ParseAmount(m[2])
	if !ok {
		return nil, ""
	}
	return &amount, model.Currency(m[1])
}

// monthNames maps German and English month names (and common abbreviations)
// to month numbers.
var monthNames = map[string]time.Month{
	"januar": time.January, "january": time.January, "jan": time.January,
	"februar": time.February, "february": time.February, "feb": time.February,
	"märz": time.March, "maerz": time.March, "march": time.March, "mar": time.March, "mrz": time.March,
	"april": time.April, "apr": time.April,
	"mai": time.May, "may": time.May,
	"juni": time.June, "june": time.June, "jun": time.June,
	"juli": time.July, "july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"oktober": time.October, "october": time.October, "okt": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"dezember": time.December, "december": time.December, "dez": time.December, "dec": time.December,
}

var (
	// "10. Dezember 2025", "10 Dec 2025"
	dayFirstNamed = regexp.MustCompile(`\b(\d{1,2})\.?\s+([\p{L}]+)\.?\s+(\d{4})\b`)
	// "December 10, 2025"
	monthFirstNamed = regexp.MustCompile(`\b([\p{L}]+)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
)

// numericLayouts are tried in order. Day-first formats come first: European
// statements and receipts dominate the input.
var numericLayouts = []string{
	"2.1.2006",
	"2/1/2006",
	"2-1-2006",
	"2006-1-2",
	"2006/1/2",
	"2.1.06",
	"2/1/06",
}

// ParseDate parses a raw date string in mixed formats, day-first by default,
// including German and English named-month forms. now anchors the year
// correction heuristic. Returns ok=false when nothing parses.
func ParseDate(raw string, now time.Time) (DateResult, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DateResult{}, false
	}

	if d, ok := parseNamedMonth(s); ok {
		return correctYear(d, now), true
	}
	for _, layout := range numericLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return correctYear(d, now), true
		}
	}
	return DateResult{}, false
}

func parseNamedMonth(s string) (time.Time, bool) {
	lower := strings.ToLower(s)
	if m := dayFirstNamed.FindStringSubmatch(lower); m != nil {
		if month, ok := monthNames[m[2]]; ok {
			return buildDate(m[3], month, m[1])
		}
	}
	if m := monthFirstNamed.FindStringSubmatch(lower); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			return buildDate(m[3], month, m[2])
		}
	}
	return time.Time{}, false
}

func buildDate(yearStr string, month time.Month, dayStr string) (time.Time, bool) {
	year := atoi(yearStr)
	day := atoi(dayStr)
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		// Normalized away, e.g. 31 February.
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// correctYear applies the OCR-misread heuristic: a year more than one year in
// the future of now cannot have been printed on a receipt, so one digit of it
// was probably misread (2029 for 2025). Candidate years differing in a single
// digit are tried and the plausible one closest to now wins. Best effort: when
// no candidate is plausible the date is kept as read.
func correctYear(d time.Time, now time.Time) DateResult {
	year := d.Year()
	if year <= now.Year()+1 {
		return DateResult{Date: d}
	}

	best := 0
	for pos, pow := 0, 1; pos < 4; pos, pow = pos+1, pow*10 {
		base := year - (year/pow)%10*pow
		for digit := 0; digit <= 9; digit++ {
			candidate := base + digit*pow
			if !plausibleYear(candidate, now) {
				continue
			}
			if best == 0 || abs(candidate-now.Year()) < abs(best-now.Year()) {
				best = candidate
			}
		}
	}
	if best == 0 {
		return DateResult{Date: d}
	}
	corrected := time.Date(best, d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return DateResult{Date: corrected, Corrected: true}
}

func plausibleYear(year int, now time.Time) bool {
	return year >= now.Year()-5 && year <= now.Year()+1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
