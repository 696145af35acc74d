// Package merchant scores how likely a receipt's extracted merchant string
// and a statement description name the same merchant.
//
// OCR output is noisy ("Spoti fy AB", "AMZN Mktp DE"), so plain edit distance
// is not enough: scoring is token-order-insensitive and an alias table maps
// known merchant variants onto each other with a high score floor.
package merchant

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// AliasFloor is the minimum score an alias-table hit produces regardless of
// edit distance.
const AliasFloor = 90

// Scorer computes merchant similarity scores. Safe for concurrent use: all
// state is set at construction.
type Scorer struct {
	aliases  map[string][]string // canonical name -> textual variants
	families map[string][]string // family name -> identifying keywords

	canonicals []string // sorted for deterministic iteration
	familyKeys []string
}

// NewScorer builds a scorer from alias and family tables. Nil maps select the
// built-in defaults; supplied tables are merged over the defaults.
func NewScorer(aliases, families map[string][]string) *Scorer {
	s := &Scorer{
		aliases:  mergeTables(defaultAliases, aliases),
		families: mergeTables(defaultFamilies, families),
	}
	for name := range s.aliases {
		s.canonicals = append(s.canonicals, name)
	}
	sort.Strings(s.canonicals)
	for name := range s.families {
		s.familyKeys = append(s.familyKeys, name)
	}
	sort.Strings(s.familyKeys)
	return s
}

func mergeTables(base, extra map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(base)+len(extra))
	for k, v := range base {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range extra {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// defaultAliases covers merchants whose statement descriptor never matches
// the receipt letterhead.
var defaultAliases = map[string][]string{
	"amazon":  {"amzn", "amazon mktp", "amazon payments"},
	"spotify": {"spoti"},
	"google":  {"goog", "google payment"},
	"paypal":  {"pp "},
	"apple":   {"itunes", "apple com bill"},
}

// defaultFamilies feeds the hard-mismatch gate: a transaction and a receipt
// resolving to different families can never belong together, whatever the
// amounts say.
var defaultFamilies = map[string][]string{
	"amazon":   {"amazon", "amzn"},
	"beatport": {"beatport"},
	"google":   {"google", "goog"},
	"spotify":  {"spotify", "spoti"},
}

var (
	legalSuffixes = regexp.MustCompile(`\b(gmbh|inc|incorporated|llc|ltd|limited|ag|kg|ug|sarl|bv|co|corp|se|e\s?v)\b\.?`)
	nonAlnum      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips punctuation and legal suffixes and collapses
// whitespace. Exported because the exclusion filter normalizes the same way.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	s = legalSuffixes.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Score returns a 0-100 similarity between a receipt merchant string and a
// transaction description. Deterministic for any fixed pair of inputs.
func (s *Scorer) Score(merchantText, descriptionText string) int {
	a := Normalize(merchantText)
	b := Normalize(descriptionText)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	score := tokenSetRatio(a, b)

	// Alias hit: both strings name the same canonical merchant.
	if ca, cb := s.resolveAlias(a), s.resolveAlias(b); ca != "" && ca == cb && score < AliasFloor {
		score = AliasFloor
	}
	return score
}

// Family maps a raw merchant string or description onto a known merchant
// family, or "" when no family keyword occurs in it.
func (s *Scorer) Family(text string) string {
	normalized := Normalize(text)
	for _, name := range s.familyKeys {
		for _, keyword := range s.families[name] {
			if strings.Contains(normalized, Normalize(keyword)) {
				return name
			}
		}
	}
	return ""
}

func (s *Scorer) resolveAlias(normalized string) string {
	for _, canonical := range s.canonicals {
		if containsPhrase(normalized, canonical) {
			return canonical
		}
		for _, variant := range s.aliases[canonical] {
			if containsPhrase(normalized, Normalize(variant)) {
				return canonical
			}
		}
	}
	return ""
}

// containsPhrase reports whether phrase occurs in text starting at a token
// boundary. The phrase may end mid-token so that "spoti" still hits
// "spotify ab", but "pp" no longer hits "shopping".
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.HasPrefix(text, phrase) || strings.Contains(text, " "+phrase)
}

// tokenSetRatio compares the two strings as token sets, fuzzywuzzy-style: the
// shared tokens are scored against each side's full token set, which makes the
// score insensitive to word order and to extra boilerplate tokens on one side
// ("REWE SAGT DANKE" vs "REWE").
func tokenSetRatio(a, b string) int {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	var inter, onlyA, onlyB []string
	for tok := range tokensA {
		if tokensB[tok] {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tokensB {
		if !tokensA[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	interStr := strings.Join(inter, " ")
	fullA := strings.TrimSpace(interStr + " " + strings.Join(onlyA, " "))
	fullB := strings.TrimSpace(interStr + " " + strings.Join(onlyB, " "))

	if interStr != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		// One side is a token subset of the other.
		return 100
	}

	best := ratio(fullA, fullB)
	if interStr != "" {
		if r := ratio(interStr, fullA); r > best {
			best = r
		}
		if r := ratio(interStr, fullB); r > best {
			best = r
		}
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// ratio is a normalized edit-distance similarity in 0-100.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (longest - dist) * 100 / longest
}
