// Package fuzzy scores company-name similarity in [0,1].
package fuzzy

import (
	"math"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Ratio is the normalized edit similarity of two strings.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

// TokenSetRatio compares the token sets of a and b, so word order and repeated or
// extra words in one name weigh less than in a plain Ratio.
func TokenSetRatio(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		if len(ta) == 0 && len(tb) == 0 {
			return 1
		}
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := joinNonEmpty(base, strings.Join(onlyA, " "))
	withB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := Ratio(withA, withB)
	if base != "" {
		if r := Ratio(base, withA); r > best {
			best = r
		}
		if r := Ratio(base, withB); r > best {
			best = r
		}
	}
	return best
}

// MaxInexactScore is the ceiling for names that are not identical, so a score of 1
// always means an exact match.
const MaxInexactScore = 0.99

// NameScore is 1 for identical names and the token-set ratio, capped at
// MaxInexactScore, otherwise.
func NameScore(a, b string) float64 {
	if a == b {
		return 1
	}
	return math.Min(TokenSetRatio(a, b), MaxInexactScore)
}

// Coverage is the share of a's distinct tokens that also appear in b.
func Coverage(a, b string) float64 {
	ta := tokenSet(a)
	if len(ta) == 0 {
		return 0
	}
	tb := tokenSet(b)
	hit := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(ta))
}

// SortedRatio is Ratio over the sorted, deduplicated tokens of a and b. Unlike
// TokenSetRatio it penalizes tokens present in only one name.
func SortedRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// Matcher adapts TokenSetRatio to the ports.NameMatcher contract.
type Matcher struct{}

func (Matcher) Similarity(a, b string) float64 {
	return TokenSetRatio(a, b)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToUpper(s)) {
		out[tok] = struct{}{}
	}
	return out
}

func sortedTokens(s string) string {
	set := tokenSet(s)
	toks := make([]string, 0, len(set))
	for tok := range set {
		toks = append(toks, tok)
	}
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
