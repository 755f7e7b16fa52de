// Package search implements the fuzzy matching used by the activity
// search bar: Levenshtein-based similarity with relevance scoring over
// diacritic-insensitive normalized text.
package search

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes, so
// "échecs" normalizes to "echecs".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, trims, and strips diacritics.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Levenshtein returns the edit distance between a and b with unit costs
// for substitution, insertion, and deletion.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two-row DP over the (len(a)+1) x (len(b)+1) table.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Match reports whether target matches term. Exact substring containment
// always matches. Terms shorter than 4 runes get no further tolerance
// (too short, too noisy). Longer terms match a word prefix, and terms of
// at least 6 runes additionally tolerate a single edit against words of
// near-identical length.
func Match(term, target string) bool {
	t := Normalize(term)
	tgt := Normalize(target)

	if strings.Contains(tgt, t) {
		return true
	}

	termLen := len([]rune(t))
	if termLen < 4 {
		return false
	}

	allowedErrors := 0
	if termLen >= 6 {
		allowedErrors = 1
	}

	for _, word := range strings.Fields(tgt) {
		if strings.HasPrefix(word, t) {
			return true
		}
		if abs(len([]rune(word))-termLen) <= allowedErrors {
			if Levenshtein(t, word) <= allowedErrors {
				return true
			}
		}
	}
	return false
}

// scoreCeiling bounds relevance scores when nothing resembles the term.
const scoreCeiling = 1 << 30

// RelevanceScore orders matches: 0 for a prefix match, 1 for containment,
// otherwise the minimum over target words of a blend of prefix proximity,
// whole-word edit distance (+2), and best substring edit distance (+1).
// Lower is better. It ranks results; Match gates inclusion.
func RelevanceScore(term, target string) int {
	t := []rune(Normalize(term))
	tgt := Normalize(target)

	if strings.HasPrefix(tgt, string(t)) {
		return 0
	}
	if strings.Contains(tgt, string(t)) {
		return 1
	}

	minScore := scoreCeiling
	for _, word := range strings.Fields(tgt) {
		if len(t) > 0 && strings.HasPrefix(word, string(t[:len(t)-1])) {
			minScore = min(minScore, 2)
		}

		minScore = min(minScore, Levenshtein(string(t), word)+2)

		w := []rune(word)
		for i := 0; i+len(t) <= len(w); i++ {
			sub := string(w[i : i+len(t)])
			minScore = min(minScore, Levenshtein(string(t), sub)+1)
		}
	}
	return minScore
}

// Field is a named string value to search against.
type Field struct {
	Name  string
	Value string
}

// Result pairs a matched item with its best score and the field that
// produced it.
type Result[T any] struct {
	Item         T
	Score        int
	MatchedField string
}

// Search runs fuzzy matching over items. For each item the best (lowest)
// score across its fields wins; items with no matching field are excluded.
// Results come back sorted ascending by score and truncated to maxResults.
// An empty or whitespace-only term yields an empty list by contract.
func Search[T any](items []T, term string, fields func(T) []Field, maxResults int) []Result[T] {
	if strings.TrimSpace(term) == "" {
		return nil
	}

	var results []Result[T]
	for _, item := range items {
		bestScore := scoreCeiling
		matchedField := ""

		for _, f := range fields(item) {
			if f.Value == "" || !Match(term, f.Value) {
				continue
			}
			if score := RelevanceScore(term, f.Value); score < bestScore {
				bestScore = score
				matchedField = f.Name
			}
		}

		if bestScore < scoreCeiling {
			results = append(results, Result[T]{Item: item, Score: bestScore, MatchedField: matchedField})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func min3(a, b, c int) int {
	return min(a, min(b, c))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
