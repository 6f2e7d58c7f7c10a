// Package search ranks content library names against a GM's typed query.
//
// Ranking combines three signals:
//
//  1. Substring: a name containing the query (case-insensitive) scores 1.
//  2. Phonetic: Double Metaphone codes of the query tokens overlap the
//     name's codes and the Jaro-Winkler similarity reaches the phonetic
//     threshold (default 0.70). This catches spellings like "gobbline".
//  3. Fuzzy: without phonetic overlap, the Jaro-Winkler similarity must
//     reach the higher fuzzy threshold (default 0.85).
//
// Multi-word names ("Jagged Knife Bandit") are compared on the full string,
// the space-stripped string and the best token pair.
package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching name. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a name without
// phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher ranks names. It is read-only after construction and safe for
// concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match is one ranked name.
type Match struct {
	// Index is the position of the name in the slice passed to [Matcher.Rank].
	Index int
	Name  string
	Score float64
}

// Rank returns the names matching query, best first. Ties keep input order.
// An empty query matches every name with score 1.
func (m *Matcher) Rank(query string, names []string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]Match, len(names))
		for i, n := range names {
			out[i] = Match{Index: i, Name: n, Score: 1}
		}
		return out
	}

	qTokens := strings.Fields(q)
	qCodes := codesForTokens(qTokens)

	var out []Match
	for i, name := range names {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		if strings.Contains(lower, q) {
			out = append(out, Match{Index: i, Name: name, Score: 1})
			continue
		}

		tokens := strings.Fields(lower)
		score := bestJWScore(qTokens, tokens, q, lower)
		threshold := m.fuzzyThreshold
		if codesOverlap(qCodes, codesForTokens(tokens)) {
			threshold = m.phoneticThreshold
		}
		if score >= threshold {
			out = append(out, Match{Index: i, Name: name, Score: score})
		}
	}

	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings and every token pair.
func bestJWScore(queryTokens, nameTokens []string, queryFull, nameFull string) float64 {
	score := matchr.JaroWinkler(queryFull, nameFull, false)

	if len(queryTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(queryTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}

	for _, qt := range queryTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(qt, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
