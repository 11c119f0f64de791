// Package match decides whether a candidate movie is already in a user's
// watch history, tolerating typos and accented spellings.
package match

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"recommender-workers/internal/models"
)

// DefaultCutoff is the minimum similarity ratio for the fuzzy fallback.
const DefaultCutoff = 85

// foldTransformer strips combining marks so "Amélie" and "Amelie" compare
// equal in the fallback path. Scripts are never transliterated.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Matcher indexes a watch history for repeated lookups. The fast path is an
// exact lookup on normalized title plus year; only misses pay for the
// levenshtein scan.
type Matcher struct {
	cutoff  int
	exact   map[exactKey]struct{}
	watched []foldedTitle
}

type exactKey struct {
	title string
	year  int
}

type foldedTitle struct {
	title string
	year  int
}

// NewMatcher builds a matcher over the watched titles. A cutoff of 0 uses
// DefaultCutoff.
func NewMatcher(watched []models.WatchedTitle, cutoff int) *Matcher {
	if cutoff == 0 {
		cutoff = DefaultCutoff
	}

	m := &Matcher{
		cutoff:  cutoff,
		exact:   make(map[exactKey]struct{}, len(watched)),
		watched: make([]foldedTitle, 0, len(watched)),
	}
	for _, w := range watched {
		norm := Normalize(w.Title)
		m.exact[exactKey{title: norm, year: w.Year}] = struct{}{}
		m.watched = append(m.watched, foldedTitle{title: Fold(norm), year: w.Year})
	}
	return m
}

// Matches reports whether the title/year pair refers to a watched movie:
// either an exact normalized title and year match, or a similarity ratio at
// or above the cutoff with the years at most one apart.
func (m *Matcher) Matches(title string, year int) bool {
	norm := Normalize(title)
	if _, ok := m.exact[exactKey{title: norm, year: year}]; ok {
		return true
	}

	folded := Fold(norm)
	for _, w := range m.watched {
		diff := year - w.year
		if diff < -1 || diff > 1 {
			continue
		}
		if Ratio(folded, w.title) >= m.cutoff {
			return true
		}
	}
	return false
}

// Normalize lowercases and trims a title for comparison.
func Normalize(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Fold removes diacritics for the similarity computation.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// Ratio is a similarity percentage in [0, 100] derived from levenshtein
// distance over the longer string's length. Two empty strings are identical.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}

	dist := levenshtein.ComputeDistance(a, b)
	return int(100 * (1 - float64(dist)/float64(maxLen)))
}
