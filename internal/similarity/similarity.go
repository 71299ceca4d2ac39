// Package similarity holds the pure string-matching primitives used by
// identity resolution. No I/O, no state.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generic lodging vocabulary that carries no identity signal. Keyword
// extraction drops these so "Grand Hotel Paris" and "Grand Paris Resort"
// compare on what is left.
var stopWords = map[string]bool{
	"hotel": true, "hotels": true, "motel": true, "resort": true,
	"inn": true, "lodge": true, "suite": true, "suites": true,
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "at": true, "by": true, "de": true, "la": true,
	"le": true, "el": true,
	"boutique": true, "luxury": true, "spa": true,
}

// Normalize lowercases, strips diacritics, replaces punctuation with spaces
// and collapses whitespace. Total over any input; empty in, empty out.
func Normalize(s string) string {
	s = strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Keywords normalizes name, splits it and drops single-character tokens and
// stop words. Order is preserved but irrelevant downstream.
func Keywords(name string) []string {
	var out []string
	for _, tok := range strings.Fields(Normalize(name)) {
		if utf8.RuneCountInString(tok) <= 1 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Jaccard is |A∩B| / |A∪B| over two keyword sequences. Empty union yields 0:
// with no shared vocabulary there is nothing to compare.
func Jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, w := range a {
		set[w] |= 1
	}
	for _, w := range b {
		set[w] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	var inter int
	for _, m := range set {
		if m == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// LevenshteinRatio is 1 minus the edit distance normalized by the longer
// string's rune length. Two empty strings are identical, ratio 1.0.
func LevenshteinRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(longer)
}
