// Package textmatch normalizes free-text vehicle fields and scores their similarity.
package textmatch

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

var annotationRegex = regexp.MustCompile(`\(.*?\)`)

// Normalize strips parenthesized annotations, collapses whitespace and lowercases.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = annotationRegex.ReplaceAllString(s, " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Similarity returns the sequence-match ratio of the normalized forms, in [0, 1].
// Equal normalized strings score 1.0, including two empty strings.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1.0
	}
	// The matcher is order sensitive on ties; a fixed order keeps the score symmetric.
	if nb < na {
		na, nb = nb, na
	}
	m := difflib.NewMatcher(splitChars(na), splitChars(nb))
	return m.Ratio()
}

// AtLeast reports whether Similarity(a, b) clears threshold.
func AtLeast(a, b string, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
