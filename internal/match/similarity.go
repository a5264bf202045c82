// Package match ranks catalog entries against free-text queries and turns a
// ranking into either a bounded search result or a single launch decision.
package match

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize folds case and width and drops everything that is not a letter
// or digit, so "Big-Query" and "bigquery" compare equal.
func normalize(s string) []rune {
	// Casers carry state, so each call gets its own.
	s = cases.Fold().String(norm.NFKC.String(s))
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return out
}

// Similarity returns the Dice coefficient of the character bigrams of a and b,
// in [0,1]. It is symmetric and Similarity(s, s) == 1 for every s.
func Similarity(a, b string) float64 {
	ra, rb := normalize(a), normalize(b)
	if string(ra) == string(rb) {
		return 1
	}
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[string]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[string(ra[i:i+2])]++
	}

	shared := 0
	for i := 0; i < len(rb)-1; i++ {
		key := string(rb[i : i+2])
		if n := bigrams[key]; n > 0 {
			bigrams[key] = n - 1
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ra)+len(rb)-2)
}
