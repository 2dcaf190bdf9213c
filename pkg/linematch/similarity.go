package linematch

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Scorer rates how similar two normalized strings are. Scores lie in [0, 1]
// and 1 means identical.
type Scorer func(a, b string) float64

// EditDistance returns the Levenshtein distance between a and b counted in
// runes. Insertion, deletion and substitution each cost 1. Memory use is a
// single row of len(b)+1 integers.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			up := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(up+1, row[j-1]+1, diag+cost)
			diag = up
		}
	}
	return row[len(rb)]
}

// Similarity is the Levenshtein ratio 1 - d/max(len(a), len(b), 1) with
// lengths in runes. Two empty strings are a perfect match.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1
	}
	return 1 - float64(EditDistance(a, b))/float64(max(la, lb, 1))
}

// LevenshteinScorer is the default [Scorer]; it is [Similarity].
func LevenshteinScorer(a, b string) float64 {
	return Similarity(a, b)
}

// JaroWinklerScorer scores with Jaro-Winkler similarity, which favours
// shared prefixes. It suits snippets that capture only the start of a line.
func JaroWinklerScorer(a, b string) float64 {
	switch {
	case a == b:
		return 1
	case a == "" || b == "":
		return 0
	}
	return matchr.JaroWinkler(a, b, false)
}
