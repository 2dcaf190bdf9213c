package linematch

import (
	"strings"
	"unicode"
)

// Normalizer maps raw text to the canonical form lines are compared in.
// Implementations must be idempotent: n(n(s)) == n(s).
type Normalizer func(string) string

// Danda punctuation shared by Gurmukhi and Devanagari text.
const (
	danda       = '\u0964' // ।
	doubleDanda = '\u0965' // ॥
)

// Script digit ranges.
var (
	gurmukhiDigits   = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0A66, Hi: 0x0A6F, Stride: 1}}}
	devanagariDigits = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0966, Hi: 0x096F, Stride: 1}}}
)

// latinPunct is the common punctuation stripped by every normalizer.
const latinPunct = `.:;?!'"` + "`" + `~@#$%^&*()_+=<>|{}[]-\/`

// Identity returns its input unchanged.
func Identity(s string) string { return s }

// NormalizeGurmukhi strips Gurmukhi and Latin digits, commas, dandas and
// common punctuation, collapses whitespace and lowercases the result.
func NormalizeGurmukhi(s string) string {
	return normalize(s, gurmukhiDigits)
}

// NormalizeDevanagari is [NormalizeGurmukhi] for Devanagari text: it strips
// Devanagari digits instead of Gurmukhi ones.
func NormalizeDevanagari(s string) string {
	return normalize(s, devanagariDigits)
}

// NormalizeLatin strips Latin digits, commas, dandas and common punctuation,
// collapses whitespace and lowercases the result.
func NormalizeLatin(s string) string {
	return normalize(s, nil)
}

func normalize(s string, digits *unicode.RangeTable) string {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == danda, r == doubleDanda:
			return -1
		case strings.ContainsRune(latinPunct, r):
			return -1
		case digits != nil && unicode.Is(digits, r):
			return -1
		}
		return r
	}, s)
	return strings.ToLower(strings.Join(strings.Fields(stripped), " "))
}
