// Package translit renders Gurmukhi text in a Latin phonetic approximation.
//
// Gurmukhi is an abugida: every consonant letter carries an inherent "a"
// that is replaced by a dependent vowel sign (matra), suppressed by a virama
// or left in place. [Transliterate] walks the input once, left to right,
// emitting one Latin token per letter and tracking at most one token whose
// inherent vowel is still unresolved. It never backtracks and never fails.
//
// The mapping tables are package-level and read-only, so all functions are
// safe for concurrent use.
package translit

import (
	"strings"
	"unicode"
)

// gurmukhiBlock is the Unicode block U+0A00–U+0A7F. The block is used
// rather than [unicode.Gurmukhi] because unassigned code points inside the
// block must also count as Gurmukhi for pass-through decisions.
var gurmukhiBlock = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: blockFirst, Hi: blockLast, Stride: 1}},
}

// IsGurmukhi reports whether r lies in the Gurmukhi Unicode block.
func IsGurmukhi(r rune) bool {
	return unicode.Is(gurmukhiBlock, r)
}

// ContainsGurmukhi reports whether s contains at least one code point from
// the Gurmukhi Unicode block.
func ContainsGurmukhi(s string) bool {
	return strings.IndexFunc(s, IsGurmukhi) >= 0
}

// Transliterate maps a Gurmukhi string to its Latin rendering.
//
// Input without any Gurmukhi code point is returned unchanged. Otherwise
// characters outside the block are copied verbatim, whitespace runs in the
// result are collapsed to single spaces and the result is trimmed.
func Transliterate(input string) string {
	if !ContainsGurmukhi(input) {
		return input
	}

	s := state{pending: none}
	for _, r := range input {
		s = s.step(r)
	}
	return strings.Join(strings.Fields(strings.Join(s.tokens, "")), " ")
}

// none marks the absence of a pending inherent vowel.
const none = -1

// state is the accumulator of the scan. pending is the index into tokens of
// the one token still ending in an unresolved inherent vowel, or none.
type state struct {
	tokens  []string
	pending int
}

// step consumes one rune and returns the next state.
func (s state) step(r rune) state {
	if !IsGurmukhi(r) {
		return s.emit(string(r))
	}
	if v, ok := independentVowels[r]; ok {
		return s.emit(v)
	}
	if c, ok := consonants[r]; ok {
		s = s.emit(c + inherent)
		s.pending = len(s.tokens) - 1
		return s
	}
	if m, ok := matras[r]; ok {
		return s.resolve(m)
	}

	switch r {
	case virama:
		if s.pending != none {
			s.tokens[s.pending] = strings.TrimSuffix(s.tokens[s.pending], inherent)
		}
		return s.clear()
	case bindi, tippi, candrabindu:
		if len(s.tokens) == 0 {
			return s.emit(nasal)
		}
		s.tokens[len(s.tokens)-1] += nasal
		return s.clear()
	}

	// Anything else in the block, a combining nukta included, passes through.
	return s.emit(string(r))
}

// emit appends a token that carries no pending vowel.
func (s state) emit(tok string) state {
	s.tokens = append(s.tokens, tok)
	return s.clear()
}

// resolve applies a matra. The inherent vowel of the pending token is
// replaced by vowel; without a pending token the matra stands alone.
func (s state) resolve(vowel string) state {
	if s.pending == none {
		return s.emit(vowel)
	}
	s.tokens[s.pending] = strings.TrimSuffix(s.tokens[s.pending], inherent) + vowel
	return s.clear()
}

func (s state) clear() state {
	s.pending = none
	return s
}
