// Package lang enumerates the recognition languages the follower accepts and
// maps each one to the script-specific text handling it needs.
package lang

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/kirtan/pkg/linematch"
)

// ErrUnknownTag is returned by [Parse] for tags outside the supported set.
var ErrUnknownTag = errors.New("lang: unknown language tag")

// Tag is a BCP-47 locale tag as sent by the speech recognizer.
type Tag string

const (
	PunjabiIN Tag = "pa-IN"
	HindiIN   Tag = "hi-IN"
	EnglishIN Tag = "en-IN"
	EnglishUS Tag = "en-US"
)

// Script identifies the writing system recognized text arrives in.
type Script string

const (
	ScriptGurmukhi   Script = "gurmukhi"
	ScriptDevanagari Script = "devanagari"
	ScriptLatin      Script = "latin"
)

var all = []Tag{PunjabiIN, HindiIN, EnglishIN, EnglishUS}

// All returns the supported tags in display order.
func All() []Tag {
	out := make([]Tag, len(all))
	copy(out, all)
	return out
}

// Parse returns the supported tag matching s, ignoring case and surrounding
// whitespace.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	for _, t := range all {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTag, s)
}

// IsValid reports whether t is one of the supported tags.
func (t Tag) IsValid() bool {
	for _, v := range all {
		if t == v {
			return true
		}
	}
	return false
}

// Script returns the script recognized text for t is written in.
func (t Tag) Script() Script {
	switch t.base() {
	case "pa":
		return ScriptGurmukhi
	case "hi":
		return ScriptDevanagari
	}
	return ScriptLatin
}

// Normalizer returns the line-matching normalization for t's script.
func (t Tag) Normalizer() linematch.Normalizer {
	switch t.Script() {
	case ScriptGurmukhi:
		return linematch.NormalizeGurmukhi
	case ScriptDevanagari:
		return linematch.NormalizeDevanagari
	}
	return linematch.NormalizeLatin
}

// Transliterates reports whether recognized text for t gets a Latin
// rendering next to the original.
func (t Tag) Transliterates() bool {
	return t.Script() == ScriptGurmukhi
}

func (t Tag) base() string {
	b, _, _ := strings.Cut(strings.ToLower(string(t)), "-")
	return b
}
