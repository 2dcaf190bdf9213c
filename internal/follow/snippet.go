package follow

import (
	"strings"
	"unicode/utf8"
)

// Default tail limits, in runes.
const (
	DefaultTranscriptMax = 500
	DefaultSnippetMax    = 140
)

// RecentSnippet returns the part of the recognized speech that should be
// matched. A non-blank interim result always wins. Otherwise the last
// non-blank phrase of full is used, where phrases end at a danda, a double
// danda or a line break, cut to its final limit runes. Separators and
// whitespace trailing the last phrase are ignored.
func RecentSnippet(full, interim string, limit int) string {
	if s := strings.TrimSpace(interim); s != "" {
		return s
	}
	parts := strings.FieldsFunc(full, isPhraseBreak)
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return LimitTail(p, limit)
		}
	}
	return ""
}

func isPhraseBreak(r rune) bool {
	return r == '।' || r == '॥' || r == '\n'
}

// LimitTail returns the last limit runes of s. A limit of zero or less
// returns s unchanged.
func LimitTail(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	i := len(s)
	for n := 0; n < limit && i > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}
