// Package linematch aligns a short speech fragment against an ordered
// reference corpus of lines.
//
// Every call normalizes the query once, normalizes and scores every corpus
// line against it, and returns the best line together with its neighbours:
//
//	m, err := linematch.FindBestMatch(lines, snippet, linematch.NormalizeGurmukhi)
//	if err != nil { … }
//	fmt.Println(lines[m.Index], m.Score)
//
// Nothing is cached between calls and the corpus is never copied or
// modified, so a [Matcher] and the package-level functions are safe for
// concurrent use as long as callers do not mutate the lines they pass in.
package linematch

import "errors"

// ErrEmptyCorpus is returned when matching against a corpus without lines.
var ErrEmptyCorpus = errors.New("linematch: empty corpus")

// NoLine is the value of [Match.Prev] and [Match.Next] at the corpus ends.
const NoLine = -1

// Match is the result of aligning a query against a corpus.
type Match struct {
	// Index is the position of the best line in the corpus.
	Index int

	// Score is the similarity of the best line to the query, in [0, 1].
	Score float64

	// Prev is Index-1, or NoLine when the best line is the first one.
	Prev int

	// Next is Index+1, or NoLine when the best line is the last one.
	Next int
}

// HasPrev reports whether the matched line has a predecessor.
func (m Match) HasPrev() bool { return m.Prev != NoLine }

// HasNext reports whether the matched line has a successor.
func (m Match) HasNext() bool { return m.Next != NoLine }

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithNormalizer sets the normalization applied to the query and to every
// line. A nil normalizer is ignored. Default: [Identity].
func WithNormalizer(n Normalizer) Option {
	return func(m *Matcher) {
		if n != nil {
			m.normalize = n
		}
	}
}

// WithScorer sets the similarity metric. A nil scorer is ignored. Default:
// [LevenshteinScorer].
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.score = s
		}
	}
}

// Matcher scores corpus lines against a query. It is read-only after
// construction.
type Matcher struct {
	normalize Normalizer
	score     Scorer
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		normalize: Identity,
		score:     LevenshteinScorer,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the line of lines most similar to query.
//
// Lines are scanned in order and a line only replaces the current best when
// its score is strictly greater, so on ties the lowest index wins. Returns
// [ErrEmptyCorpus] when lines is empty.
func (m *Matcher) Match(lines []string, query string) (Match, error) {
	if len(lines) == 0 {
		return Match{}, ErrEmptyCorpus
	}

	q := m.normalize(query)
	best, bestScore := 0, -1.0
	for i, line := range lines {
		if s := m.score(m.normalize(line), q); s > bestScore {
			best, bestScore = i, s
		}
	}

	res := Match{Index: best, Score: bestScore, Prev: NoLine, Next: NoLine}
	if best > 0 {
		res.Prev = best - 1
	}
	if best < len(lines)-1 {
		res.Next = best + 1
	}
	return res, nil
}

// FindBestMatch is shorthand for New(WithNormalizer(normalize)).Match with
// the default Levenshtein scorer. A nil normalize means [Identity].
func FindBestMatch(lines []string, query string, normalize Normalizer) (Match, error) {
	return New(WithNormalizer(normalize)).Match(lines, query)
}
