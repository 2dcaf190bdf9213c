// Package follow tracks a live recognition session against a reference
// corpus.
//
// A [Follower] reads transcripts from an [stt.SessionHandle] in order and
// emits one [Update] per transcript. Partial results become the match
// snippet and are aligned against the active corpus for the session
// language; a final result closes the current phrase so the next partial
// starts a fresh snippet.
//
//	f := follow.New(session, lang.PunjabiIN, registry,
//	    follow.WithMinScore(0.4),
//	)
//	go f.Run(ctx)
//	for u := range f.Updates() {
//	    fmt.Println(u.Latin, u.Line)
//	}
package follow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/kirtan/internal/corpus"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/linematch"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
	"github.com/MrWong99/kirtan/pkg/translit"
)

// ErrAlreadyRunning is returned by [Follower.Run] when called more than once.
var ErrAlreadyRunning = errors.New("follow: already running")

// Corpora looks up the active corpus for a language. [corpus.Registry]
// implements it.
type Corpora interface {
	Get(tag lang.Tag) (*corpus.Corpus, bool)
}

// Update is the follower state after one transcript.
type Update struct {
	// Transcript is the finals so far plus the current partial, cut to the
	// configured tail length.
	Transcript string

	// Latin is Transcript transliterated to Latin script for languages
	// written in Gurmukhi, and Transcript itself otherwise.
	Latin string

	// Snippet is the text that was matched. Empty after a final.
	Snippet string

	// Match is the best corpus line for Snippet. Nil when nothing was
	// matched or the best score was below the minimum.
	Match *linematch.Match

	// Line, PrevLine and NextLine are the corpus text at Match.Index and
	// its neighbours. Empty when there is no such line.
	Line     string
	PrevLine string
	NextLine string

	// LineLatin, PrevLineLatin and NextLineLatin render the lines above in
	// Latin script. Set only for languages written in Gurmukhi.
	LineLatin     string
	PrevLineLatin string
	NextLineLatin string

	// Final reports whether the transcript that produced this update was a
	// final result.
	Final bool
}

// Option is a functional option for [New].
type Option func(*Follower)

// WithMinScore drops matches scoring below s. Default: 0 (report every
// best line).
func WithMinScore(s float64) Option {
	return func(f *Follower) { f.minScore = s }
}

// WithScorer sets the similarity metric. Default: [linematch.LevenshteinScorer].
func WithScorer(s linematch.Scorer) Option {
	return func(f *Follower) { f.scorer = s }
}

// WithSnippetMax limits the snippet to its final n runes. Default:
// [DefaultSnippetMax].
func WithSnippetMax(n int) Option {
	return func(f *Follower) { f.snippetMax = n }
}

// WithTranscriptMax limits the running transcript to its final n runes.
// Default: [DefaultTranscriptMax].
func WithTranscriptMax(n int) Option {
	return func(f *Follower) { f.transcriptMax = n }
}

// WithMetrics records follower metrics to m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(f *Follower) { f.metrics = m }
}

// WithBuffer sets the capacity of the Updates channel. Default: 16.
func WithBuffer(n int) Option {
	return func(f *Follower) { f.buffer = n }
}

// Follower turns one recognition session into a stream of [Update] values.
// It is driven by a single goroutine ([Follower.Run]).
type Follower struct {
	session  stt.SessionHandle
	language lang.Tag
	corpora  Corpora
	matcher  *linematch.Matcher
	metrics  *observe.Metrics

	minScore      float64
	scorer        linematch.Scorer
	snippetMax    int
	transcriptMax int
	buffer        int

	out     chan Update
	running atomic.Bool

	// Owned by the Run goroutine.
	committed string
	snippet   string
}

// New returns a Follower for session. Transcripts are matched against the
// corpus that corpora holds for language at the time each partial arrives,
// so corpus reloads take effect on the next partial.
func New(session stt.SessionHandle, language lang.Tag, corpora Corpora, opts ...Option) *Follower {
	f := &Follower{
		session:       session,
		language:      language,
		corpora:       corpora,
		snippetMax:    DefaultSnippetMax,
		transcriptMax: DefaultTranscriptMax,
		buffer:        16,
	}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	f.matcher = linematch.New(
		linematch.WithNormalizer(language.Normalizer()),
		linematch.WithScorer(f.scorer),
	)
	f.out = make(chan Update, f.buffer)
	return f
}

// Updates returns the update stream. It is closed when Run returns.
func (f *Follower) Updates() <-chan Update { return f.out }

// Run consumes the session until its transcript channel closes or ctx is
// cancelled. It returns nil when the session ended and ctx.Err() on
// cancellation. Run does not close the session.
func (f *Follower) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(f.out)

	ctx, span, log := observe.StartLanguageSpan(ctx, "follow.session", string(f.language))
	defer span.End()

	f.metrics.ActiveFollowers.Add(ctx, 1)
	defer f.metrics.ActiveFollowers.Add(context.WithoutCancel(ctx), -1)

	log.Debug("follower started")

	transcripts := f.session.Transcripts()
	for {
		select {
		case <-ctx.Done():
			log.Debug("follower cancelled")
			return ctx.Err()
		case t, ok := <-transcripts:
			if !ok {
				log.Debug("session ended")
				return nil
			}
			u := f.step(ctx, log, t)
			select {
			case f.out <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// step folds one transcript into the follower state.
func (f *Follower) step(ctx context.Context, log *slog.Logger, t stt.Transcript) Update {
	text := strings.TrimSpace(t.Text)

	var interim string
	if t.IsFinal {
		if text != "" {
			f.committed = LimitTail(strings.TrimSpace(f.committed+" "+text), f.transcriptMax)
		}
		f.snippet = ""
	} else {
		interim = text
		if s := LimitTail(interim, f.snippetMax); s != "" && s != f.snippet {
			f.snippet = s
		}
	}

	u := Update{
		Transcript: f.transcript(interim),
		Snippet:    f.snippet,
		Final:      t.IsFinal,
	}
	u.Latin = u.Transcript
	if f.language.Transliterates() && translit.ContainsGurmukhi(u.Transcript) {
		u.Latin = translit.Transliterate(u.Transcript)
		f.metrics.RecordTransliteration(ctx, "follow")
	}

	if !t.IsFinal && f.snippet != "" {
		f.match(ctx, log, &u)
	}
	return u
}

func (f *Follower) transcript(interim string) string {
	full := f.committed
	if interim != "" {
		if full != "" {
			full += " "
		}
		full += interim
	}
	return LimitTail(full, f.transcriptMax)
}

// match aligns u.Snippet against the active corpus and fills in the match
// fields of u.
func (f *Follower) match(ctx context.Context, log *slog.Logger, u *Update) {
	language := string(f.language)
	c, ok := f.corpora.Get(f.language)
	if !ok {
		f.metrics.RecordMatch(ctx, language, observe.StatusNoCorpus, 0, 0)
		return
	}

	start := time.Now()
	m, err := f.matcher.Match(c.Lines, u.Snippet)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		f.metrics.RecordMatch(ctx, language, observe.StatusError, elapsed, 0)
		log.Warn("match failed", "corpus", c.Name, "err", err)
		return
	}
	if m.Score < f.minScore {
		f.metrics.RecordMatch(ctx, language, observe.StatusBelow, elapsed, m.Score)
		return
	}
	f.metrics.RecordMatch(ctx, language, observe.StatusMatched, elapsed, m.Score)

	u.Match = &m
	u.Line = c.Lines[m.Index]
	if m.HasPrev() {
		u.PrevLine = c.Lines[m.Prev]
	}
	if m.HasNext() {
		u.NextLine = c.Lines[m.Next]
	}
	if f.language.Transliterates() {
		u.LineLatin = translit.Transliterate(u.Line)
		u.PrevLineLatin = translit.Transliterate(u.PrevLine)
		u.NextLineLatin = translit.Transliterate(u.NextLine)
		f.metrics.RecordTransliteration(ctx, "follow")
	}
	log.Debug("matched line", "corpus", c.Name, "index", m.Index, "score", m.Score)
}
