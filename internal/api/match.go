package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/kirtan/internal/follow"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/linematch"
	"github.com/MrWong99/kirtan/pkg/translit"
)

type transliterateRequest struct {
	Text string `json:"text"`
}

type transliterateResponse struct {
	Text  string `json:"text"`
	Latin string `json:"latin"`
}

func (s *Server) handleTransliterate(w http.ResponseWriter, r *http.Request) {
	var req transliterateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.metrics.RecordTransliteration(r.Context(), "api")
	writeJSON(w, http.StatusOK, transliterateResponse{
		Text:  req.Text,
		Latin: translit.Transliterate(req.Text),
	})
}

type matchRequest struct {
	Language string `json:"language"`

	// Text is the recognized speech. Only its last phrase is matched.
	Text string `json:"text"`

	// Interim, when not blank, is matched instead of Text.
	Interim string `json:"interim,omitempty"`
}

// lineMatch is the wire form of a matched line with its neighbours. Prev and
// Next are -1 at the corpus ends. The *_latin fields are only set for
// languages written in Gurmukhi.
type lineMatch struct {
	Index         int     `json:"index"`
	Score         float64 `json:"score"`
	Prev          int     `json:"prev"`
	Next          int     `json:"next"`
	Line          string  `json:"line"`
	PrevLine      string  `json:"prev_line,omitempty"`
	NextLine      string  `json:"next_line,omitempty"`
	LineLatin     string  `json:"line_latin,omitempty"`
	PrevLineLatin string  `json:"prev_line_latin,omitempty"`
	NextLineLatin string  `json:"next_line_latin,omitempty"`
}

func newLineMatch(m linematch.Match, lines []string, latin bool) lineMatch {
	lm := lineMatch{
		Index: m.Index,
		Score: m.Score,
		Prev:  m.Prev,
		Next:  m.Next,
		Line:  lines[m.Index],
	}
	if m.HasPrev() {
		lm.PrevLine = lines[m.Prev]
	}
	if m.HasNext() {
		lm.NextLine = lines[m.Next]
	}
	if latin {
		lm.LineLatin = translit.Transliterate(lm.Line)
		lm.PrevLineLatin = translit.Transliterate(lm.PrevLine)
		lm.NextLineLatin = translit.Transliterate(lm.NextLine)
	}
	return lm
}

type matchResponse struct {
	lineMatch

	Corpus  string `json:"corpus"`
	Snippet string `json:"snippet"`
	Latin   string `json:"latin"`

	// BelowThreshold is true when Score is under the configured minimum. The
	// best line is reported anyway.
	BelowThreshold bool `json:"below_threshold"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tag, err := lang.Parse(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, span, log := observe.StartLanguageSpan(r.Context(), "api.match", string(tag))
	defer span.End()

	c, ok := s.corpora.Get(tag)
	if !ok {
		s.metrics.RecordMatch(ctx, string(tag), observe.StatusNoCorpus, 0, 0)
		writeError(w, http.StatusNotFound, fmt.Errorf("no corpus for language %q", tag))
		return
	}

	st := s.Settings()
	snippet := follow.RecentSnippet(req.Text, req.Interim, st.SnippetMax)
	if snippet == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is empty"))
		return
	}

	matcher := linematch.New(
		linematch.WithNormalizer(tag.Normalizer()),
		linematch.WithScorer(st.Scorer),
	)
	start := time.Now()
	m, err := matcher.Match(c.Lines, snippet)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		s.metrics.RecordMatch(ctx, string(tag), observe.StatusError, elapsed, 0)
		log.Error("match failed", "corpus", c.Name, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	below := m.Score < st.MinScore
	status := observe.StatusMatched
	if below {
		status = observe.StatusBelow
	}
	s.metrics.RecordMatch(ctx, string(tag), status, elapsed, m.Score)

	latin := snippet
	if tag.Transliterates() {
		latin = translit.Transliterate(snippet)
		s.metrics.RecordTransliteration(ctx, "api")
	}

	writeJSON(w, http.StatusOK, matchResponse{
		lineMatch:      newLineMatch(m, c.Lines, tag.Transliterates()),
		Corpus:         c.Name,
		Snippet:        snippet,
		Latin:          latin,
		BelowThreshold: below,
	})
}

type corpusInfo struct {
	Language lang.Tag `json:"language"`
	Name     string   `json:"name"`
	Lines    int      `json:"lines"`
}

type corporaResponse struct {
	Corpora []corpusInfo `json:"corpora"`
}

func (s *Server) handleCorpora(w http.ResponseWriter, _ *http.Request) {
	resp := corporaResponse{Corpora: []corpusInfo{}}
	for _, tag := range s.corpora.Languages() {
		c, ok := s.corpora.Get(tag)
		if !ok {
			continue
		}
		resp.Corpora = append(resp.Corpora, corpusInfo{Language: tag, Name: c.Name, Lines: len(c.Lines)})
	}
	writeJSON(w, http.StatusOK, resp)
}
