// Package api serves the kirtan HTTP surface: one-shot transliteration and
// line matching as JSON endpoints, and live following over a WebSocket.
//
// Routes:
//
//   - POST /v1/transliterate  Gurmukhi text to Latin script.
//   - POST /v1/match          best corpus line for a snippet.
//   - GET  /v1/corpora        active corpora by language.
//   - GET  /v1/follow         WebSocket; transcript frames in, update frames out.
//
// Errors are JSON objects with a single "error" field.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/MrWong99/kirtan/internal/corpus"
	"github.com/MrWong99/kirtan/internal/follow"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/linematch"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Corpora is the read side of [corpus.Registry].
type Corpora interface {
	Get(tag lang.Tag) (*corpus.Corpus, bool)
	Languages() []lang.Tag
}

// Settings are the matcher settings applied to new requests and new follow
// sessions.
type Settings struct {
	// Scorer is the similarity metric. Nil selects [linematch.LevenshteinScorer].
	Scorer linematch.Scorer

	// MinScore is the threshold below which a match is not reported.
	MinScore float64

	// SnippetMax and TranscriptMax are tail limits in runes.
	SnippetMax    int
	TranscriptMax int
}

// DefaultSettings returns the settings used until [Server.SetSettings] is
// called.
func DefaultSettings() Settings {
	return Settings{
		Scorer:        linematch.LevenshteinScorer,
		SnippetMax:    follow.DefaultSnippetMax,
		TranscriptMax: follow.DefaultTranscriptMax,
	}
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics records API metrics to m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSettings sets the initial matcher settings.
func WithSettings(st Settings) Option {
	return func(s *Server) { s.settings.Store(&st) }
}

// WithOriginPatterns allows cross-origin WebSocket connections from hosts
// matching the given patterns (e.g. "*.example.com").
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// Server holds the handlers. It is safe for concurrent use.
type Server struct {
	corpora        Corpora
	metrics        *observe.Metrics
	originPatterns []string
	settings       atomic.Pointer[Settings]
}

// New returns a Server reading corpora from c.
func New(c Corpora, opts ...Option) *Server {
	s := &Server{corpora: c}
	def := DefaultSettings()
	s.settings.Store(&def)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetSettings replaces the matcher settings. Follow sessions already
// running keep their settings.
func (s *Server) SetSettings(st Settings) {
	s.settings.Store(&st)
}

// Settings returns the current matcher settings.
func (s *Server) Settings() Settings {
	return *s.settings.Load()
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/transliterate", s.handleTransliterate)
	mux.HandleFunc("POST /v1/match", s.handleMatch)
	mux.HandleFunc("GET /v1/corpora", s.handleCorpora)
	mux.HandleFunc("GET /v1/follow", s.handleFollow)
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// decodeJSON reads a single JSON object from the request body into v.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
