package stt

import (
	"time"

	"github.com/MrWong99/kirtan/pkg/lang"
)

// Transcript is one recognition result delivered by a session. Both interim
// (partial) and final results use this type.
type Transcript struct {
	// Text is the recognized speech.
	Text string

	// IsFinal reports whether the recognizer committed to Text. Partial
	// results may be revised by later ones; finals never are.
	IsFinal bool

	// Confidence is the recognizer's overall confidence (0.0–1.0). Zero when
	// the recognizer does not report one.
	Confidence float64

	// Words contains per-word detail when the recognizer provides it.
	Words []WordDetail

	// Language is the tag the session was started with.
	Language lang.Tag

	// Timestamp marks when the result was produced, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance, when known.
	Duration time.Duration
}

// WordDetail holds per-word metadata from recognizers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
