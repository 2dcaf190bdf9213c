// Package stt defines the boundary to the speech recognizer that feeds the
// line follower.
//
// Recognition itself happens outside this module (in a browser, on a device
// or in a hosted service). What crosses the boundary is already-recognized
// text: a [SessionHandle] delivers an ordered stream of partial and final
// [Transcript] values for one listener, in one language.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/kirtan/pkg/lang"
)

// StreamConfig describes a new recognition session.
type StreamConfig struct {
	// Language is the recognition language. Transcripts carry it back.
	Language lang.Tag
}

// SessionHandle is an open recognition session.
//
// Partials and finals share one channel so that their relative order is
// preserved: a final must be observed before the partials of the next
// phrase. Callers must call Close when done.
type SessionHandle interface {
	// Transcripts returns the ordered stream of results. The channel is
	// closed when the session ends.
	Transcripts() <-chan Transcript

	// Close ends the session and releases its resources. After Close returns
	// the Transcripts channel is closed or will be closed shortly. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider opens recognition sessions.
type Provider interface {
	// StartStream opens a session with the given configuration. The caller
	// owns the returned handle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
