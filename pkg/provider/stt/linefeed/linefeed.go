// Package linefeed turns already-recognized text into an stt session.
//
// Each non-blank input line becomes one [stt.Transcript]. A line starting
// with "~ " is a partial result, any other line is final:
//
//	~ ਸਤਿ
//	~ ਸਤਿ ਨਾਮੁ ਕਰ
//	ਸਤਿ ਨਾਮੁ ਕਰਤਾ ਪੁਰਖੁ
//
// This is how the CLI replays a captured recognizer log, and how tests
// drive the follower. No recognition is performed.
package linefeed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/kirtan/pkg/provider/stt"
)

// PartialPrefix marks a line as an interim result.
const PartialPrefix = "~ "

// Provider opens sessions that read from a single reader. Only one session
// can be started; the reader is consumed by it.
type Provider struct {
	mu      sync.Mutex
	r       io.Reader
	started bool
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// New returns a Provider reading lines from r.
func New(r io.Reader) *Provider {
	return &Provider{r: r}
}

// StartStream starts reading the underlying reader in a background
// goroutine. It fails when called a second time.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("linefeed: start stream: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil, errors.New("linefeed: reader already consumed")
	}
	p.started = true

	s := &Session{
		out:  make(chan stt.Transcript, 16),
		done: make(chan struct{}),
	}
	go s.read(ctx, p.r, cfg)
	return s, nil
}

// Session is a running line reader. It implements stt.SessionHandle.
type Session struct {
	out  chan stt.Transcript
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)

// Transcripts returns the stream of parsed lines.
func (s *Session) Transcripts() <-chan stt.Transcript { return s.out }

// Close stops delivering transcripts. The reader goroutine exits at its next
// send attempt. Safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Err returns the read error that ended the session, if any. It is only
// meaningful after the Transcripts channel has been closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) read(ctx context.Context, r io.Reader, cfg stt.StreamConfig) {
	defer close(s.out)

	start := time.Now()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		t, ok := ParseLine(sc.Text())
		if !ok {
			continue
		}
		t.Language = cfg.Language
		t.Timestamp = time.Since(start)

		select {
		case <-s.done:
			return
		default:
		}
		select {
		case s.out <- t:
		case <-s.done:
			return
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.setErr(fmt.Errorf("linefeed: read: %w", err))
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ParseLine converts one input line to a transcript. It reports false for
// blank lines.
func ParseLine(line string) (stt.Transcript, bool) {
	if text, ok := strings.CutPrefix(line, PartialPrefix); ok {
		text = strings.TrimSpace(text)
		return stt.Transcript{Text: text}, text != ""
	}
	text := strings.TrimSpace(line)
	return stt.Transcript{Text: text, IsFinal: true}, text != ""
}
