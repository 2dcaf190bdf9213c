package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/kirtan/internal/follow"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
)

// writeTimeout bounds a single update frame write.
const writeTimeout = 5 * time.Second

// transcriptFrame is a client to server message on /v1/follow.
type transcriptFrame struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// updateFrame is a server to client message on /v1/follow.
type updateFrame struct {
	Transcript string     `json:"transcript"`
	Latin      string     `json:"latin"`
	Snippet    string     `json:"snippet"`
	Final      bool       `json:"final"`
	Match      *lineMatch `json:"match,omitempty"`
}

func newUpdateFrame(u follow.Update) updateFrame {
	f := updateFrame{
		Transcript: u.Transcript,
		Latin:      u.Latin,
		Snippet:    u.Snippet,
		Final:      u.Final,
	}
	if u.Match != nil {
		f.Match = &lineMatch{
			Index:         u.Match.Index,
			Score:         u.Match.Score,
			Prev:          u.Match.Prev,
			Next:          u.Match.Next,
			Line:          u.Line,
			PrevLine:      u.PrevLine,
			NextLine:      u.NextLine,
			LineLatin:     u.LineLatin,
			PrevLineLatin: u.PrevLineLatin,
			NextLineLatin: u.NextLineLatin,
		}
	}
	return f
}

// wsSession adapts transcript frames read from a WebSocket to an
// [stt.SessionHandle] so the follower consumes them like any recognizer.
type wsSession struct {
	out  chan stt.Transcript
	done chan struct{}
	once sync.Once
}

var _ stt.SessionHandle = (*wsSession)(nil)

func newWSSession() *wsSession {
	return &wsSession{
		out:  make(chan stt.Transcript, 16),
		done: make(chan struct{}),
	}
}

func (s *wsSession) Transcripts() <-chan stt.Transcript { return s.out }

func (s *wsSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// readLoop reads transcript frames until the client closes the connection.
// It owns s.out and closes it on return. A normal close returns nil.
func (s *wsSession) readLoop(ctx context.Context, conn *websocket.Conn, tag lang.Tag, log *slog.Logger) error {
	defer close(s.out)

	start := time.Now()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var frame transcriptFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug("skipping malformed transcript frame", "err", err)
			continue
		}

		t := stt.Transcript{
			Text:      frame.Text,
			IsFinal:   frame.Final,
			Language:  tag,
			Timestamp: time.Since(start),
		}
		select {
		case s.out <- t:
		case <-s.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	tag, err := lang.Parse(r.URL.Query().Get("language"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		// Accept has already written the HTTP error response.
		observe.Logger(r.Context()).Debug("follow: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	log := observe.Logger(r.Context()).With("language", string(tag))
	log.Info("follow session started")

	st := s.Settings()
	sess := newWSSession()
	defer sess.Close()

	f := follow.New(sess, tag, s.corpora,
		follow.WithMinScore(st.MinScore),
		follow.WithScorer(st.Scorer),
		follow.WithSnippetMax(st.SnippetMax),
		follow.WithTranscriptMax(st.TranscriptMax),
		follow.WithMetrics(s.metrics),
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return sess.readLoop(ctx, conn, tag, log) })
	g.Go(func() error { return f.Run(ctx) })
	g.Go(func() error {
		for u := range f.Updates() {
			data, err := json.Marshal(newUpdateFrame(u))
			if err != nil {
				return err
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("follow session failed", "err", err)
		conn.Close(websocket.StatusInternalError, "follow failed")
		return
	}
	log.Info("follow session ended")
	conn.Close(websocket.StatusNormalClosure, "")
}
