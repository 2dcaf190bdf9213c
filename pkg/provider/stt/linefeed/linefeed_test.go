package linefeed_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
	"github.com/MrWong99/kirtan/pkg/provider/stt/linefeed"
)

func collect(t *testing.T, h stt.SessionHandle) []stt.Transcript {
	t.Helper()
	var out []stt.Transcript
	timeout := time.After(5 * time.Second)
	for {
		select {
		case tr, ok := <-h.Transcripts():
			if !ok {
				return out
			}
			out = append(out, tr)
		case <-timeout:
			t.Fatal("timed out waiting for transcripts")
		}
	}
}

func TestProvider_StreamsLines(t *testing.T) {
	t.Parallel()

	input := "~ ਸਤਿ\n\n~ ਸਤਿ ਨਾਮੁ\nਸਤਿ ਨਾਮੁ ਕਰਤਾ ਪੁਰਖੁ\n   \n"
	p := linefeed.New(strings.NewReader(input))

	h, err := p.StartStream(context.Background(), stt.StreamConfig{Language: lang.PunjabiIN})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	got := collect(t, h)
	want := []struct {
		text  string
		final bool
	}{
		{"ਸਤਿ", false},
		{"ਸਤਿ ਨਾਮੁ", false},
		{"ਸਤਿ ਨਾਮੁ ਕਰਤਾ ਪੁਰਖੁ", true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d transcripts, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Text != w.text || got[i].IsFinal != w.final {
			t.Errorf("transcript[%d] = {%q, final=%v}, want {%q, final=%v}",
				i, got[i].Text, got[i].IsFinal, w.text, w.final)
		}
		if got[i].Language != lang.PunjabiIN {
			t.Errorf("transcript[%d].Language = %q, want %q", i, got[i].Language, lang.PunjabiIN)
		}
	}
	if err := h.(*linefeed.Session).Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestProvider_SingleUse(t *testing.T) {
	t.Parallel()

	p := linefeed.New(strings.NewReader("x\n"))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	if _, err := p.StartStream(context.Background(), stt.StreamConfig{}); err == nil {
		t.Fatal("second StartStream succeeded, want error")
	}
}

func TestProvider_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := linefeed.New(strings.NewReader("x\n")).StartStream(ctx, stt.StreamConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("StartStream error = %v, want context.Canceled", err)
	}
}

func TestSession_CloseStopsDelivery(t *testing.T) {
	t.Parallel()

	lines := strings.Repeat("line\n", 1000)
	p := linefeed.New(strings.NewReader(lines))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got := collect(t, h)
	if len(got) >= 1000 {
		t.Errorf("received all %d lines after Close", len(got))
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line  string
		text  string
		final bool
		ok    bool
	}{
		{"hello", "hello", true, true},
		{"  hello  ", "hello", true, true},
		{"~ partial", "partial", false, true},
		{"~   ", "", false, false},
		{"", "", true, false},
		{"~partial", "~partial", true, true},
	}
	for _, tc := range tests {
		tr, ok := linefeed.ParseLine(tc.line)
		if ok != tc.ok {
			t.Errorf("ParseLine(%q) ok = %v, want %v", tc.line, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if tr.Text != tc.text || tr.IsFinal != tc.final {
			t.Errorf("ParseLine(%q) = {%q, final=%v}, want {%q, final=%v}",
				tc.line, tr.Text, tr.IsFinal, tc.text, tc.final)
		}
	}
}
