package follow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/kirtan/internal/corpus"
	"github.com/MrWong99/kirtan/internal/follow"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/linematch"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
	"github.com/MrWong99/kirtan/pkg/provider/stt/mock"
)

var moolMantar = []string{
	"ਇਕ ਓਅੰਕਾਰ",
	"ਸਤਿ ਨਾਮੁ",
	"ਕਰਤਾ ਪੁਰਖੁ",
	"ਨਿਰਭਉ ਨਿਰਵੈਰੁ",
}

func newRegistry(t *testing.T) *corpus.Registry {
	t.Helper()
	r := corpus.NewRegistry()
	if err := r.Set(&corpus.Corpus{Name: "mool-mantar", Language: lang.PunjabiIN, Lines: moolMantar}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return r
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// run feeds transcripts through a fresh follower and returns every update.
func run(t *testing.T, language lang.Tag, corpora follow.Corpora, transcripts []stt.Transcript, opts ...follow.Option) []follow.Update {
	t.Helper()
	m, _ := newTestMetrics(t)
	opts = append([]follow.Option{follow.WithMetrics(m)}, opts...)

	sess := mock.NewSession(len(transcripts))
	for _, tr := range transcripts {
		sess.Send(tr)
	}
	sess.End()

	f := follow.New(sess, language, corpora, opts...)
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	var got []follow.Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-f.Updates():
			if !ok {
				if err := <-errCh; err != nil {
					t.Fatalf("Run: %v", err)
				}
				return got
			}
			got = append(got, u)
		case <-timeout:
			t.Fatal("timed out waiting for updates")
		}
	}
}

func partial(s string) stt.Transcript { return stt.Transcript{Text: s} }
func final(s string) stt.Transcript   { return stt.Transcript{Text: s, IsFinal: true} }

func TestFollower_MatchesPartial(t *testing.T) {
	t.Parallel()

	got := run(t, lang.PunjabiIN, newRegistry(t), []stt.Transcript{partial("ਸਤਿ ਨਾਮੁ")})
	if len(got) != 1 {
		t.Fatalf("got %d updates, want 1", len(got))
	}
	u := got[0]
	if u.Match == nil {
		t.Fatal("Match = nil, want a match")
	}
	want := linematch.Match{Index: 1, Score: 1, Prev: 0, Next: 2}
	if *u.Match != want {
		t.Errorf("Match = %+v, want %+v", *u.Match, want)
	}
	if u.Line != "ਸਤਿ ਨਾਮੁ" || u.PrevLine != "ਇਕ ਓਅੰਕਾਰ" || u.NextLine != "ਕਰਤਾ ਪੁਰਖੁ" {
		t.Errorf("lines = %q / %q / %q", u.PrevLine, u.Line, u.NextLine)
	}
	if u.Latin != "sati nāmu" {
		t.Errorf("Latin = %q, want %q", u.Latin, "sati nāmu")
	}
	if u.LineLatin != "sati nāmu" || u.PrevLineLatin != "ika oaṅkāra" || u.NextLineLatin != "karatā purakhu" {
		t.Errorf("line latin = %q / %q / %q", u.PrevLineLatin, u.LineLatin, u.NextLineLatin)
	}
	if u.Snippet != "ਸਤਿ ਨਾਮੁ" || u.Transcript != "ਸਤਿ ਨਾਮੁ" {
		t.Errorf("Snippet = %q, Transcript = %q", u.Snippet, u.Transcript)
	}
	if u.Final {
		t.Error("Final = true for a partial")
	}
}

func TestFollower_FinalStartsFreshSnippet(t *testing.T) {
	t.Parallel()

	got := run(t, lang.PunjabiIN, newRegistry(t), []stt.Transcript{
		partial("ਸਤਿ ਨਾਮ"),
		final("ਸਤਿ ਨਾਮੁ"),
		partial("ਕਰਤਾ"),
	})
	if len(got) != 3 {
		t.Fatalf("got %d updates, want 3", len(got))
	}

	if got[0].Match == nil || got[0].Match.Index != 1 {
		t.Errorf("update[0].Match = %+v, want index 1", got[0].Match)
	}

	fin := got[1]
	if !fin.Final {
		t.Error("update[1].Final = false")
	}
	if fin.Snippet != "" || fin.Match != nil {
		t.Errorf("final update kept snippet %q / match %+v", fin.Snippet, fin.Match)
	}
	if fin.Transcript != "ਸਤਿ ਨਾਮੁ" {
		t.Errorf("final Transcript = %q, want %q", fin.Transcript, "ਸਤਿ ਨਾਮੁ")
	}

	next := got[2]
	if next.Snippet != "ਕਰਤਾ" {
		t.Errorf("Snippet after final = %q, want %q", next.Snippet, "ਕਰਤਾ")
	}
	if next.Transcript != "ਸਤਿ ਨਾਮੁ ਕਰਤਾ" {
		t.Errorf("Transcript = %q, want %q", next.Transcript, "ਸਤਿ ਨਾਮੁ ਕਰਤਾ")
	}
	if next.Match == nil || next.Match.Index != 2 {
		t.Errorf("Match = %+v, want index 2", next.Match)
	}
}

func TestFollower_BlankPartialKeepsSnippet(t *testing.T) {
	t.Parallel()

	got := run(t, lang.PunjabiIN, newRegistry(t), []stt.Transcript{
		partial("ਨਿਰਭਉ"),
		partial("   "),
	})
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if got[1].Snippet != "ਨਿਰਭਉ" {
		t.Errorf("Snippet = %q, want %q", got[1].Snippet, "ਨਿਰਭਉ")
	}
	if got[1].Match == nil || got[1].Match.Index != 3 {
		t.Errorf("Match = %+v, want index 3", got[1].Match)
	}
	if got[1].Match != nil && got[1].Match.HasNext() {
		t.Error("last line reported a next line")
	}
	if got[1].NextLine != "" {
		t.Errorf("NextLine = %q, want empty", got[1].NextLine)
	}
}

func TestFollower_MinScore(t *testing.T) {
	t.Parallel()

	got := run(t, lang.PunjabiIN, newRegistry(t),
		[]stt.Transcript{partial("ਕਰਤਾ"), partial("ਸਤਿ ਨਾਮੁ")},
		follow.WithMinScore(0.5),
	)
	if got[0].Match != nil {
		t.Errorf("low-scoring match reported: %+v", got[0].Match)
	}
	if got[0].Line != "" {
		t.Errorf("Line = %q for a dropped match", got[0].Line)
	}
	if got[1].Match == nil {
		t.Error("exact match dropped by MinScore")
	}
}

func TestFollower_DevanagariLineHasNoLatin(t *testing.T) {
	t.Parallel()

	r := corpus.NewRegistry()
	if err := r.Set(&corpus.Corpus{Name: "aarti", Language: lang.HindiIN, Lines: []string{"ओम जय जगदीश हरे", "स्वामी जय जगदीश हरे"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got := run(t, lang.HindiIN, r, []stt.Transcript{partial("ओम जय जगदीश हरे")})
	if len(got) != 1 || got[0].Match == nil {
		t.Fatalf("updates = %+v, want one match", got)
	}
	u := got[0]
	if u.Line != "ओम जय जगदीश हरे" {
		t.Errorf("Line = %q", u.Line)
	}
	if u.LineLatin != "" || u.NextLineLatin != "" {
		t.Errorf("line latin = %q / %q, want empty", u.LineLatin, u.NextLineLatin)
	}
}

func TestFollower_NoCorpusForLanguage(t *testing.T) {
	t.Parallel()

	got := run(t, lang.HindiIN, newRegistry(t), []stt.Transcript{partial("सत नाम")})
	if len(got) != 1 {
		t.Fatalf("got %d updates, want 1", len(got))
	}
	if got[0].Match != nil {
		t.Errorf("Match = %+v, want nil", got[0].Match)
	}
	if got[0].Latin != "सत नाम" {
		t.Errorf("Latin = %q, want transcript unchanged", got[0].Latin)
	}
	if got[0].Snippet != "सत नाम" {
		t.Errorf("Snippet = %q, want %q", got[0].Snippet, "सत नाम")
	}
}

func TestFollower_TranscriptTail(t *testing.T) {
	t.Parallel()

	got := run(t, lang.EnglishUS, corpus.NewRegistry(),
		[]stt.Transcript{final("abcdef"), partial("ghij")},
		follow.WithTranscriptMax(6), follow.WithSnippetMax(3),
	)
	if got[0].Transcript != "abcdef" {
		t.Errorf("Transcript[0] = %q, want %q", got[0].Transcript, "abcdef")
	}
	if got[1].Transcript != "f ghij" {
		t.Errorf("Transcript[1] = %q, want %q", got[1].Transcript, "f ghij")
	}
	if got[1].Snippet != "hij" {
		t.Errorf("Snippet = %q, want %q", got[1].Snippet, "hij")
	}
}

func TestFollower_JaroWinkler(t *testing.T) {
	t.Parallel()

	got := run(t, lang.PunjabiIN, newRegistry(t),
		[]stt.Transcript{partial("ਕਰਤਾ ਪੁਰਖ")},
		follow.WithScorer(linematch.JaroWinklerScorer),
	)
	if got[0].Match == nil || got[0].Match.Index != 2 {
		t.Errorf("Match = %+v, want index 2", got[0].Match)
	}
}

func TestFollower_RunCancel(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	sess := mock.NewSession(1)
	f := follow.New(sess, lang.PunjabiIN, newRegistry(t), follow.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()

	sess.Send(partial("ਸਤਿ"))
	select {
	case <-f.Updates():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-f.Updates(); ok {
		t.Error("Updates not closed after Run returned")
	}
	if sess.Closed() != 0 {
		t.Error("Run closed the session")
	}
}

func TestFollower_RunTwice(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	sess := mock.NewSession(0)
	sess.End()
	f := follow.New(sess, lang.PunjabiIN, newRegistry(t), follow.WithMetrics(m))

	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := f.Run(context.Background()); !errors.Is(err, follow.ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestFollower_Metrics(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	sess := mock.NewSession(3)
	sess.Send(partial("ਸਤਿ ਨਾਮੁ"))
	sess.Send(final("ਸਤਿ ਨਾਮੁ"))
	sess.End()

	f := follow.New(sess, lang.PunjabiIN, newRegistry(t), follow.WithMetrics(m))
	go func() {
		for range f.Updates() {
		}
	}()
	if err := f.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if s, ok := met.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[met.Name] += dp.Value
				}
			}
		}
	}
	if sums["kirtan.matches"] != 1 {
		t.Errorf("kirtan.matches = %d, want 1", sums["kirtan.matches"])
	}
	if sums["kirtan.transliterations"] != 2 {
		t.Errorf("kirtan.transliterations = %d, want 2", sums["kirtan.transliterations"])
	}
	if sums["kirtan.active_followers"] != 0 {
		t.Errorf("kirtan.active_followers = %d, want 0 after Run", sums["kirtan.active_followers"])
	}
}
