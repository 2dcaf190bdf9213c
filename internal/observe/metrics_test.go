package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

// sumPoint returns the value of the int64 sum data point whose attributes
// include key=value.
func sumPoint(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value, true
			}
		}
	}
	return 0, false
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"kirtan.match.duration", m.MatchDuration},
		{"kirtan.match.score", m.MatchScore},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordMatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMatch(ctx, "pa-IN", StatusMatched, 0.0002, 0.9)
	m.RecordMatch(ctx, "pa-IN", StatusMatched, 0.0003, 0.8)
	m.RecordMatch(ctx, "pa-IN", StatusBelow, 0.0001, 0.2)
	m.RecordMatch(ctx, "hi-IN", StatusNoCorpus, 0, 0)

	rm := collect(t, reader)

	if got, ok := sumPoint(t, rm, "kirtan.matches", "status", StatusMatched); !ok || got != 2 {
		t.Errorf("matched count = %d (found=%v), want 2", got, ok)
	}
	if got, ok := sumPoint(t, rm, "kirtan.matches", "status", StatusNoCorpus); !ok || got != 1 {
		t.Errorf("no_corpus count = %d (found=%v), want 1", got, ok)
	}

	// Scores are only recorded when a line was scored.
	met := findMetric(rm, "kirtan.match.score")
	if met == nil {
		t.Fatal("kirtan.match.score not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 3 {
		t.Errorf("score samples = %d, want 3", total)
	}

	met = findMetric(rm, "kirtan.match.duration")
	if met == nil {
		t.Fatal("kirtan.match.duration not found")
	}
	hist = met.Data.(metricdata.Histogram[float64])
	total = 0
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	if total != 4 {
		t.Errorf("duration samples = %d, want 4", total)
	}
}

func TestRecordTransliteration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTransliteration(ctx, "api")
	m.RecordTransliteration(ctx, "api")
	m.RecordTransliteration(ctx, "follow")

	rm := collect(t, reader)
	if got, ok := sumPoint(t, rm, "kirtan.transliterations", "source", "api"); !ok || got != 2 {
		t.Errorf("api count = %d (found=%v), want 2", got, ok)
	}
	if got, ok := sumPoint(t, rm, "kirtan.transliterations", "source", "follow"); !ok || got != 1 {
		t.Errorf("follow count = %d (found=%v), want 1", got, ok)
	}
}

func TestCounterIncrement(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	attrs := metric.WithAttributes(
		attribute.String("language", "pa-IN"),
		attribute.String("status", StatusMatched),
	)
	m.Matches.Add(ctx, 1, attrs)
	m.Matches.Add(ctx, 1, attrs)
	m.Matches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("language", "pa-IN"),
		attribute.String("status", StatusError),
	))

	rm := collect(t, reader)
	if got, ok := sumPoint(t, rm, "kirtan.matches", "status", StatusMatched); !ok || got != 2 {
		t.Errorf("counter value = %d (found=%v), want 2", got, ok)
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveFollowers.Add(ctx, 1)
	m.ActiveFollowers.Add(ctx, 1)
	m.ActiveFollowers.Add(ctx, -1)
	m.AdjustCorpusLines(ctx, "pa-IN", 40)
	m.AdjustCorpusLines(ctx, "pa-IN", -40)
	m.AdjustCorpusLines(ctx, "pa-IN", 38)

	rm := collect(t, reader)

	met := findMetric(rm, "kirtan.active_followers")
	if met == nil {
		t.Fatal("kirtan.active_followers not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("kirtan.active_followers has no sum data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active followers = %d, want 1", got)
	}

	if got, ok := sumPoint(t, rm, "kirtan.corpus.lines", "language", "pa-IN"); !ok || got != 38 {
		t.Errorf("corpus lines = %d (found=%v), want 38", got, ok)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "kirtan.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
