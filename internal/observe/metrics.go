// Package observe provides the observability primitives for kirtan:
// OpenTelemetry metrics and tracing, trace-aware structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so the same instruments are scraped
// from /metrics. A package-level default [Metrics] instance ([DefaultMetrics])
// is provided for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kirtan metrics.
const meterName = "github.com/MrWong99/kirtan"

// Match outcome values for the "status" attribute of [Metrics.Matches].
const (
	StatusMatched  = "matched"
	StatusBelow    = "below_threshold"
	StatusNoCorpus = "no_corpus"
	StatusError    = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// MatchDuration tracks the latency of one best-line search. Use with
	// attribute.String("language", ...).
	MatchDuration metric.Float64Histogram

	// MatchScore records the similarity of every best match, in [0,1].
	MatchScore metric.Float64Histogram

	// Matches counts match attempts. Use with attributes:
	//   attribute.String("language", ...), attribute.String("status", ...)
	Matches metric.Int64Counter

	// Transliterations counts Gurmukhi to Latin conversions. Use with
	//   attribute.String("source", ...) ("api" or "follow").
	Transliterations metric.Int64Counter

	// ActiveFollowers tracks the number of running follower sessions.
	ActiveFollowers metric.Int64UpDownCounter

	// CorpusLines tracks the number of reference lines loaded per language.
	CorpusLines metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// matchBuckets are histogram boundaries (in seconds) for a linear scan over a
// corpus of a few hundred lines.
var matchBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

var scoreBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.MatchDuration, err = m.Float64Histogram("kirtan.match.duration",
		metric.WithDescription("Latency of a best-line search over one corpus."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(matchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchScore, err = m.Float64Histogram("kirtan.match.score",
		metric.WithDescription("Similarity score of the best matching line."),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Matches, err = m.Int64Counter("kirtan.matches",
		metric.WithDescription("Total match attempts by language and status."),
	); err != nil {
		return nil, err
	}
	if met.Transliterations, err = m.Int64Counter("kirtan.transliterations",
		metric.WithDescription("Total Gurmukhi to Latin transliterations by source."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveFollowers, err = m.Int64UpDownCounter("kirtan.active_followers",
		metric.WithDescription("Number of running follower sessions."),
	); err != nil {
		return nil, err
	}
	if met.CorpusLines, err = m.Int64UpDownCounter("kirtan.corpus.lines",
		metric.WithDescription("Number of reference lines loaded, by language."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("kirtan.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordMatch records one match attempt: its latency, its outcome and, when
// a line was found, its score.
func (m *Metrics) RecordMatch(ctx context.Context, language, status string, seconds, score float64) {
	langAttr := attribute.String("language", language)
	m.MatchDuration.Record(ctx, seconds, metric.WithAttributes(langAttr))
	m.Matches.Add(ctx, 1,
		metric.WithAttributes(
			langAttr,
			attribute.String("status", status),
		),
	)
	if status == StatusMatched || status == StatusBelow {
		m.MatchScore.Record(ctx, score, metric.WithAttributes(langAttr))
	}
}

// RecordTransliteration records one transliteration from source.
func (m *Metrics) RecordTransliteration(ctx context.Context, source string) {
	m.Transliterations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// AdjustCorpusLines moves the corpus line gauge for language by delta.
func (m *Metrics) AdjustCorpusLines(ctx context.Context, language string, delta int) {
	m.CorpusLines.Add(ctx, int64(delta),
		metric.WithAttributes(attribute.String("language", language)),
	)
}
