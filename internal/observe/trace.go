package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LanguageKey names the recognition language on spans and log records.
const LanguageKey = attribute.Key("language")

// tracerName is the instrumentation scope name for the kirtan tracer.
const tracerName = "github.com/MrWong99/kirtan"

// Tracer returns the package-level [trace.Tracer]. It uses the globally
// registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartLanguageSpan starts a span for matching work in one recognition
// language. The span carries [LanguageKey]; the returned logger carries the
// language along with the trace_id and span_id added by [Logger].
func StartLanguageSpan(ctx context.Context, name, language string) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(LanguageKey.String(language)))
	return ctx, span, Logger(ctx).With(slog.String(string(LanguageKey), language))
}

// CorrelationID extracts the trace ID from the OTel span context in ctx. The
// API returns it as X-Correlation-ID and follower logs carry it, so one live
// session can be traced across both. Returns the empty string when no active
// span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the OTel span context in ctx. When no active span is present, the returned
// logger is the default slog logger without extra attributes.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
