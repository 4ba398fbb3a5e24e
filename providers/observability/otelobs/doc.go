// Package otelobs implements [observability.Provider] on OpenTelemetry.
// Spans go to a trace.TracerProvider and counters and histograms to a
// metric.MeterProvider; both default to the global providers registered with
// the otel package. OpenTelemetry has no logging API in this stack, so log
// calls are forwarded to an optional [observability.Logger] and recorded as
// events on the active span.
package otelobs
