package otelobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/leofalp/sleuth/providers/observability"
)

// InstrumentationName identifies the tracer and meter created by New.
const InstrumentationName = "github.com/leofalp/sleuth"

// Option configures an Observer.
type Option func(*Observer)

// WithTracerProvider sets the tracer provider. Default: otel.GetTracerProvider().
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observer) {
		o.tracer = provider.Tracer(InstrumentationName)
	}
}

// WithMeterProvider sets the meter provider. Default: otel.GetMeterProvider().
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observer) {
		o.meter = provider.Meter(InstrumentationName)
	}
}

// WithLogger forwards log calls to logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// Observer implements observability.Provider on OpenTelemetry.
type Observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger observability.Logger

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

var _ observability.Provider = (*Observer)(nil)

// New creates an Observer.
func New(opts ...Option) *Observer {
	observer := &Observer{
		tracer:     otel.GetTracerProvider().Tracer(InstrumentationName),
		meter:      otel.GetMeterProvider().Meter(InstrumentationName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
	for _, opt := range opts {
		opt(observer)
	}
	return observer
}

// --- TRACING ---

func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(toKeyValues(attrs)...))
	wrapped := &otelSpan{span: span}
	return observability.ContextWithSpan(ctx, wrapped), wrapped
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...observability.Attribute) {
	s.span.SetAttributes(toKeyValues(attrs)...)
}

func (s *otelSpan) SetStatus(code observability.StatusCode, description string) {
	switch code {
	case observability.StatusOK:
		s.span.SetStatus(codes.Ok, "")
	case observability.StatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, "")
	}
}

func (s *otelSpan) RecordError(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
}

func (s *otelSpan) AddEvent(name string, attrs ...observability.Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(toKeyValues(attrs)...))
}

// --- METRICS ---

// Counter returns an Int64Counter. Instrument creation errors yield a no-op counter.
func (o *Observer) Counter(name string) observability.Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	counter, ok := o.counters[name]
	if !ok {
		var err error
		counter, err = o.meter.Int64Counter(name)
		if err != nil {
			counter = noop.Int64Counter{}
		}
		o.counters[name] = counter
	}
	return int64Counter{counter: counter}
}

// Histogram returns a Float64Histogram. Names ending in ".duration" are
// recorded in seconds.
func (o *Observer) Histogram(name string) observability.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	histogram, ok := o.histograms[name]
	if !ok {
		var opts []metric.Float64HistogramOption
		if strings.HasSuffix(name, ".duration") {
			opts = append(opts, metric.WithUnit("s"))
		}
		var err error
		histogram, err = o.meter.Float64Histogram(name, opts...)
		if err != nil {
			histogram = noop.Float64Histogram{}
		}
		o.histograms[name] = histogram
	}
	return float64Histogram{histogram: histogram}
}

type int64Counter struct {
	counter metric.Int64Counter
}

func (c int64Counter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.counter.Add(ctx, value, metric.WithAttributes(toKeyValues(attrs)...))
}

type float64Histogram struct {
	histogram metric.Float64Histogram
}

func (h float64Histogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	h.histogram.Record(ctx, value, metric.WithAttributes(toKeyValues(attrs)...))
}

// --- LOGGING ---

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.logger != nil {
		o.logger.Trace(ctx, msg, attrs...)
	}
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.logger != nil {
		o.logger.Debug(ctx, msg, attrs...)
	}
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.spanEvent(ctx, "info", msg, attrs)
	if o.logger != nil {
		o.logger.Info(ctx, msg, attrs...)
	}
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.spanEvent(ctx, "warn", msg, attrs)
	if o.logger != nil {
		o.logger.Warn(ctx, msg, attrs...)
	}
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.spanEvent(ctx, "error", msg, attrs)
	if o.logger != nil {
		o.logger.Error(ctx, msg, attrs...)
	}
}

// spanEvent records info and above as "log" events on the recording span in ctx.
func (o *Observer) spanEvent(ctx context.Context, level string, msg string, attrs []observability.Attribute) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	keyValues := append([]attribute.KeyValue{
		attribute.String("log.severity", level),
		attribute.String("log.message", msg),
	}, toKeyValues(attrs)...)
	span.AddEvent("log", trace.WithAttributes(keyValues...))
}

func toKeyValues(attrs []observability.Attribute) []attribute.KeyValue {
	keyValues := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		keyValues = append(keyValues, toKeyValue(attr))
	}
	return keyValues
}

func toKeyValue(attr observability.Attribute) attribute.KeyValue {
	switch value := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, value)
	case int:
		return attribute.Int(attr.Key, value)
	case int64:
		return attribute.Int64(attr.Key, value)
	case float64:
		return attribute.Float64(attr.Key, value)
	case bool:
		return attribute.Bool(attr.Key, value)
	case time.Duration:
		return attribute.Float64(attr.Key, value.Seconds())
	case []string:
		return attribute.StringSlice(attr.Key, value)
	case error:
		return attribute.String(attr.Key, value.Error())
	default:
		return attribute.String(attr.Key, fmt.Sprint(value))
	}
}
