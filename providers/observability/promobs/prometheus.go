package promobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leofalp/sleuth/providers/observability"
)

// DefaultLabels are the attribute keys kept as Prometheus labels.
var DefaultLabels = []string{
	"graph.name",
	"graph.stage",
	"graph.stage.status",
	observability.AttrStatus,
	observability.AttrLLMProvider,
	observability.AttrLLMModel,
	observability.AttrSearchProvider,
	observability.AttrCheckpointBackend,
}

// Option configures an Observer.
type Option func(*Observer)

// WithRegisterer sets where collectors are registered. Default: prometheus.DefaultRegisterer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *Observer) {
		o.registerer = registerer
	}
}

// WithLabels replaces the label set.
func WithLabels(keys ...string) Option {
	return func(o *Observer) {
		o.labelKeys = append([]string{}, keys...)
	}
}

// WithBuckets sets the histogram buckets. Default: prometheus.DefBuckets.
func WithBuckets(buckets []float64) Option {
	return func(o *Observer) {
		o.buckets = buckets
	}
}

// WithDelegate forwards spans and log calls to delegate.
func WithDelegate(delegate observability.Provider) Option {
	return func(o *Observer) {
		o.delegate = delegate
	}
}

// Observer implements observability.Provider with Prometheus metrics.
type Observer struct {
	registerer prometheus.Registerer
	labelKeys  []string
	labelNames []string
	buckets    []float64
	delegate   observability.Provider

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

var _ observability.Provider = (*Observer)(nil)

// New creates an Observer.
func New(opts ...Option) *Observer {
	observer := &Observer{
		registerer: prometheus.DefaultRegisterer,
		labelKeys:  DefaultLabels,
		buckets:    prometheus.DefBuckets,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	for _, opt := range opts {
		opt(observer)
	}
	observer.labelNames = make([]string, len(observer.labelKeys))
	for i, key := range observer.labelKeys {
		observer.labelNames[i] = sanitize(key)
	}
	return observer
}

// sanitize maps an attribute or metric name onto [a-zA-Z0-9_].
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// MetricName returns the Prometheus name used for an observability metric.
// Counters get the conventional _total suffix.
func MetricName(name string, counter bool) string {
	sanitized := sanitize(name)
	if counter && !strings.HasSuffix(sanitized, "_total") {
		sanitized += "_total"
	}
	return sanitized
}

// register registers collector, reusing an equal collector registered earlier.
func (o *Observer) register(collector prometheus.Collector) prometheus.Collector {
	if err := o.registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		if o.delegate != nil {
			o.delegate.Warn(context.Background(), "prometheus registration failed", observability.Error(err))
		}
	}
	return collector
}

func (o *Observer) labels(attrs []observability.Attribute) prometheus.Labels {
	labels := make(prometheus.Labels, len(o.labelKeys))
	for i := range o.labelKeys {
		labels[o.labelNames[i]] = ""
	}
	for _, attr := range attrs {
		for i, key := range o.labelKeys {
			if attr.Key == key {
				labels[o.labelNames[i]] = fmt.Sprint(attr.Value)
			}
		}
	}
	return labels
}

// --- METRICS ---

func (o *Observer) Counter(name string) observability.Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	vec, ok := o.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricName(name, true),
			Help: "Total of " + name + ".",
		}, o.labelNames)
		if existing, ok := o.register(vec).(*prometheus.CounterVec); ok {
			vec = existing
		}
		o.counters[name] = vec
	}
	return &counter{observer: o, vec: vec}
}

func (o *Observer) Histogram(name string) observability.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	vec, ok := o.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricName(name, false),
			Help:    "Distribution of " + name + ".",
			Buckets: o.buckets,
		}, o.labelNames)
		if existing, ok := o.register(vec).(*prometheus.HistogramVec); ok {
			vec = existing
		}
		o.histograms[name] = vec
	}
	return &histogram{observer: o, vec: vec}
}

type counter struct {
	observer *Observer
	vec      *prometheus.CounterVec
}

// Add ignores negative values; Prometheus counters only go up.
func (c *counter) Add(_ context.Context, value int64, attrs ...observability.Attribute) {
	if value < 0 {
		return
	}
	c.vec.With(c.observer.labels(attrs)).Add(float64(value))
}

type histogram struct {
	observer *Observer
	vec      *prometheus.HistogramVec
}

func (h *histogram) Record(_ context.Context, value float64, attrs ...observability.Attribute) {
	h.vec.With(h.observer.labels(attrs)).Observe(value)
}

// --- TRACING & LOGGING ---

func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	if o.delegate != nil {
		return o.delegate.StartSpan(ctx, name, attrs...)
	}
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                                        {}
func (noopSpan) SetAttributes(...observability.Attribute)    {}
func (noopSpan) SetStatus(observability.StatusCode, string)  {}
func (noopSpan) RecordError(error)                           {}
func (noopSpan) AddEvent(string, ...observability.Attribute) {}

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.delegate != nil {
		o.delegate.Trace(ctx, msg, attrs...)
	}
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.delegate != nil {
		o.delegate.Debug(ctx, msg, attrs...)
	}
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.delegate != nil {
		o.delegate.Info(ctx, msg, attrs...)
	}
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.delegate != nil {
		o.delegate.Warn(ctx, msg, attrs...)
	}
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if o.delegate != nil {
		o.delegate.Error(ctx, msg, attrs...)
	}
}
