package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leofalp/sleuth/providers/observability"
)

// Observer implements observability.Provider on a slog.Logger.
type Observer struct {
	logger *slog.Logger

	mu       sync.Mutex
	counters map[string]int64
}

var _ observability.Provider = (*Observer)(nil)

// New creates an Observer. Without options the format and level come from
// the environment and records go to stderr.
//
//	observer := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatJSON),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(NewHandler(&HandlerOptions{
			Format: cfg.format,
			Level:  cfg.level,
			Output: cfg.output,
			Colors: cfg.colors,
		}))
	}

	return &Observer{
		logger:   logger,
		counters: make(map[string]int64),
	}
}

// Logger exposes the underlying logger.
func (o *Observer) Logger() *slog.Logger {
	return o.logger
}

// --- TRACING ---

// StartSpan logs the span start at debug level and stores the span in the
// returned context.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		ctx:       ctx,
		name:      name,
		startTime: time.Now(),
		logger:    o.logger,
		attrs:     append([]observability.Attribute{}, attrs...),
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "span started", span.logAttrs("span.start", attrs)...)
	return observability.ContextWithSpan(ctx, span), span
}

type slogSpan struct {
	ctx       context.Context
	name      string
	startTime time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	attrs []observability.Attribute
	ended bool
}

func (s *slogSpan) logAttrs(event string, attrs []observability.Attribute, extra ...slog.Attr) []slog.Attr {
	logAttrs := make([]slog.Attr, 0, len(attrs)+len(extra)+2)
	logAttrs = append(logAttrs, slog.String("span", s.name), slog.String("event", event))
	logAttrs = append(logAttrs, extra...)
	return append(logAttrs, toSlogAttrs(attrs)...)
}

// End logs the accumulated attributes and duration. Later calls are ignored.
func (s *slogSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true

	attrs := s.logAttrs("span.end", s.attrs, slog.Duration("duration", time.Since(s.startTime)))
	s.logger.LogAttrs(s.ctx, slog.LevelDebug, "span ended", attrs...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "unset"
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
	}
	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

// RecordError keeps the error on the span and logs it at debug level; the
// caller decides whether the failure deserves an error record.
func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, observability.Error(err))
	s.logger.LogAttrs(s.ctx, slog.LevelDebug, "span error", s.logAttrs("error", []observability.Attribute{observability.Error(err)})...)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	s.logger.LogAttrs(s.ctx, slog.LevelDebug, "span event", s.logAttrs(name, attrs)...)
}

// --- METRICS ---

// Counter returns a counter whose running total is kept by the Observer.
func (o *Observer) Counter(name string) observability.Counter {
	return &slogCounter{observer: o, name: name}
}

// Histogram returns a histogram that logs each observation.
func (o *Observer) Histogram(name string) observability.Histogram {
	return &slogHistogram{logger: o.logger, name: name}
}

// CounterValue returns the total accumulated by the named counter, across
// all attribute sets.
func (o *Observer) CounterValue(name string) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

type slogCounter struct {
	observer *Observer
	name     string
}

func (c *slogCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.observer.mu.Lock()
	c.observer.counters[c.name] += value
	total := c.observer.counters[c.name]
	c.observer.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("metric", c.name),
		slog.String("type", "counter"),
		slog.Int64("value", total),
		slog.Int64("delta", value),
	}
	c.observer.logger.LogAttrs(ctx, LevelTrace, "counter", append(logAttrs, toSlogAttrs(attrs)...)...)
}

type slogHistogram struct {
	logger *slog.Logger
	name   string
}

func (h *slogHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	logAttrs := []slog.Attr{
		slog.String("metric", h.name),
		slog.String("type", "histogram"),
		slog.Float64("value", value),
	}
	h.logger.LogAttrs(ctx, LevelTrace, "histogram", append(logAttrs, toSlogAttrs(attrs)...)...)
}

// --- LOGGING ---

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, LevelTrace, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelWarn, msg, toSlogAttrs(attrs)...)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelError, msg, toSlogAttrs(attrs)...)
}

func toSlogAttrs(attrs []observability.Attribute) []slog.Attr {
	converted := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		converted = append(converted, slog.Any(attr.Key, attr.Value))
	}
	return converted
}
