package otelobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/leofalp/sleuth/providers/observability"
)

func newTestObserver(opts ...Option) (*Observer, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	recorder := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	opts = append([]Option{WithTracerProvider(tracerProvider), WithMeterProvider(meterProvider)}, opts...)
	return New(opts...), recorder, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var collected metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &collected); err != nil {
		t.Fatal(err)
	}
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Metrics{}
}

func TestSpans(t *testing.T) {
	observer, recorder, _ := newTestObserver()

	ctx, root := observer.StartSpan(context.Background(), "graph.run", observability.String("graph.name", "leader"))
	if observability.SpanFromContext(ctx) != root {
		t.Error("expected the span in the returned context")
	}
	_, child := observer.StartSpan(ctx, "graph.stage.execute", observability.Int("graph.step", 1))
	child.AddEvent("checkpoint.put", observability.Int("checkpoint.seq", 2))
	child.RecordError(errors.New("kaput"))
	child.SetStatus(observability.StatusError, "kaput")
	child.End()
	root.SetAttributes(observability.Duration("duration", 1500*time.Millisecond), observability.StringSlice("stages", []string{"a", "b"}))
	root.SetStatus(observability.StatusOK, "")
	root.End()

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	stage, run := ended[0], ended[1]
	if stage.Name() != "graph.stage.execute" || run.Name() != "graph.run" {
		t.Fatalf("unexpected span names %s, %s", stage.Name(), run.Name())
	}
	if stage.Parent().SpanID() != run.SpanContext().SpanID() {
		t.Error("expected the stage span to be a child of the run span")
	}
	if stage.Status().Code != codes.Error || stage.Status().Description != "kaput" {
		t.Errorf("unexpected stage status %+v", stage.Status())
	}
	if run.Status().Code != codes.Ok {
		t.Errorf("unexpected run status %+v", run.Status())
	}

	eventNames := make([]string, 0)
	for _, event := range stage.Events() {
		eventNames = append(eventNames, event.Name)
	}
	if len(eventNames) != 2 || eventNames[0] != "checkpoint.put" || eventNames[1] != "exception" {
		t.Errorf("unexpected events %v", eventNames)
	}

	expected := map[attribute.Key]attribute.Value{
		"graph.name": attribute.StringValue("leader"),
		"duration":   attribute.Float64Value(1.5),
		"stages":     attribute.StringSliceValue([]string{"a", "b"}),
	}
	for _, kv := range run.Attributes() {
		if want, ok := expected[kv.Key]; ok && want.Emit() != kv.Value.Emit() {
			t.Errorf("attribute %s = %v, want %v", kv.Key, kv.Value.Emit(), want.Emit())
		}
	}
}

func TestCounter(t *testing.T) {
	observer, _, reader := newTestObserver()
	ctx := context.Background()

	observer.Counter("sleuth.graph.stage.count").Add(ctx, 2, observability.String("graph.stage", "a"))
	observer.Counter("sleuth.graph.stage.count").Add(ctx, 3, observability.String("graph.stage", "a"))
	observer.Counter("sleuth.graph.stage.count").Add(ctx, 1, observability.String("graph.stage", "b"))

	sum, ok := findMetric(t, reader, "sleuth.graph.stage.count").Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected an int64 sum")
	}
	totals := make(map[string]int64)
	for _, point := range sum.DataPoints {
		stage, _ := point.Attributes.Value("graph.stage")
		totals[stage.AsString()] = point.Value
	}
	if totals["a"] != 5 || totals["b"] != 1 {
		t.Errorf("unexpected totals %v", totals)
	}
}

func TestHistogram(t *testing.T) {
	observer, _, reader := newTestObserver()
	ctx := context.Background()

	observer.Histogram("sleuth.graph.run.duration").Record(ctx, 0.25)
	observer.Histogram("sleuth.graph.run.duration").Record(ctx, 0.75)

	m := findMetric(t, reader, "sleuth.graph.run.duration")
	if m.Unit != "s" {
		t.Errorf("expected seconds, got %q", m.Unit)
	}
	histogram, ok := m.Data.(metricdata.Histogram[float64])
	if !ok || len(histogram.DataPoints) != 1 {
		t.Fatalf("unexpected histogram data %+v", m.Data)
	}
	if point := histogram.DataPoints[0]; point.Count != 2 || point.Sum != 1.0 {
		t.Errorf("unexpected data point count=%d sum=%v", point.Count, point.Sum)
	}
}

// recordingLogger collects forwarded messages.
type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Trace(_ context.Context, msg string, _ ...observability.Attribute) {
	l.messages = append(l.messages, "trace:"+msg)
}
func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...observability.Attribute) {
	l.messages = append(l.messages, "debug:"+msg)
}
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...observability.Attribute) {
	l.messages = append(l.messages, "info:"+msg)
}
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...observability.Attribute) {
	l.messages = append(l.messages, "warn:"+msg)
}
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...observability.Attribute) {
	l.messages = append(l.messages, "error:"+msg)
}

func TestLogging(t *testing.T) {
	logger := &recordingLogger{}
	observer, recorder, _ := newTestObserver(WithLogger(logger))

	ctx, span := observer.StartSpan(context.Background(), "graph.run")
	observer.Debug(ctx, "quiet")
	observer.Info(ctx, "started")
	observer.Error(ctx, "failed", observability.Error(errors.New("kaput")))
	span.End()

	if len(logger.messages) != 3 || logger.messages[2] != "error:failed" {
		t.Errorf("unexpected forwarded messages %v", logger.messages)
	}
	events := recorder.Ended()[0].Events()
	if len(events) != 2 {
		t.Fatalf("expected info and error span events, got %d", len(events))
	}
	for _, event := range events {
		if event.Name != "log" {
			t.Errorf("unexpected event %s", event.Name)
		}
	}

	New().Info(context.Background(), "no logger, no span")
}
