package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/leofalp/sleuth/internal/config"
	"github.com/leofalp/sleuth/providers/observability"
	"github.com/leofalp/sleuth/providers/observability/otelobs"
	"github.com/leofalp/sleuth/providers/observability/promobs"
	"github.com/leofalp/sleuth/providers/observability/slogobs"
)

type telemetry struct {
	observer observability.Provider
	// logger is the slog handler behind every backend, for middleware that
	// logs directly.
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newTelemetry(cfg *config.Config, stderr io.Writer) (*telemetry, error) {
	level, err := slogobs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logs := slogobs.New(
		slogobs.WithFormat(cfg.LogFormat),
		slogobs.WithLevel(level),
		slogobs.WithOutput(stderr),
	)

	var tel *telemetry
	switch cfg.Telemetry {
	case config.TelemetryOTel:
		tel = newOTelTelemetry(logs)
	case config.TelemetryPrometheus:
		if tel, err = newPrometheusTelemetry(cfg.MetricsAddress, logs); err != nil {
			return nil, err
		}
	default:
		tel = &telemetry{observer: logs, shutdown: func(context.Context) error { return nil }}
	}
	tel.logger = logs.Logger()
	return tel, nil
}

// newOTelTelemetry records spans and metrics with the OpenTelemetry SDK.
// Ended spans are logged at debug level and the collected metrics are
// summarized on shutdown.
func newOTelTelemetry(logs *slogobs.Observer) *telemetry {
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&spanLogger{logs: logs}))
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	observer := otelobs.New(
		otelobs.WithTracerProvider(tracerProvider),
		otelobs.WithMeterProvider(meterProvider),
		otelobs.WithLogger(logs),
	)

	shutdown := func(ctx context.Context) error {
		var collected metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &collected); err == nil {
			logMetrics(ctx, logs, collected)
		}
		return errors.Join(tracerProvider.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}
	return &telemetry{observer: observer, shutdown: shutdown}
}

// spanLogger is a span processor that logs every ended span.
type spanLogger struct {
	logs observability.Logger
}

var _ sdktrace.SpanProcessor = (*spanLogger)(nil)

func (p *spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *spanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	p.logs.Debug(context.Background(), "span ended",
		observability.String("span.name", span.Name()),
		observability.String("span.trace_id", span.SpanContext().TraceID().String()),
		observability.Duration(observability.AttrDuration, span.EndTime().Sub(span.StartTime())),
		observability.String(observability.AttrStatus, span.Status().Code.String()),
	)
}

func (p *spanLogger) Shutdown(context.Context) error   { return nil }
func (p *spanLogger) ForceFlush(context.Context) error { return nil }

func logMetrics(ctx context.Context, logs observability.Logger, collected metricdata.ResourceMetrics) {
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, point := range data.DataPoints {
					total += point.Value
				}
				logs.Info(ctx, "metric", observability.String("metric.name", m.Name), observability.Int64("metric.total", total))
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, point := range data.DataPoints {
					count += point.Count
					sum += point.Sum
				}
				logs.Info(ctx, "metric",
					observability.String("metric.name", m.Name),
					observability.Int64("metric.count", int64(count)),
					observability.Float64("metric.sum", sum),
				)
			}
		}
	}
}

// newPrometheusTelemetry records metrics in a dedicated registry, served on
// address when one is configured. Without an address the gathered families
// are logged on shutdown.
func newPrometheusTelemetry(address string, logs *slogobs.Observer) (*telemetry, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer := promobs.New(promobs.WithRegisterer(registry), promobs.WithDelegate(logs))

	if address == "" {
		shutdown := func(ctx context.Context) error {
			families, err := registry.Gather()
			if err != nil {
				return err
			}
			logFamilies(ctx, logs, families)
			return nil
		}
		return &telemetry{observer: observer, shutdown: shutdown}, nil
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", address, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Error(context.Background(), "metrics server stopped", observability.Error(err))
		}
	}()
	logs.Info(context.Background(), "serving metrics", observability.String("metrics.address", listener.Addr().String()))

	return &telemetry{observer: observer, shutdown: server.Shutdown}, nil
}

func logFamilies(ctx context.Context, logs observability.Logger, families []*dto.MetricFamily) {
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER && family.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		logs.Debug(ctx, "metric family",
			observability.String("metric.name", family.GetName()),
			observability.String("metric.type", family.GetType().String()),
			observability.Int("metric.series", len(family.GetMetric())),
		)
	}
}
