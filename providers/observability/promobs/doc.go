// Package promobs implements the metrics half of [observability.Provider] on
// Prometheus client_golang vectors. Each metric name becomes a CounterVec or
// HistogramVec over a fixed label set ([DefaultLabels] unless overridden);
// attributes outside that set are dropped and missing ones are left empty.
//
// Tracing and logging are delegated to an optional wrapped provider, so the
// usual setup pairs promobs with slogobs:
//
//	observer := promobs.New(promobs.WithDelegate(slogobs.New()))
//	http.Handle("/metrics", promhttp.Handler())
package promobs
