// Package observability is the seam between sleuth and its telemetry
// backends. Components depend on [Provider] only; slogobs, otelobs and
// promobs supply implementations.
//
// A run installs its observer with [ContextWithObserver] so that stages and
// adapters several calls deep can find it with [ObserverFromContext]. Span
// names, attribute keys and metric names live in semconv.go.
package observability
