package observability

import "context"

type spanContextKey struct{}

type observerContextKey struct{}

// SpanFromContext returns the span stored in ctx, or nil.
func SpanFromContext(ctx context.Context) Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanContextKey{}).(Span)
	return span
}

// ContextWithSpan returns a copy of ctx carrying span. A nil ctx is treated
// as context.Background().
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, spanContextKey{}, span)
}

// ObserverFromContext returns the Provider stored in ctx, or nil.
func ObserverFromContext(ctx context.Context) Provider {
	if ctx == nil {
		return nil
	}
	observer, _ := ctx.Value(observerContextKey{}).(Provider)
	return observer
}

// ContextWithObserver returns a copy of ctx carrying the observer. Stages and
// adapters use it to log and trace without a reference to the graph that
// invoked them.
func ContextWithObserver(ctx context.Context, observer Provider) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, observerContextKey{}, observer)
}
