package search

import (
	"context"
	"time"

	"github.com/leofalp/sleuth/providers/observability"
)

// Observe runs fn inside a search span and records the request count and
// duration metrics, labelled with provider and status. When observer is nil
// the one stored in ctx is used; with neither, fn runs unobserved.
func Observe(ctx context.Context, observer observability.Provider, provider, query string, maxResults int, fn SearchFunc) ([]Document, error) {
	if observer == nil {
		observer = observability.ObserverFromContext(ctx)
	}
	if observer == nil {
		return fn(ctx, query, maxResults)
	}

	ctx, span := observer.StartSpan(ctx, observability.SpanSearchRequest,
		observability.String(observability.AttrSearchProvider, provider),
		observability.String(observability.AttrSearchQuery, query),
		observability.Int(observability.AttrSearchMaxResults, maxResults),
	)
	defer span.End()
	ctx = observability.ContextWithSpan(ctx, span)

	start := time.Now()
	documents, err := fn(ctx, query, maxResults)
	duration := time.Since(start)

	attrs := []observability.Attribute{
		observability.String(observability.AttrSearchProvider, provider),
		observability.Status(err),
	}
	observer.Counter(observability.MetricSearchRequestCount).Add(ctx, 1, attrs...)
	observer.Histogram(observability.MetricSearchRequestDuration).Record(ctx, duration.Seconds(), attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusError, err.Error())
		observer.Error(ctx, "search request failed",
			observability.String(observability.AttrSearchProvider, provider),
			observability.String(observability.AttrSearchQuery, query),
			observability.Error(err),
		)
		return documents, err
	}

	span.AddEvent(observability.EventSearchResults, observability.Int(observability.AttrSearchResultsCount, len(documents)))
	span.SetStatus(observability.StatusOK, "")
	observer.Debug(ctx, "search request finished",
		observability.String(observability.AttrSearchProvider, provider),
		observability.String(observability.AttrSearchQuery, query),
		observability.Int(observability.AttrSearchResultsCount, len(documents)),
		observability.Duration(observability.AttrDuration, duration),
	)
	return documents, nil
}
