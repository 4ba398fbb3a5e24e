package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leofalp/sleuth/providers/observability"
)

// maxResponseBodySize caps how much of a response body is read into memory.
const maxResponseBodySize = 10 << 20

// HeaderOption adds an extra header to an outgoing request.
type HeaderOption struct {
	Key   string
	Value string
}

// DoPostSync performs a synchronous HTTP POST with a JSON body and decodes the
// JSON response into OutputStruct. When a span is present in ctx, request and
// response events are added to it.
//
// Error handling:
//   - transport and context errors are wrapped and returned with a nil response
//     when no response was received
//   - a non-2xx status returns the response together with an error carrying the
//     status code and body
//   - decode errors include a truncated preview of the body
//
// The response body is always closed; close failures are logged, never returned.
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling body: %w", err)
	}

	if span != nil {
		span.AddEvent("http.request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(jsonBody)),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return do[OutputStruct](ctx, httpClient, req, span, headers)
}

// DoGetSync performs a synchronous HTTP GET and decodes the JSON response
// into OutputStruct. Errors are reported as in [DoPostSync].
func DoGetSync[OutputStruct any](ctx context.Context, client *http.Client, url string, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if span != nil {
		span.AddEvent("http.request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodGet),
			observability.String(observability.AttrHTTPURL, url),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	return do[OutputStruct](ctx, httpClient, req, span, headers)
}

func do[OutputStruct any](ctx context.Context, httpClient *http.Client, req *http.Request, span observability.Span, headers []HeaderOption) (*http.Response, *OutputStruct, error) {
	req.Header.Set("Accept", "application/json")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	requestStart := time.Now()
	res, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)
	if err != nil {
		if span != nil {
			span.AddEvent("http.request.error",
				observability.Error(err),
				observability.Duration("http.request.duration", requestDuration),
			)
		}
		return nil, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(ctx, res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return res, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span != nil {
		span.AddEvent("http.response.received",
			observability.Int(observability.AttrHTTPStatusCode, res.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration("http.request.duration", requestDuration),
		)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, nil, fmt.Errorf("non-2xx status %d: %s", res.StatusCode, observability.TruncateStringDefault(string(respBody)))
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return res, nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s", res.StatusCode, err, observability.TruncateStringDefault(string(respBody)))
	}

	return res, &resStruct, nil
}

// CloseWithLog closes closer and reports a failure as a warning on the
// observer carried by ctx, if any.
func CloseWithLog(ctx context.Context, closer io.Closer) {
	if err := closer.Close(); err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Warn(ctx, "failed to close", observability.Error(err))
		}
	}
}
