package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/leofalp/sleuth/providers/ai"
)

// sequence returns the configured errors in order, then succeeds.
type sequence struct {
	errors    []error
	callCount int
}

func (s *sequence) next(_ context.Context, _ ai.CompletionRequest) (*ai.Completion, error) {
	index := s.callCount
	s.callCount++
	if index < len(s.errors) && s.errors[index] != nil {
		return nil, s.errors[index]
	}
	return &ai.Completion{Content: "ok"}, nil
}

func serviceError(status int) error {
	return &ai.CompletionServiceError{Provider: "test", StatusCode: status, Err: errors.New(http.StatusText(status))}
}

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsRetryable(testCase *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "rate limited", err: serviceError(http.StatusTooManyRequests), expected: true},
		{name: "unavailable", err: serviceError(http.StatusServiceUnavailable), expected: true},
		{name: "overloaded", err: serviceError(529), expected: true},
		{name: "bad request", err: serviceError(http.StatusBadRequest), expected: false},
		{name: "unauthorized", err: serviceError(http.StatusUnauthorized), expected: false},
		{name: "transport", err: &ai.CompletionServiceError{Provider: "test", Err: errors.New("connection reset")}, expected: true},
		{name: "wrapped", err: fmt.Errorf("stage: %w", serviceError(http.StatusBadGateway)), expected: true},
		{name: "canceled", err: &ai.CompletionServiceError{Provider: "test", Err: context.Canceled}, expected: false},
		{name: "plain error", err: errors.New("500 in the message"), expected: false},
	}

	for _, test := range tests {
		testCase.Run(test.name, func(t *testing.T) {
			if got := IsRetryable(test.err); got != test.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}

func TestRetry_SucceedsAfterTransientFailures(testCase *testing.T) {
	calls := &sequence{errors: []error{serviceError(http.StatusServiceUnavailable), serviceError(http.StatusTooManyRequests)}}
	call := NewRetry(fastRetry(3))(calls.next)

	completion, err := call(context.Background(), ai.CompletionRequest{})
	if err != nil {
		testCase.Fatalf("unexpected error %v", err)
	}
	if completion.Content != "ok" {
		testCase.Errorf("unexpected completion %q", completion.Content)
	}
	if calls.callCount != 3 {
		testCase.Errorf("expected 3 calls, got %d", calls.callCount)
	}
}

func TestRetry_NonRetryableReturnsImmediately(testCase *testing.T) {
	original := serviceError(http.StatusBadRequest)
	calls := &sequence{errors: []error{original}}
	call := NewRetry(fastRetry(3))(calls.next)

	_, err := call(context.Background(), ai.CompletionRequest{})
	if err != original {
		testCase.Errorf("expected the original error, got %v", err)
	}
	if calls.callCount != 1 {
		testCase.Errorf("expected a single call, got %d", calls.callCount)
	}
}

func TestRetry_Exhausted(testCase *testing.T) {
	failures := []error{serviceError(500), serviceError(500), serviceError(502)}
	calls := &sequence{errors: failures}
	call := NewRetry(fastRetry(2))(calls.next)

	_, err := call(context.Background(), ai.CompletionRequest{})
	if !errors.Is(err, ErrRetryExhausted) {
		testCase.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	var serviceErr *ai.CompletionServiceError
	if !errors.As(err, &serviceErr) || serviceErr.StatusCode != http.StatusBadGateway {
		testCase.Errorf("expected the last service error to be reachable, got %v", err)
	}
	if calls.callCount != 3 {
		testCase.Errorf("expected 3 calls, got %d", calls.callCount)
	}
}

func TestRetry_ContextCanceledDuringBackoff(testCase *testing.T) {
	calls := &sequence{errors: []error{serviceError(503), serviceError(503)}}
	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	call := NewRetry(config)(calls.next)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := call(ctx, ai.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		testCase.Errorf("expected the context error, got %v", err)
	}
	if calls.callCount != 1 {
		testCase.Errorf("expected a single call before cancellation, got %d", calls.callCount)
	}
}

func TestComputeBackoff(testCase *testing.T) {
	config := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2, JitterFraction: 0.1}

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{attempt: 0, min: 100 * time.Millisecond, max: 110 * time.Millisecond},
		{attempt: 2, min: 400 * time.Millisecond, max: 440 * time.Millisecond},
		{attempt: 10, min: time.Second, max: 1100 * time.Millisecond},
	}
	for _, test := range tests {
		got := computeBackoff(config, test.attempt)
		if got < test.min || got > test.max {
			testCase.Errorf("attempt %d: backoff %v outside [%v, %v]", test.attempt, got, test.min, test.max)
		}
	}
}
