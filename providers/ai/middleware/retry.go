package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"time"

	"github.com/leofalp/sleuth/providers/ai"
)

// RetryConfig tunes the retry middleware. Zero values are replaced by the
// defaults documented on each field.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure. Default: 3.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff. Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier. Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds up to JitterFraction*backoff of random noise. Default: 0.1.
	JitterFraction float64

	// RetryableFunc decides whether an error deserves another attempt.
	// Default: [IsRetryable].
	RetryableFunc func(error) bool
}

var retryableStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	529, // provider overloaded
}

// IsRetryable reports whether err is a transient completion failure: a
// [ai.CompletionServiceError] carrying 429 or a 5xx overload status, or one
// that never got a response (transport failure). Context cancellation and
// deadline errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var serviceErr *ai.CompletionServiceError
	if !errors.As(err, &serviceErr) {
		return false
	}
	if serviceErr.StatusCode == 0 {
		return true
	}
	return slices.Contains(retryableStatusCodes, serviceErr.StatusCode)
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = IsRetryable
	}
}

// computeBackoff returns min(InitialBackoff * BackoffFactor^attempt, MaxBackoff) plus jitter.
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

// NewRetry retries failed completions with exponential backoff. Non-retryable
// errors are returned unchanged on the first occurrence; on exhaustion the
// error wraps both [ErrRetryExhausted] and the last provider error.
func NewRetry(config RetryConfig) ai.Middleware {
	applyRetryDefaults(&config)

	return func(next ai.CompleteFunc) ai.CompleteFunc {
		return func(ctx context.Context, request ai.CompletionRequest) (*ai.Completion, error) {
			var lastErr error

			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					timer := time.NewTimer(computeBackoff(config, attempt-1))
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, ctx.Err()
					case <-timer.C:
					}
				}

				completion, err := next(ctx, request)
				if err == nil {
					return completion, nil
				}
				lastErr = err

				if !config.RetryableFunc(err) {
					return nil, err
				}
			}

			return nil, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		}
	}
}
