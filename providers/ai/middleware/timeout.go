package middleware

import (
	"context"
	"time"

	"github.com/leofalp/sleuth/providers/ai"
)

// NewTimeout bounds every completion call with context.WithTimeout. A shorter
// deadline already present on the caller's context wins. A non-positive
// timeout disables the middleware.
func NewTimeout(timeout time.Duration) ai.Middleware {
	return func(next ai.CompleteFunc) ai.CompleteFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.CompletionRequest) (*ai.Completion, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}
