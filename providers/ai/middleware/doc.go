// Package middleware provides [ai.Middleware] implementations for completion
// providers. Compose them with [ai.Chain]:
//
//	provider := ai.Chain(openai.New(),
//	    middleware.NewTimeout(90*time.Second),
//	    middleware.NewRetry(middleware.RetryConfig{MaxRetries: 2}),
//	    middleware.NewLogging(slog.Default(), middleware.LogLevelStandard),
//	)
//
// Place the timeout outside the retry to bound the whole call, or inside it
// to bound each attempt. Logging placed inside the retry writes one entry
// pair per attempt.
package middleware
