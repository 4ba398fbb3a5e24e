package middleware

import "errors"

// ErrRetryExhausted is returned by the retry middleware when every attempt
// failed with a retryable error. The last provider error is wrapped alongside
// it, so [errors.As] still reaches the [ai.CompletionServiceError].
var ErrRetryExhausted = errors.New("middleware: all retry attempts exhausted")
