// Package ai defines the provider-agnostic completion surface used by the
// investigation stages. A [Provider] turns a [CompletionRequest] (system
// prompt plus conversation) into a single [Completion]; concrete backends such
// as the OpenAI-compatible client in the openai subpackage map these types to
// their own wire format.
//
// Failures coming from a backend are reported as [*CompletionServiceError] so
// callers can recover them with [errors.As] after they travel through the
// graph engine. [Chain] composes [Middleware] around a provider; retry and
// timeout policies live in the middleware subpackage.
package ai
