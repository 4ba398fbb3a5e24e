// Package slogobs implements [observability.Provider] on log/slog. Spans and
// metric updates are emitted as debug records; counters also keep their
// running totals in memory so they can be read back with [Observer.CounterValue].
//
// Output is produced by [Handler] in one of three formats (compact, pretty,
// json). [New] reads SLEUTH_LOG_FORMAT and SLEUTH_LOG_LEVEL, falling back to
// LOG_FORMAT and LOG_LEVEL, unless options say otherwise.
package slogobs
