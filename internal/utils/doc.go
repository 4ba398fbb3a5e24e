// Package utils holds the HTTP plumbing shared by the completion and
// retrieval adapters: [DoPostSync] and [DoGetSync] for JSON round-trips with
// span events, and [CloseWithLog] for deferred body cleanup.
package utils
