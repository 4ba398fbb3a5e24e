package observability

import (
	"context"
	"fmt"
	"time"
)

// Provider bundles tracing, metrics and logging. Graph runs, checkpoint
// stores and the completion and retrieval adapters all accept one.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer starts spans. The returned context carries the new span for
// backends that nest spans natively.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is one timed unit of work. End must be called exactly once.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	SetStatus(code StatusCode, description string)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Metrics hands out named instruments. Asking twice for the same name
// returns instruments that feed the same series.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter only goes up.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records a distribution, e.g. request durations in seconds.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// Logger writes structured records at five severities.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute is a key-value pair attached to spans, metrics and log records.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

func StringSlice(key string, value []string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error stores err's message under [AttrError]; a nil error yields "".
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: AttrError, Value: ""}
	}
	return Attribute{Key: AttrError, Value: err.Error()}
}

// Status labels a request metric with [AttrStatus]: "success" for a nil
// error, "error" otherwise.
func Status(err error) Attribute {
	if err != nil {
		return String(AttrStatus, "error")
	}
	return String(AttrStatus, "success")
}

const (
	// DefaultMaxStringLength is the default maximum length for truncated strings
	DefaultMaxStringLength = 500
)

// TruncateString truncates a string to maxLen characters, adding a suffix with the original length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}

// TruncateStringDefault truncates a string using DefaultMaxStringLength
func TruncateStringDefault(s string) string {
	return TruncateString(s, DefaultMaxStringLength)
}
