package slogobs

import (
	"fmt"
	"os"
	"strings"
)

// Format is the rendering used by [Handler].
type Format string

const (
	// FormatCompact renders one line per record with attributes as JSON:
	//	2026-10-19 10:40:35  INFO run finished -> {"graph":"leader"}
	FormatCompact Format = "compact"

	// FormatPretty renders the message on one line and each attribute below it.
	FormatPretty Format = "pretty"

	// FormatJSON renders one JSON object per record.
	FormatJSON Format = "json"
)

const (
	envLogFormat         = "SLEUTH_LOG_FORMAT"
	envLogFormatFallback = "LOG_FORMAT"
)

// ParseFormat parses a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCompact:
		return FormatCompact, nil
	case FormatPretty:
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatCompact, fmt.Errorf("slogobs: unknown log format %q", s)
	}
}

// FormatFromEnv reads SLEUTH_LOG_FORMAT, then LOG_FORMAT. Unset or invalid
// values yield [FormatCompact].
func FormatFromEnv() Format {
	value := lookupEnv(envLogFormat, envLogFormatFallback)
	if value == "" {
		return FormatCompact
	}
	format, _ := ParseFormat(value)
	return format
}

func (f Format) String() string {
	return string(f)
}

// lookupEnv returns the first non-empty value among keys.
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
