package slogobs

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below slog.LevelDebug and is used by Observer.Trace.
const LevelTrace = slog.LevelDebug - 4

const (
	envLogLevel         = "SLEUTH_LOG_LEVEL"
	envLogLevelFallback = "LOG_LEVEL"
)

// ParseLevel parses TRACE, DEBUG, INFO, WARN (or WARNING) and ERROR,
// case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("slogobs: unknown log level %q", s)
	}
}

// LevelFromEnv reads SLEUTH_LOG_LEVEL, then LOG_LEVEL. Unset or invalid
// values yield INFO.
func LevelFromEnv() slog.Level {
	value := lookupEnv(envLogLevel, envLogLevelFallback)
	if value == "" {
		return slog.LevelInfo
	}
	level, _ := ParseLevel(value)
	return level
}

// levelString maps any level onto the five names above.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}
