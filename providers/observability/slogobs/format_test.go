package slogobs

import (
	"log/slog"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "compact", want: FormatCompact},
		{input: " PRETTY ", want: FormatPretty},
		{input: "Json", want: FormatJSON},
		{input: "xml", want: FormatCompact, wantErr: true},
		{input: "", want: FormatCompact, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.input, got, err)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "trace", want: LevelTrace},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warning", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.input, got, err)
		}
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		sleuthFormat string
		format       string
		sleuthLevel  string
		level        string
		wantFormat   Format
		wantLevel    slog.Level
	}{
		{name: "defaults", wantFormat: FormatCompact, wantLevel: slog.LevelInfo},
		{name: "prefixed wins", sleuthFormat: "pretty", format: "json", sleuthLevel: "debug", level: "error", wantFormat: FormatPretty, wantLevel: slog.LevelDebug},
		{name: "fallback", format: "json", level: "warn", wantFormat: FormatJSON, wantLevel: slog.LevelWarn},
		{name: "invalid", sleuthFormat: "xml", sleuthLevel: "loud", wantFormat: FormatCompact, wantLevel: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envLogFormat, tt.sleuthFormat)
			t.Setenv(envLogFormatFallback, tt.format)
			t.Setenv(envLogLevel, tt.sleuthLevel)
			t.Setenv(envLogLevelFallback, tt.level)

			if got := FormatFromEnv(); got != tt.wantFormat {
				t.Errorf("FormatFromEnv() = %v, want %v", got, tt.wantFormat)
			}
			if got := LevelFromEnv(); got != tt.wantLevel {
				t.Errorf("LevelFromEnv() = %v, want %v", got, tt.wantLevel)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	levels := map[slog.Level]string{
		LevelTrace:          "TRACE",
		slog.LevelDebug:     "DEBUG",
		slog.LevelInfo:      "INFO",
		slog.LevelInfo + 2:  "INFO",
		slog.LevelWarn:      "WARN",
		slog.LevelError:     "ERROR",
		slog.LevelError + 4: "ERROR",
	}
	for level, want := range levels {
		if got := levelString(level); got != want {
			t.Errorf("levelString(%d) = %q, want %q", level, got, want)
		}
	}
}
