package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const timeLayout = "2006-01-02 15:04:05"

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Format Format
	Level  slog.Leveler
	// Output defaults to os.Stderr.
	Output io.Writer
	// Colors forces ANSI colors; otherwise they follow terminal detection.
	Colors bool
}

// Handler is a slog.Handler rendering records as compact lines, pretty
// blocks or JSON objects. Attribute order is preserved; group names prefix
// keys with dots.
type Handler struct {
	format Format
	level  slog.Leveler
	output io.Writer
	colors bool
	mu     *sync.Mutex
	attrs  []field
	prefix string
	json   slog.Handler
}

type field struct {
	key   string
	value any
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler creates a Handler. A nil opts yields compact INFO output on stderr.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	handler := &Handler{
		format: opts.Format,
		level:  opts.Level,
		output: opts.Output,
		colors: opts.Colors,
		mu:     &sync.Mutex{},
	}
	if handler.format == "" {
		handler.format = FormatCompact
	}
	if handler.level == nil {
		handler.level = slog.LevelInfo
	}
	if handler.output == nil {
		handler.output = os.Stderr
	}
	if !handler.colors && handler.format != FormatJSON {
		if file, ok := handler.output.(*os.File); ok {
			handler.colors = isTerminal(file)
		}
	}
	if handler.format == FormatJSON {
		handler.colors = false
		handler.json = slog.NewJSONHandler(handler.output, &slog.HandlerOptions{
			Level:       handler.level,
			ReplaceAttr: replaceLevel,
		})
	}
	return handler
}

// replaceLevel renders custom levels (TRACE) by name in JSON output.
func replaceLevel(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 && attr.Key == slog.LevelKey {
		if level, ok := attr.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, levelString(level))
		}
	}
	return attr
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if h.json != nil {
		return h.json.Handle(ctx, record)
	}

	fields := make([]field, 0, len(h.attrs)+record.NumAttrs())
	fields = append(fields, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, attr)
		return true
	})

	var buf bytes.Buffer
	if h.format == FormatPretty {
		h.writePretty(&buf, record, fields)
	} else {
		h.writeCompact(&buf, record, fields)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.output.Write(buf.Bytes())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	if h.json != nil {
		clone.json = h.json.WithAttrs(attrs)
		return &clone
	}
	clone.attrs = append([]field{}, h.attrs...)
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, attr)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.json != nil {
		clone.json = h.json.WithGroup(name)
		return &clone
	}
	clone.prefix = h.prefix + name + "."
	return &clone
}

// appendAttr flattens groups into dotted keys and drops empty attributes.
func appendAttr(fields []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return fields
	}
	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			fields = appendAttr(fields, groupPrefix, member)
		}
		return fields
	}
	return append(fields, field{key: prefix + attr.Key, value: plainValue(attr.Value)})
}

func plainValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().Format(timeLayout)
	}
	if err, ok := value.Any().(error); ok {
		return err.Error()
	}
	return value.Any()
}

func (h *Handler) writeLevel(buf *bytes.Buffer, level slog.Level) {
	name := fmt.Sprintf("%5s", levelString(level))
	if h.colors {
		buf.WriteString(colorForLevel(level))
		buf.WriteString(name)
		buf.WriteString(colorReset)
		return
	}
	buf.WriteString(name)
}

// writeCompact renders `2026-10-19 10:40:35  INFO message -> {"k":"v"}`.
func (h *Handler) writeCompact(buf *bytes.Buffer, record slog.Record, fields []field) {
	buf.WriteString(record.Time.Format(timeLayout))
	buf.WriteByte(' ')
	h.writeLevel(buf, record.Level)
	buf.WriteByte(' ')
	buf.WriteString(record.Message)

	if len(fields) > 0 {
		buf.WriteString(" -> {")
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(f.key)
			buf.Write(key)
			buf.WriteByte(':')
			value, err := json.Marshal(f.value)
			if err != nil {
				value, _ = json.Marshal(fmt.Sprintf("%v", f.value))
			}
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('\n')
}

// writePretty renders the message line followed by one indented line per field.
func (h *Handler) writePretty(buf *bytes.Buffer, record slog.Record, fields []field) {
	buf.WriteString(record.Time.Format(timeLayout))
	buf.WriteByte(' ')
	h.writeLevel(buf, record.Level)
	buf.WriteString("  ")
	buf.WriteString(record.Message)
	buf.WriteByte('\n')

	indent := strings.Repeat(" ", len(timeLayout)+1)
	for i, f := range fields {
		branch := "|- "
		if i == len(fields)-1 {
			branch = "`- "
		}
		buf.WriteString(indent)
		buf.WriteString(branch)
		buf.WriteString(f.key)
		buf.WriteString(": ")
		fmt.Fprintf(buf, "%v", f.value)
		buf.WriteByte('\n')
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func colorForLevel(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return colorGray
	case level < slog.LevelInfo:
		return colorBlue
	case level < slog.LevelWarn:
		return colorGreen
	case level < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}

func isTerminal(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
