package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leofalp/sleuth/providers/ai"
	"github.com/leofalp/sleuth/providers/observability"
)

// LogLevel controls how much detail the logging middleware emits per call.
type LogLevel int

const (
	// LogLevelMinimal logs the model, duration and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the message count and finish reason.
	LogLevelStandard

	// LogLevelVerbose adds the system prompt and the answer, truncated.
	// Prompts carry retrieved page content; keep this for local debugging.
	LogLevelVerbose
)

// truncateLen bounds prompt and answer text in verbose entries.
const truncateLen = 500

// ParseLogLevel parses minimal, standard or verbose, case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return LogLevelMinimal, nil
	case "standard":
		return LogLevelStandard, nil
	case "verbose":
		return LogLevelVerbose, nil
	default:
		return LogLevelMinimal, fmt.Errorf("middleware: unknown log level %q", s)
	}
}

func (l LogLevel) String() string {
	switch l {
	case LogLevelMinimal:
		return "minimal"
	case LogLevelStandard:
		return "standard"
	case LogLevelVerbose:
		return "verbose"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// NewLogging writes one entry before and one after every completion call.
// The logger must not be nil; use slog.Default() when none is configured.
func NewLogging(logger *slog.Logger, level LogLevel) ai.Middleware {
	return func(next ai.CompleteFunc) ai.CompleteFunc {
		return func(ctx context.Context, request ai.CompletionRequest) (*ai.Completion, error) {
			logger.InfoContext(ctx, "llm send", requestAttrs(request, level)...)

			start := time.Now()
			completion, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "llm send failed",
					slog.String("model", request.Model),
					slog.Duration("duration", elapsed),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "llm send completed", completionAttrs(completion, elapsed, level)...)
			return completion, nil
		}
	}
}

func requestAttrs(request ai.CompletionRequest, level LogLevel) []any {
	attrs := []any{slog.String("model", request.Model)}

	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("message_count", len(request.Messages)))
	}
	if level >= LogLevelVerbose && request.SystemPrompt != "" {
		attrs = append(attrs, slog.String("system_prompt", observability.TruncateString(request.SystemPrompt, truncateLen)))
	}
	return attrs
}

func completionAttrs(completion *ai.Completion, elapsed time.Duration, level LogLevel) []any {
	attrs := []any{
		slog.String("model", completion.Model),
		slog.Duration("duration", elapsed),
	}

	if completion.Usage != nil {
		attrs = append(attrs,
			slog.Int("prompt_tokens", completion.Usage.PromptTokens),
			slog.Int("completion_tokens", completion.Usage.CompletionTokens),
			slog.Int("total_tokens", completion.Usage.TotalTokens),
		)
	}
	if level >= LogLevelStandard && completion.FinishReason != "" {
		attrs = append(attrs, slog.String("finish_reason", completion.FinishReason))
	}
	if level >= LogLevelVerbose && completion.Content != "" {
		attrs = append(attrs, slog.String("content", observability.TruncateString(completion.Content, truncateLen)))
	}
	return attrs
}
