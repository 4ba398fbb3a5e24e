package ai

import (
	"context"
	"fmt"
	"strings"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single entry of a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	// Name optionally labels the author, e.g. the stage that produced an answer.
	Name string `json:"name,omitempty"`
}

// CompletionRequest carries everything a provider needs for one completion.
// Zero Model and nil Temperature mean "use the provider default".
type CompletionRequest struct {
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	Temperature  *float64  `json:"temperature,omitempty"`
}

// Usage reports token consumption when the backend exposes it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Completion is the answer produced for a CompletionRequest.
type Completion struct {
	ID           string `json:"id,omitempty"`
	Model        string `json:"model,omitempty"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Provider produces text completions. Implementations must be safe for
// concurrent use; fan-out branches share a single provider.
type Provider interface {
	Complete(ctx context.Context, request CompletionRequest) (*Completion, error)
}

// CompleteFunc adapts an ordinary function to the Provider interface.
type CompleteFunc func(ctx context.Context, request CompletionRequest) (*Completion, error)

// Complete calls fn.
func (fn CompleteFunc) Complete(ctx context.Context, request CompletionRequest) (*Completion, error) {
	return fn(ctx, request)
}

// Middleware decorates a completion call.
type Middleware func(next CompleteFunc) CompleteFunc

// Chain wraps provider with middlewares. The first middleware is the outermost,
// so it sees the request first and the response last.
func Chain(provider Provider, middlewares ...Middleware) Provider {
	if len(middlewares) == 0 {
		return provider
	}
	call := CompleteFunc(provider.Complete)
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			call = middlewares[i](call)
		}
	}
	return call
}

// CompletionServiceError reports a failure of the completion backend.
type CompletionServiceError struct {
	Provider string
	// StatusCode is the HTTP status returned by the backend, zero when the
	// request never produced a response.
	StatusCode int
	Err        error
}

func (e *CompletionServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: completion failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: completion failed: %v", e.Provider, e.Err)
}

func (e *CompletionServiceError) Unwrap() error {
	return e.Err
}

// BufferString renders messages as a plain transcript, one "Prefix: content"
// line per message. User messages are prefixed with "Human", assistant
// messages with "AI" and system messages with "System".
func BufferString(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, message := range messages {
		lines = append(lines, rolePrefix(message.Role)+": "+message.Content)
	}
	return strings.Join(lines, "\n")
}

func rolePrefix(role MessageRole) string {
	switch role {
	case RoleUser:
		return "Human"
	case RoleAssistant:
		return "AI"
	case RoleSystem:
		return "System"
	default:
		return string(role)
	}
}
