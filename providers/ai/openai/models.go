package openai

import "github.com/leofalp/sleuth/providers/ai"

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// requestFromGeneric places the system prompt first, then the conversation.
func requestFromGeneric(model string, temperature *float64, request ai.CompletionRequest) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(ai.RoleSystem), Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, chatMessage{
			Role:    string(message.Role),
			Content: message.Content,
			Name:    message.Name,
		})
	}

	return chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
}

// responseToGeneric keeps the first choice only.
func responseToGeneric(response chatCompletionResponse) *ai.Completion {
	completion := &ai.Completion{
		ID:           response.ID,
		Model:        response.Model,
		Content:      response.Choices[0].Message.Content,
		FinishReason: response.Choices[0].FinishReason,
	}
	if response.Usage != nil {
		completion.Usage = &ai.Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		}
	}
	return completion
}
