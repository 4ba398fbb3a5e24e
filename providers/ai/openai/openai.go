package openai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/leofalp/sleuth/internal/utils"
	"github.com/leofalp/sleuth/providers/ai"
	"github.com/leofalp/sleuth/providers/observability"
)

const (
	providerName            = "openai"
	defaultBaseURL          = "https://api.openai.com/v1"
	defaultModel            = "gpt-4o"
	chatCompletionsEndpoint = "/chat/completions"

	envAPIKey  = "OPENAI_API_KEY"
	envBaseURL = "OPENAI_API_BASE_URL"
)

var (
	// ErrMissingAPIKey is returned when no API key was configured.
	ErrMissingAPIKey = errors.New("openai: API key is not set")
	// ErrEmptyChoices is returned when the backend answers without any choice.
	ErrEmptyChoices = errors.New("openai: no choices in response")
)

// Provider is an OpenAI-compatible chat-completions client.
type Provider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	observer    observability.Provider
}

var _ ai.Provider = (*Provider)(nil)

// New creates a provider configured from OPENAI_API_KEY and
// OPENAI_API_BASE_URL, using gpt-4o at temperature 0.
func New() *Provider {
	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		apiKey:  os.Getenv(envAPIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   defaultModel,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the bearer token.
func (p *Provider) WithAPIKey(apiKey string) *Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL, e.g. for a local gateway.
func (p *Provider) WithBaseURL(baseURL string) *Provider {
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

// WithModel sets the default model; a request Model takes precedence.
func (p *Provider) WithModel(model string) *Provider {
	p.model = model
	return p
}

// WithTemperature sets the default sampling temperature.
func (p *Provider) WithTemperature(temperature float64) *Provider {
	p.temperature = temperature
	return p
}

// WithHttpClient sets the HTTP client used for outbound requests.
func (p *Provider) WithHttpClient(httpClient *http.Client) *Provider {
	p.client = httpClient
	return p
}

// WithObserver sets the observability provider. Without one, the observer
// found in the request context is used.
func (p *Provider) WithObserver(observer observability.Provider) *Provider {
	p.observer = observer
	return p
}

// Complete sends request to /chat/completions and returns the first choice.
// Every failure is reported as an [*ai.CompletionServiceError].
func (p *Provider) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.Completion, error) {
	model := request.Model
	if model == "" {
		model = p.model
	}
	temperature := p.temperature
	if request.Temperature != nil {
		temperature = *request.Temperature
	}
	body := requestFromGeneric(model, &temperature, request)

	observer := p.observer
	if observer == nil {
		observer = observability.ObserverFromContext(ctx)
	}

	var span observability.Span
	if observer != nil {
		ctx, span = observer.StartSpan(ctx, observability.SpanLLMRequest,
			observability.String(observability.AttrLLMProvider, providerName),
			observability.String(observability.AttrLLMModel, model),
			observability.String(observability.AttrLLMEndpoint, p.baseURL+chatCompletionsEndpoint),
			observability.Float64(observability.AttrLLMTemperature, temperature),
			observability.Int(observability.AttrLLMMessagesCount, len(body.Messages)),
		)
		defer span.End()
		ctx = observability.ContextWithSpan(ctx, span)
	}

	start := time.Now()
	completion, err := p.send(ctx, body)
	duration := time.Since(start)

	if observer != nil {
		p.observe(ctx, observer, span, model, completion, err, duration)
	}
	return completion, err
}

func (p *Provider) send(ctx context.Context, body chatCompletionRequest) (*ai.Completion, error) {
	if p.apiKey == "" {
		return nil, &ai.CompletionServiceError{Provider: providerName, Err: ErrMissingAPIKey}
	}

	httpResponse, response, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, body)
	if err != nil {
		serviceErr := &ai.CompletionServiceError{Provider: providerName, Err: err}
		if httpResponse != nil {
			serviceErr.StatusCode = httpResponse.StatusCode
		}
		return nil, serviceErr
	}
	if len(response.Choices) == 0 {
		return nil, &ai.CompletionServiceError{Provider: providerName, StatusCode: httpResponse.StatusCode, Err: ErrEmptyChoices}
	}

	return responseToGeneric(*response), nil
}

func (p *Provider) observe(ctx context.Context, observer observability.Provider, span observability.Span, model string, completion *ai.Completion, err error, duration time.Duration) {
	attrs := []observability.Attribute{
		observability.String(observability.AttrLLMProvider, providerName),
		observability.String(observability.AttrLLMModel, model),
		observability.Status(err),
	}
	observer.Counter(observability.MetricLLMRequestCount).Add(ctx, 1, attrs...)
	observer.Histogram(observability.MetricLLMRequestDuration).Record(ctx, duration.Seconds(), attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusError, err.Error())
		observer.Error(ctx, "completion request failed",
			observability.String(observability.AttrLLMModel, model),
			observability.Duration(observability.AttrDuration, duration),
			observability.Error(err),
		)
		return
	}

	spanAttrs := []observability.Attribute{
		observability.String(observability.AttrLLMResponseID, completion.ID),
		observability.String(observability.AttrLLMFinishReason, completion.FinishReason),
	}
	if completion.Usage != nil {
		spanAttrs = append(spanAttrs,
			observability.Int(observability.AttrLLMTokensPrompt, completion.Usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, completion.Usage.CompletionTokens),
		)
	}
	span.SetAttributes(spanAttrs...)
	span.SetStatus(observability.StatusOK, "")
	observer.Debug(ctx, "completion request finished",
		observability.String(observability.AttrLLMModel, model),
		observability.Duration(observability.AttrDuration, duration),
	)
}
