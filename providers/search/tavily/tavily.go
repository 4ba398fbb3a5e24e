package tavily

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/leofalp/sleuth/internal/utils"
	"github.com/leofalp/sleuth/providers/observability"
	"github.com/leofalp/sleuth/providers/search"
)

const (
	providerName = "tavily"
	baseURL      = "https://api.tavily.com"
	envAPIKey    = "TAVILY_API_KEY"

	defaultMaxResults = 5
	maxResultsLimit   = 20
)

// ErrMissingAPIKey is returned when TAVILY_API_KEY is not set and no key was
// configured explicitly.
var ErrMissingAPIKey = errors.New("tavily: " + envAPIKey + " is not set")

// Provider is a Tavily Search client.
type Provider struct {
	apiKey      string
	baseURL     string
	searchDepth string
	rawContent  bool
	client      *http.Client
	observer    observability.Provider
}

var _ search.Provider = (*Provider)(nil)

// New creates a client using the key in TAVILY_API_KEY and basic search depth.
func New() *Provider {
	return &Provider{
		apiKey:      os.Getenv(envAPIKey),
		baseURL:     baseURL,
		searchDepth: "basic",
		client:      &http.Client{},
	}
}

// WithAPIKey sets the API key.
func (p *Provider) WithAPIKey(apiKey string) *Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API endpoint.
func (p *Provider) WithBaseURL(url string) *Provider {
	p.baseURL = strings.TrimRight(url, "/")
	return p
}

// WithSearchDepth selects "basic" (1 credit) or "advanced" (2 credits).
func (p *Provider) WithSearchDepth(depth string) *Provider {
	p.searchDepth = depth
	return p
}

// WithRawContent asks Tavily for the full page content; it replaces the
// snippet in the returned documents whenever present.
func (p *Provider) WithRawContent(enabled bool) *Provider {
	p.rawContent = enabled
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

// Search returns up to maxResults documents for query. A non-positive
// maxResults uses the default of 5; values above 20 are capped.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]search.Document, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	maxResults = min(maxResults, maxResultsLimit)

	return search.Observe(ctx, p.observer, providerName, query, maxResults, p.search)
}

func (p *Provider) search(ctx context.Context, query string, maxResults int) ([]search.Document, error) {
	if p.apiKey == "" {
		return nil, &search.RetrievalServiceError{Provider: providerName, Query: query, Err: ErrMissingAPIKey}
	}

	request := searchRequest{
		Query:             query,
		SearchDepth:       p.searchDepth,
		MaxResults:        maxResults,
		IncludeRawContent: p.rawContent,
	}
	httpResponse, response, err := utils.DoPostSync[searchResponse](ctx, p.client, p.baseURL+"/search", p.apiKey, request)
	if err != nil {
		serviceErr := &search.RetrievalServiceError{Provider: providerName, Query: query, Err: err}
		if httpResponse != nil {
			serviceErr.StatusCode = httpResponse.StatusCode
		}
		return nil, serviceErr
	}

	documents := make([]search.Document, 0, len(response.Results))
	for _, result := range response.Results {
		if len(documents) == maxResults {
			break
		}
		content := result.Content
		if result.RawContent != "" {
			content = result.RawContent
		}
		documents = append(documents, search.Document{
			URL:     result.URL,
			Title:   result.Title,
			Content: search.CleanContent(content),
		})
	}
	return documents, nil
}
