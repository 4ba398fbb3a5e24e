package brave

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/leofalp/sleuth/internal/utils"
	"github.com/leofalp/sleuth/providers/observability"
	"github.com/leofalp/sleuth/providers/search"
)

const (
	providerName = "brave"
	baseURL      = "https://api.search.brave.com/res/v1"
	envAPIKey    = "BRAVE_SEARCH_API_KEY"

	defaultMaxResults = 10
	maxResultsLimit   = 20
)

// ErrMissingAPIKey is returned when BRAVE_SEARCH_API_KEY is not set and no key
// was configured explicitly.
var ErrMissingAPIKey = errors.New("brave: " + envAPIKey + " is not set")

// Provider is a Brave Search client.
type Provider struct {
	apiKey     string
	baseURL    string
	country    string
	searchLang string
	safeSearch string
	freshness  string
	client     *http.Client
	observer   observability.Provider
}

var _ search.Provider = (*Provider)(nil)

// New creates a client using the key in BRAVE_SEARCH_API_KEY.
func New() *Provider {
	return &Provider{
		apiKey:  os.Getenv(envAPIKey),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (p *Provider) WithAPIKey(apiKey string) *Provider {
	p.apiKey = apiKey
	return p
}

func (p *Provider) WithBaseURL(url string) *Provider {
	p.baseURL = strings.TrimRight(url, "/")
	return p
}

// WithCountry localizes results, e.g. "us" or "de".
func (p *Provider) WithCountry(country string) *Provider {
	p.country = country
	return p
}

// WithSearchLang restricts results to a language code such as "en".
func (p *Provider) WithSearchLang(lang string) *Provider {
	p.searchLang = lang
	return p
}

// WithSafeSearch sets "off", "moderate" or "strict".
func (p *Provider) WithSafeSearch(level string) *Provider {
	p.safeSearch = level
	return p
}

// WithFreshness limits results by age: "pd", "pw", "pm" or "py".
func (p *Provider) WithFreshness(freshness string) *Provider {
	p.freshness = freshness
	return p
}

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

// Search returns up to maxResults web results for query. A non-positive
// maxResults uses the default of 10; values above 20 are capped.
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

	httpResponse, response, err := utils.DoGetSync[webSearchResponse](ctx, p.client, p.searchURL(query, maxResults),
		utils.HeaderOption{Key: "X-Subscription-Token", Value: p.apiKey},
	)
	if err != nil {
		serviceErr := &search.RetrievalServiceError{Provider: providerName, Query: query, Err: err}
		if httpResponse != nil {
			serviceErr.StatusCode = httpResponse.StatusCode
		}
		return nil, serviceErr
	}
	if response.Web == nil {
		return []search.Document{}, nil
	}

	documents := make([]search.Document, 0, len(response.Web.Results))
	for _, result := range response.Web.Results {
		if len(documents) == maxResults {
			break
		}
		documents = append(documents, search.Document{
			URL:     result.URL,
			Title:   search.CleanContent(result.Title),
			Content: resultContent(result),
		})
	}
	return documents, nil
}

func (p *Provider) searchURL(query string, maxResults int) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(maxResults))
	params.Set("result_filter", "web")
	if p.country != "" {
		params.Set("country", p.country)
	}
	if p.searchLang != "" {
		params.Set("search_lang", p.searchLang)
	}
	if p.safeSearch != "" {
		params.Set("safesearch", p.safeSearch)
	}
	if p.freshness != "" {
		params.Set("freshness", p.freshness)
	}
	return p.baseURL + "/web/search?" + params.Encode()
}

func resultContent(result webResult) string {
	parts := make([]string, 0, 1+len(result.ExtraSnippets))
	if description := search.CleanContent(result.Description); description != "" {
		parts = append(parts, description)
	}
	for _, snippet := range result.ExtraSnippets {
		if snippet = search.CleanContent(snippet); snippet != "" {
			parts = append(parts, snippet)
		}
	}
	return strings.Join(parts, "\n")
}
