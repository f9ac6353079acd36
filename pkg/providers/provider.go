package providers

import (
	"context"
	"time"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
)

const (
	// Supported provider types.
	ProviderTypeTopHeadlines = "newsapi-top-headlines"
	ProviderTypeEverything   = "newsapi-everything"
	ProviderTypeGoogleNews   = "google-news-sitemap"

	DefaultNewsAPIBaseURL = "https://newsapi.org/v2"
)

// HTTPClient is the client fetchers use to reach providers.
type HTTPClient = httpclient.Client

// Fetcher retrieves articles for one provider section.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, cfg Provider) ([]domain.Article, error)
}

// FetcherRegistry resolves the fetcher for a provider config.
type FetcherRegistry interface {
	FetcherFor(cfg Provider) (Fetcher, error)
}

// Provider describes one request to a news source and how its result is trimmed.
type Provider struct {
	ID        string // section name shown in the digest
	Type      string
	SourceURL string // API base URL, or the sitemap URL for sitemap providers
	APIKey    string

	Category string
	Country  string
	Language string
	Query    string
	Domains  string
	SortBy   string

	PageSize         int
	Limit            int
	Lookback         time.Duration
	SummarySentences int

	Headers map[string]string
}

// IsNewsAPI reports whether the provider talks to NewsAPI and needs an API key.
func (p Provider) IsNewsAPI() bool {
	return p.Type == ProviderTypeTopHeadlines || p.Type == ProviderTypeEverything
}

// Headers returns the request headers for a provider.
func Headers(cfg Provider) map[string]string {
	headers := map[string]string{
		"Accept": "application/json, application/xml;q=0.9, */*;q=0.8",
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return headers
}
