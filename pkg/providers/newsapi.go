package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adda-Baaj/news-digest/internal/domain"
)

const (
	newsAPIRemoved     = "[Removed]"
	newsAPIMaxPageSize = 100
)

// newsAPIResponse is the envelope returned by both NewsAPI article endpoints.
type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
}

// newsAPIFetcher implements Fetcher for the NewsAPI top-headlines and everything endpoints.
type newsAPIFetcher struct {
	client HTTPClient
	typ    string
	now    func() time.Time
}

// NewTopHeadlinesFetcher builds a fetcher for the NewsAPI top-headlines endpoint.
func NewTopHeadlinesFetcher(client HTTPClient) Fetcher {
	return newNewsAPIFetcher(client, ProviderTypeTopHeadlines)
}

// NewEverythingFetcher builds a fetcher for the NewsAPI everything endpoint.
func NewEverythingFetcher(client HTTPClient) Fetcher {
	return newNewsAPIFetcher(client, ProviderTypeEverything)
}

func newNewsAPIFetcher(client HTTPClient, typ string) *newsAPIFetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &newsAPIFetcher{client: client, typ: typ, now: time.Now}
}

func (f *newsAPIFetcher) ID() string {
	return f.typ
}

// Fetch issues one GET and returns the first cfg.Limit articles in provider order.
func (f *newsAPIFetcher) Fetch(ctx context.Context, cfg Provider) ([]domain.Article, error) {
	if !strings.EqualFold(cfg.Type, f.typ) {
		return nil, fmt.Errorf("%s fetcher received incompatible provider type %q", f.typ, cfg.Type)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %q api key is empty", cfg.ID)
	}

	endpoint, err := f.endpoint(cfg)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Get(ctx, endpoint, Headers(cfg))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.typ, redactErr(err))
	}

	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, newsAPIStatusError(f.typ, resp.StatusCode(), body)
	}

	var payload newsAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", f.typ, err)
	}
	if strings.EqualFold(payload.Status, "error") {
		return nil, &StatusError{
			Provider:   f.typ,
			StatusCode: resp.StatusCode(),
			Code:       payload.Code,
			Message:    payload.Message,
			Body:       responseSnippet(body),
		}
	}

	articles := buildArticlesFromNewsAPI(payload.Articles, cfg.SummarySentences)
	return truncate(articles, cfg.Limit), nil
}

// endpoint builds the request URL for the provider, including the api key.
func (f *newsAPIFetcher) endpoint(cfg Provider) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.SourceURL), "/")
	if base == "" {
		base = DefaultNewsAPIBaseURL
	}

	params := url.Values{}
	params.Set("apiKey", cfg.APIKey)
	if cfg.Language != "" {
		params.Set("language", cfg.Language)
	}
	if cfg.SortBy != "" {
		params.Set("sortBy", cfg.SortBy)
	}
	if size := pageSize(cfg); size > 0 {
		params.Set("pageSize", strconv.Itoa(size))
	}

	var path string
	switch f.typ {
	case ProviderTypeTopHeadlines:
		path = "/top-headlines"
		if cfg.Category != "" {
			params.Set("category", cfg.Category)
		}
		if cfg.Country != "" {
			params.Set("country", cfg.Country)
		}
		if cfg.Query != "" {
			params.Set("q", cfg.Query)
		}
	case ProviderTypeEverything:
		path = "/everything"
		if strings.TrimSpace(cfg.Query) == "" {
			return "", fmt.Errorf("provider %q query is empty", cfg.ID)
		}
		params.Set("q", cfg.Query)
		if cfg.Domains != "" {
			params.Set("domains", cfg.Domains)
		}
		if cfg.Lookback > 0 {
			params.Set("from", f.now().UTC().Add(-cfg.Lookback).Format("2006-01-02T15:04:05Z"))
		}
	default:
		return "", fmt.Errorf("unknown newsapi provider type %q", f.typ)
	}

	return base + path + "?" + params.Encode(), nil
}

// pageSize bounds the requested result set; it never asks for fewer than Limit.
func pageSize(cfg Provider) int {
	size := cfg.PageSize
	if size < cfg.Limit {
		size = cfg.Limit
	}
	if size > newsAPIMaxPageSize {
		size = newsAPIMaxPageSize
	}
	return size
}

func newsAPIStatusError(provider string, status int, body []byte) error {
	serr := &StatusError{
		Provider:   provider,
		StatusCode: status,
		Body:       responseSnippet(body),
	}
	var payload newsAPIResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		serr.Code = payload.Code
		serr.Message = payload.Message
	}
	return serr
}

// buildArticlesFromNewsAPI converts the API payload, skipping removed entries.
func buildArticlesFromNewsAPI(items []newsAPIArticle, summarySentences int) []domain.Article {
	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		title := plainText(deref(item.Title))
		link := strings.TrimSpace(item.URL)
		if title == newsAPIRemoved || link == "" || strings.Contains(link, "removed.com") {
			continue
		}
		if title == "" {
			title = untitledArticle
		}

		articles = append(articles, domain.Article{
			ID:          hashURL(link),
			Title:       title,
			URL:         link,
			Description: CleanDescription(deref(item.Description), summarySentences),
			ImageURL:    strings.TrimSpace(deref(item.URLToImage)),
			Source:      strings.TrimSpace(item.Source.Name),
			PublishedAt: parsePublicationDate(item.PublishedAt),
		})
	}
	return articles
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
