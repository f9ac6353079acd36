package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Adda-Baaj/news-digest/internal/domain"
)

// maxIndexDepth bounds how many sitemap index levels are followed.
const maxIndexDepth = 3

// googleNewsFetcher reads a publisher's Google News sitemap (or sitemap index)
// and turns its entries into digest articles.
type googleNewsFetcher struct {
	client HTTPClient
	now    func() time.Time
}

// NewGoogleNewsFetcher builds a Fetcher for Google News sitemap providers.
func NewGoogleNewsFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &googleNewsFetcher{client: client, now: time.Now}
}

func (f *googleNewsFetcher) ID() string {
	return ProviderTypeGoogleNews
}

// Fetch returns the newest cfg.Limit entries published within cfg.Lookback.
// Entries without a publication date are kept after the dated ones.
func (f *googleNewsFetcher) Fetch(ctx context.Context, cfg Provider) ([]domain.Article, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeGoogleNews) {
		return nil, fmt.Errorf("google news fetcher received incompatible provider type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.SourceURL) == "" {
		return nil, fmt.Errorf("provider %q source_url is empty", cfg.ID)
	}

	w := &sitemapWalker{
		client:  f.client,
		section: cfg.ID,
		headers: Headers(cfg),
		limit:   cfg.Limit,
		visited: make(map[string]struct{}),
	}
	entries, err := w.walk(ctx, cfg.SourceURL, 0)
	if err != nil {
		return nil, err
	}

	articles := buildArticlesFromSitemap(entries)
	if cfg.Lookback > 0 {
		articles = publishedSince(articles, f.now().Add(-cfg.Lookback))
	}
	newestFirst(articles)
	return truncate(articles, cfg.Limit), nil
}

// sitemapWalker collects news entries, descending into sitemap indexes until
// limit entries are found.
type sitemapWalker struct {
	client  HTTPClient
	section string
	headers map[string]string
	limit   int
	visited map[string]struct{}
}

func (w *sitemapWalker) walk(ctx context.Context, url string, depth int) ([]googleNewsURL, error) {
	if _, seen := w.visited[url]; seen || depth > maxIndexDepth {
		return nil, nil
	}
	w.visited[url] = struct{}{}

	raw, err := fetchSitemap(ctx, w.client, url, w.section, w.headers)
	if err != nil {
		return nil, err
	}

	entries, err := parseGoogleNewsSitemap(raw)
	if err != nil {
		return nil, fmt.Errorf("decode google news sitemap %s: %w", url, err)
	}
	if len(entries) > 0 {
		return entries, nil
	}

	children, err := parseSitemapIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("decode sitemap index %s: %w", url, err)
	}

	var all []googleNewsURL
	for _, child := range children {
		nested, err := w.walk(ctx, child, depth+1)
		if err != nil {
			return nil, err
		}
		all = append(all, nested...)
		if w.limit > 0 && len(all) >= w.limit {
			break
		}
	}
	return all, nil
}

func publishedSince(articles []domain.Article, cutoff time.Time) []domain.Article {
	out := articles[:0]
	for _, a := range articles {
		if a.PublishedAt.IsZero() || a.PublishedAt.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// newestFirst sorts dated articles newest first; undated ones keep their
// sitemap order at the end.
func newestFirst(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i].PublishedAt, articles[j].PublishedAt
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b)
		}
	})
}
