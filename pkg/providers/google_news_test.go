package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newsSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"
        xmlns:news="http://www.google.com/schemas/sitemap-news/0.9"
        xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">
  <url>
    <loc>https://example.com/one</loc>
    <news:news>
      <news:publication><news:name>Example Times</news:name><news:language>en</news:language></news:publication>
      <news:publication_date>2025-02-03T10:00:00+05:30</news:publication_date>
      <news:title>First story</news:title>
    </news:news>
    <image:image><image:loc>https://example.com/one.jpg</image:loc></image:image>
  </url>
  <url>
    <loc>https://example.com/two</loc>
    <news:news><news:title>Second story</news:title></news:news>
  </url>
  <url>
    <loc>https://example.com/three</loc>
    <news:news><news:title>Third story</news:title></news:news>
  </url>
</urlset>`

func TestGoogleNews_FetchSitemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newsSitemap))
	}))
	defer srv.Close()

	articles, err := NewGoogleNewsFetcher(nil).Fetch(context.Background(), Provider{
		ID: "india", Type: ProviderTypeGoogleNews, SourceURL: srv.URL, Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "First story", articles[0].Title)
	assert.Equal(t, "https://example.com/one", articles[0].URL)
	assert.Equal(t, "https://example.com/one.jpg", articles[0].ImageURL)
	assert.Equal(t, "Example Times", articles[0].Source)
	assert.False(t, articles[0].PublishedAt.IsZero())
	assert.Empty(t, articles[0].Description)
	assert.Equal(t, hashURL("https://example.com/one"), articles[0].ID)
}

func TestGoogleNews_FollowsIndex(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%[1]s/news.xml</loc></sitemap><sitemap><loc>%[1]s/index.xml</loc></sitemap></sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/news.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newsSitemap))
	})

	articles, err := NewGoogleNewsFetcher(nil).Fetch(context.Background(), Provider{
		ID: "india", Type: ProviderTypeGoogleNews, SourceURL: srv.URL + "/index.xml", Limit: 5,
	})
	require.NoError(t, err)
	assert.Len(t, articles, 3)
}

func TestGoogleNews_LookbackAndOrder(t *testing.T) {
	const sitemap = `<urlset>
  <url><loc>https://example.com/old</loc><news><publication_date>2025-02-01T08:00:00Z</publication_date><title>Old</title></news></url>
  <url><loc>https://example.com/undated</loc><news><title>Undated</title></news></url>
  <url><loc>https://example.com/early</loc><news><publication_date>2025-02-03T06:00:00Z</publication_date><title>Early</title></news></url>
  <url><loc>https://example.com/late</loc><news><publication_date>2025-02-03T09:00:00Z</publication_date><title>Late</title></news></url>
</urlset>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sitemap))
	}))
	defer srv.Close()

	f := &googleNewsFetcher{
		client: DefaultHTTPClient(),
		now:    func() time.Time { return time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC) },
	}
	articles, err := f.Fetch(context.Background(), Provider{
		ID: "india", Type: ProviderTypeGoogleNews, SourceURL: srv.URL, Limit: 5, Lookback: 24 * time.Hour,
	})
	require.NoError(t, err)

	var titles []string
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"Late", "Early", "Undated"}, titles)
}

func TestGoogleNews_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewGoogleNewsFetcher(nil).Fetch(context.Background(), Provider{
		ID: "india", Type: ProviderTypeGoogleNews, SourceURL: srv.URL,
	})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.StatusCode)
}

func TestRegistry_FetcherFor(t *testing.T) {
	reg := DefaultFetcherRegistry(nil)

	f, err := reg.FetcherFor(Provider{Type: "NEWSAPI-TOP-HEADLINES"})
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeTopHeadlines, f.ID())

	f, err = reg.FetcherFor(Provider{Type: ProviderTypeGoogleNews})
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeGoogleNews, f.ID())

	_, err = reg.FetcherFor(Provider{ID: "x"})
	assert.Error(t, err)

	_, err = reg.FetcherFor(Provider{Type: "rss"})
	assert.Error(t, err)
}
