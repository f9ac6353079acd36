package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
)

type googleNewsSitemap struct {
	URLs []googleNewsURL `xml:"url"`
}

type googleNewsURL struct {
	Loc    string            `xml:"loc"`
	News   googleNewsDetail  `xml:"news"`
	Images []googleNewsImage `xml:"image"`
}

type sitemapIndex struct {
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

type googleNewsDetail struct {
	Publication     googleNewsPublication `xml:"publication"`
	PublicationDate string                `xml:"publication_date"`
	Title           string                `xml:"title"`
}

type googleNewsPublication struct {
	Name     string `xml:"name"`
	Language string `xml:"language"`
}

type googleNewsImage struct {
	Loc string `xml:"loc"`
}

// parseGoogleNewsSitemap parses the XML data into a slice of googleNewsURL structs.
func parseGoogleNewsSitemap(data []byte) ([]googleNewsURL, error) {
	var sitemap googleNewsSitemap
	if err := xml.Unmarshal(data, &sitemap); err != nil {
		return nil, err
	}
	return sitemap.URLs, nil
}

// parseSitemapIndex parses an XML sitemap index file and returns the nested sitemap URLs.
func parseSitemapIndex(data []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, entry := range index.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// buildArticlesFromSitemap constructs articles from parsed Google News sitemap entries.
func buildArticlesFromSitemap(urls []googleNewsURL) []domain.Article {
	articles := make([]domain.Article, 0, len(urls))
	for _, entry := range urls {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}

		title := plainText(entry.News.Title)
		if title == "" {
			title = untitledArticle
		}

		articles = append(articles, domain.Article{
			ID:          hashURL(loc),
			Title:       title,
			URL:         loc,
			ImageURL:    firstImageURL(entry.Images),
			Source:      strings.TrimSpace(entry.News.Publication.Name),
			PublishedAt: parsePublicationDate(entry.News.PublicationDate),
		})
	}
	return articles
}

// firstImageURL returns the first non-empty image URL from the list.
func firstImageURL(images []googleNewsImage) string {
	for _, img := range images {
		if loc := strings.TrimSpace(img.Loc); loc != "" {
			return loc
		}
	}
	return ""
}

// parsePublicationDate attempts to parse an RFC 3339 publication date.
func parsePublicationDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}

	return time.Time{}
}

// fetchSitemap retrieves the sitemap XML data from the given URL using the provided HTTP client.
func fetchSitemap(ctx context.Context, client httpclient.Client, url, providerID string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s sitemap: %w", providerID, err)
	}

	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &StatusError{
			Provider:   providerID + " sitemap",
			StatusCode: resp.StatusCode(),
			Body:       responseSnippet(body),
		}
	}

	return body, nil
}
