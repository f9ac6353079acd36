package providers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTopics_YAML(t *testing.T) {
	t.Setenv("SOLAR_DOMAINS", "reuters.com, apnews.com")
	path := writeFile(t, "topics.yaml", `
topics:
  - name: SOLAR
    query: "(solar OR renewable energy) AND (policy OR subsidy)"
    domains: "${SOLAR_DOMAINS}"
  - name: Technology
    category: Technology
    country: GB
  - name: India
    type: google-news-sitemap
    source_url: https://example.com/news.xml
`)

	topics, err := LoadTopics(path)
	require.NoError(t, err)
	require.Len(t, topics, 3)

	assert.Equal(t, ProviderTypeEverything, topics[0].Type)
	assert.Equal(t, "reuters.com,apnews.com", topics[0].Domains)
	assert.Equal(t, ProviderTypeTopHeadlines, topics[1].Type)
	assert.Equal(t, "technology", topics[1].Category)
	assert.Equal(t, "gb", topics[1].Country)
	assert.Equal(t, ProviderTypeGoogleNews, topics[2].Type)
}

func TestLoadTopics_JSON(t *testing.T) {
	path := writeFile(t, "topics.json", `{"topics":[{"name":"Science","category":"science"}]}`)

	topics, err := LoadTopics(path)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Science", topics[0].Name)
}

func TestLoadTopics_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty.yaml":     "topics: []\n",
		"noname.yaml":    "topics:\n  - category: science\n",
		"dup.yaml":       "topics:\n  - name: a\n  - name: A\n",
		"badtype.yaml":   "topics:\n  - name: a\n    type: rss\n",
		"sitemap.yaml":   "topics:\n  - name: a\n    type: google-news-sitemap\n",
		"everything.yml": "topics:\n  - name: a\n    type: newsapi-everything\n",
		"topics.toml":    "topics = []\n",
	}
	for name, content := range cases {
		_, err := LoadTopics(writeFile(t, name, content))
		assert.Error(t, err, name)
	}

	_, err := LoadTopics("")
	assert.Error(t, err)
	_, err = LoadTopics(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTopic_ProviderOverlaysBase(t *testing.T) {
	base := Provider{
		SourceURL: DefaultNewsAPIBaseURL,
		APIKey:    "k",
		Country:   "us",
		Language:  "en",
		SortBy:    "popularity",
		Limit:     3,
		Lookback:  24 * time.Hour,
	}

	p := Topic{Name: "AUTO PARTS", Type: ProviderTypeEverything, Query: "auto parts", SortBy: "relevancy"}.Provider(base)
	assert.Equal(t, "AUTO PARTS", p.ID)
	assert.Equal(t, "relevancy", p.SortBy)
	assert.Empty(t, p.Country)
	assert.Equal(t, "k", p.APIKey)
	assert.Equal(t, 3, p.Limit)

	p = Topic{Name: "India", Type: ProviderTypeGoogleNews, SourceURL: "https://example.com/s.xml"}.Provider(base)
	assert.Equal(t, "https://example.com/s.xml", p.SourceURL)
	assert.False(t, p.IsNewsAPI())
}
