package providers

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
)

const untitledArticle = "Untitled article"

// StatusError reports a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Code       string // provider error code, when the body carried one
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned status %d body: %s", e.Provider, e.StatusCode, e.Body)
}

// hashURL generates a SHA-1 hash of the given URL string.
func hashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

// responseSnippet returns a truncated snippet of the response body for errors.
func responseSnippet(body []byte) string {
	const maxLen = 512
	if s := httpclient.Snippet(body, maxLen); s != "" {
		return s
	}
	return "<empty>"
}

// RedactURL masks credentials carried in query parameters.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"apiKey", "apikey", "api_key"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// redactErr strips credentials from the URL embedded in transport errors.
func redactErr(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURL(urlErr.URL)
	}
	return err
}

// plainText reduces an HTML fragment to whitespace-collapsed text.
func plainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.ContainsAny(raw, "<&") {
		return collapseSpace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseSpace(raw)
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// summarize keeps at most maxSentences sentences of text. maxSentences <= 0 keeps everything.
func summarize(text string, maxSentences int) string {
	if text == "" || maxSentences <= 0 {
		return text
	}

	sentences := strings.Split(text, ". ")
	if len(sentences) <= maxSentences {
		return text
	}

	out := strings.TrimSpace(strings.Join(sentences[:maxSentences], ". "))
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

// CleanDescription strips markup from raw and keeps at most maxSentences sentences.
func CleanDescription(raw string, maxSentences int) string {
	return summarize(plainText(raw), maxSentences)
}

// truncate keeps the first limit articles. limit <= 0 keeps everything.
func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
