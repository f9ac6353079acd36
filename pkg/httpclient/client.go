package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "news-digest/1.0 (+https://github.com/Adda-Baaj/news-digest)"

// Client is the minimal HTTP surface used by fetchers and publishers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error)
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*resty.Response, error)
}

type restyClient struct {
	client *resty.Client
}

// NewRestyClient builds a Client with the given request timeout. Redirects are
// followed, retries are disabled.
func NewRestyClient(timeout time.Duration) Client {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", defaultUserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &restyClient{client: c}
}

// NewFromResty wraps a preconfigured resty client.
func NewFromResty(c *resty.Client) Client {
	return &restyClient{client: c}
}

// Get issues a GET request. Non-2xx statuses are not errors; callers inspect StatusCode.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, nil)
}

// Do issues a request with an optional body.
func (c *restyClient) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*resty.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req := c.client.R().SetContext(ctx)
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		req.SetHeader(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}

	return req.Execute(strings.ToUpper(method), url)
}

// Snippet returns the trimmed body cut to at most limit runes, with "..."
// appended when it was cut. Cuts never split a multi-byte rune.
func Snippet(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
