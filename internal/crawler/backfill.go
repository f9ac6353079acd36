package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/internal/logger"
	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
	"github.com/Adda-Baaj/news-digest/pkg/providers"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	maxErrorSnippet  = 256
)

// Backfiller fills in missing article descriptions and images from the
// article page's meta tags.
type Backfiller struct {
	client    httpclient.Client
	log       logger.Logger
	delay     time.Duration
	sentences int
}

// Option customizes a Backfiller.
type Option func(*Backfiller)

// WithDelay spaces page requests at least d apart.
func WithDelay(d time.Duration) Option {
	return func(b *Backfiller) { b.delay = d }
}

// WithSummarySentences caps backfilled descriptions to n sentences.
func WithSummarySentences(n int) Option {
	return func(b *Backfiller) { b.sentences = n }
}

// NewBackfiller creates a Backfiller. A nil client uses the provider default.
func NewBackfiller(client httpclient.Client, log logger.Logger, opts ...Option) *Backfiller {
	if client == nil {
		client = providers.DefaultHTTPClient()
	}
	b := &Backfiller{client: client, log: logger.Ensure(log)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Backfill returns a copy of articles where entries without a description
// were looked up on their page, one page at a time. Failures keep the original
// article; order is preserved. Only articles lacking a description are fetched.
func (b *Backfiller) Backfill(ctx context.Context, articles []domain.Article) []domain.Article {
	out := make([]domain.Article, len(articles))
	copy(out, articles)

	var pending []int
	for i, a := range articles {
		if strings.TrimSpace(a.Description) == "" && a.URL != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out
	}

	var limiter <-chan time.Time
	if b.delay > 0 {
		ticker := time.NewTicker(b.delay)
		defer ticker.Stop()
		limiter = ticker.C
	}

	for n, idx := range pending {
		if limiter != nil && n > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-limiter:
			}
		}
		if ctx.Err() != nil {
			return out
		}
		out[idx] = b.backfillOne(ctx, out[idx])
	}
	return out
}

// backfillOne returns art with the page's description and image filled in,
// or art unchanged when the page could not be read.
func (b *Backfiller) backfillOne(ctx context.Context, art domain.Article) domain.Article {
	meta, err := b.fetchMeta(ctx, art.URL)
	if err != nil {
		b.log.WarnObj("description backfill failed", "backfill_error", map[string]any{
			"url":   art.URL,
			"error": err.Error(),
		})
		return art
	}

	if meta.Description != "" {
		art.Description = providers.CleanDescription(meta.Description, b.sentences)
	}
	if art.ImageURL == "" && meta.ImageURL != "" {
		art.ImageURL = resolveURL(meta.ImageURL, art.URL)
	}

	b.log.DebugObj("description backfilled", "backfill_done", map[string]any{
		"url":   art.URL,
		"found": meta.Description != "",
	})
	return art
}

func (b *Backfiller) fetchMeta(ctx context.Context, pageURL string) (pageMeta, error) {
	resp, err := b.client.Get(ctx, pageURL, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return pageMeta{}, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return pageMeta{}, fmt.Errorf("status %d body: %s", resp.StatusCode(), httpclient.Snippet(resp.Body(), maxErrorSnippet))
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	return parseMeta(body)
}

type pageMeta struct {
	Description string
	ImageURL    string
}

// parseMeta reads og:description, falling back to the description meta tag.
func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	content := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return pageMeta{
		Description: firstNonEmpty(
			content(`meta[property="og:description"]`),
			content(`meta[name="description"]`),
			content(`meta[name="twitter:description"]`),
		),
		ImageURL: content(`meta[property="og:image"]`),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// resolveURL resolves a possibly relative URL against base.
func resolveURL(raw, base string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(parsed).String()
}
