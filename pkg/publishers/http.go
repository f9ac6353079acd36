package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/news-digest/pkg/httpclient"
)

const httpErrorSnippet = 256

// httpPublisher posts the digest event as JSON to a webhook.
type httpPublisher struct {
	id      string
	url     string
	method  string
	headers map[string]string
	client  httpclient.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil || cfg.HTTP.URL == "" {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return newHTTPPublisherWithClient(cfg, httpclient.NewRestyClient(timeout), log), nil
}

func newHTTPPublisherWithClient(cfg SinkConfig, client httpclient.Client, log Logger) *httpPublisher {
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.HTTP.Headers {
		headers[k] = v
	}
	method := cfg.HTTP.Method
	if method == "" {
		method = httpDefaultMethod
	}
	return &httpPublisher{
		id:      cfg.ID,
		url:     cfg.HTTP.URL,
		method:  method,
		headers: headers,
		client:  client,
		log:     ensureLogger(log),
	}
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

// Publish sends the event once. Any non-2xx answer is an error.
func (p *httpPublisher) Publish(ctx context.Context, evt DigestEvent) error {
	payload, err := marshalEvent(evt)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(ctx, p.method, p.url, p.headers, payload)
	if err != nil {
		return fmt.Errorf("http publisher %s request: %w", p.id, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("http publisher %s: unexpected status %d: %s", p.id, resp.StatusCode(), httpclient.Snippet(resp.Body(), httpErrorSnippet))
	}

	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": p.id,
		"run_id":       evt.RunID,
		"status":       resp.StatusCode(),
	})
	return nil
}
