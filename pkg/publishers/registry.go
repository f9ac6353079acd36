package publishers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Builder creates a Publisher from a sink entry.
type Builder func(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	PublisherFor(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{builders: make(map[string]Builder)}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with a publisher type.
func (r *registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}

	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// PublisherFor builds the publisher for cfg.
func (r *registry) PublisherFor(ctx context.Context, cfg SinkConfig, log Logger) (Publisher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up the known publisher types.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:     newHTTPPublisher,
		TypeQueue:    newQueuePublisher,
		TypeTelegram: newTelegramPublisher,
	})
}

// BuildAll instantiates publishers for the enabled sinks. A sink that fails to
// build is logged and skipped; the combined error is returned alongside the
// publishers that did build.
func BuildAll(ctx context.Context, reg Registry, sinks []SinkConfig, log Logger) ([]Publisher, error) {
	if reg == nil || len(sinks) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log = ensureLogger(log)

	var (
		pubs []Publisher
		errs error
	)
	for _, cfg := range Enabled(sinks) {
		pub, err := reg.PublisherFor(ctx, cfg, log)
		if err != nil {
			log.WarnObj("publisher build failed", "publisher_build_error", map[string]any{
				"publisher_id": cfg.ID,
				"type":         cfg.Type,
				"error":        err.Error(),
			})
			errs = multierr.Append(errs, fmt.Errorf("build publisher %s: %w", cfg.ID, err))
			continue
		}
		pubs = append(pubs, pub)
	}
	return pubs, errs
}

// PublishAll sends evt to every publisher, continuing past failures.
func PublishAll(ctx context.Context, pubs []Publisher, evt DigestEvent, log Logger) error {
	log = ensureLogger(log)

	var errs error
	for _, p := range pubs {
		if err := p.Publish(ctx, evt); err != nil {
			log.WarnObj("digest publish failed", "publisher_error", map[string]any{
				"publisher_id": p.ID(),
				"type":         p.Type(),
				"error":        err.Error(),
			})
			errs = multierr.Append(errs, fmt.Errorf("publisher %s: %w", p.ID(), err))
			continue
		}
		log.InfoObj("digest published", "publisher_delivered", map[string]any{
			"publisher_id": p.ID(),
			"type":         p.Type(),
			"run_id":       evt.RunID,
		})
	}
	return errs
}
