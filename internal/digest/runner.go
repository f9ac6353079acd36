package digest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/internal/logger"
	"github.com/Adda-Baaj/news-digest/internal/render"
	"github.com/Adda-Baaj/news-digest/pkg/providers"
	"github.com/Adda-Baaj/news-digest/pkg/publishers"
)

// Status is the outcome of a successful run.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped" // nothing to send
	StatusDryRun  Status = "dry_run"

	statusFailed = "failed"
	pushTimeout  = 10 * time.Second
)

// Result describes a finished run.
type Result struct {
	RunID    string
	Status   Status
	Articles int
	Message  domain.EmailMessage // zero when nothing was rendered
}

// Sender delivers a rendered digest.
type Sender interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// Backfiller completes missing article descriptions.
type Backfiller interface {
	Backfill(ctx context.Context, articles []domain.Article) []domain.Article
}

// LanguageFilter drops articles in the wrong language.
type LanguageFilter interface {
	Filter(articles []domain.Article) []domain.Article
}

// PublisherSource builds the fan-out publishers. It is only called after the
// email was accepted.
type PublisherSource func(ctx context.Context) ([]publishers.Publisher, error)

// Deps wires a Runner. Backfill, Guard, Publishers and Metrics are optional.
type Deps struct {
	Providers      []providers.Provider
	Fetchers       providers.FetcherRegistry
	Sender         Sender
	Envelope       render.Envelope
	Backfill       Backfiller
	Guard          LanguageFilter
	Publishers     PublisherSource
	Metrics        *Metrics
	PushgatewayURL string
	DryRun         bool
	Log            logger.Logger
	Now            func() time.Time
}

// Runner executes one digest run: fetch, render, send, announce.
type Runner struct {
	deps Deps
	log  logger.Logger
	now  func() time.Time
}

// NewRunner validates deps and returns a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	if len(deps.Providers) == 0 {
		return nil, errors.New("digest runner needs at least one provider")
	}
	if deps.Fetchers == nil {
		return nil, errors.New("digest runner needs a fetcher registry")
	}
	if deps.Sender == nil && !deps.DryRun {
		return nil, errors.New("digest runner needs a sender")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{deps: deps, log: logger.Ensure(deps.Log), now: now}, nil
}

// Run performs one digest run. A fetch failure returns *FetchError and a
// delivery failure *SendError; in both cases nothing further happens. An
// empty digest is not an error.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	res.RunID = uuid.NewString()
	log := r.log.With(map[string]any{"run_id": res.RunID})

	defer func() {
		status := string(res.Status)
		if err != nil {
			status = statusFailed
		}
		r.deps.Metrics.observeRun(status, r.now())
		r.pushMetrics(ctx, log)
	}()

	log.InfoObj("digest run started", "run_start", map[string]any{"sections": len(r.deps.Providers)})

	d := domain.Digest{GeneratedAt: r.now()}
	for _, p := range r.deps.Providers {
		articles, err := r.fetchSection(ctx, log, p)
		if err != nil {
			return res, err
		}
		if len(articles) == 0 {
			log.WarnObj("section has no articles", "section_empty", map[string]any{"section": p.ID})
			continue
		}
		d.Sections = append(d.Sections, domain.Section{Name: p.ID, Articles: articles})
	}

	res.Articles = d.Total()
	if res.Articles == 0 {
		log.WarnObj("no articles returned, skipping email", "digest_empty", nil)
		res.Status = StatusSkipped
		return res, nil
	}

	msg, err := render.Message(d, r.deps.Envelope)
	if err != nil {
		return res, errors.Wrap(err, "render digest")
	}
	res.Message = msg

	if r.deps.DryRun {
		log.InfoObj("dry run, digest not sent", "digest_dry_run", map[string]any{
			"subject":    msg.Subject,
			"recipients": len(msg.To),
			"articles":   res.Articles,
			"body":       msg.TextBody,
		})
		res.Status = StatusDryRun
		return res, nil
	}

	start := time.Now()
	if err := r.deps.Sender.Send(ctx, msg); err != nil {
		serr := newSendError(err)
		log.ErrorObj("digest delivery failed", "send_error", map[string]any{
			"recipient": serr.Recipient,
			"error":     err.Error(),
		})
		return res, serr
	}
	r.deps.Metrics.observeSend(time.Since(start), res.Articles)
	log.InfoObj("digest sent", "digest_sent", map[string]any{
		"subject":    msg.Subject,
		"recipients": len(msg.To),
		"articles":   res.Articles,
	})
	res.Status = StatusSent

	r.fanOut(ctx, log, res.RunID, d, msg)
	return res, nil
}

func (r *Runner) fetchSection(ctx context.Context, log logger.Logger, p providers.Provider) ([]domain.Article, error) {
	fetcher, err := r.deps.Fetchers.FetcherFor(p)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve fetcher for section %q", p.ID)
	}

	start := time.Now()
	articles, err := fetcher.Fetch(ctx, p)
	r.deps.Metrics.observeFetch(p.ID, time.Since(start), len(articles))
	if err != nil {
		ferr := newFetchError(p.ID, err)
		log.ErrorObj("news fetch failed", "fetch_error", map[string]any{
			"section":     p.ID,
			"provider":    p.Type,
			"status_code": ferr.StatusCode,
			"error":       err.Error(),
		})
		return nil, ferr
	}
	log.InfoObj("section fetched", "fetch_done", map[string]any{
		"section":  p.ID,
		"provider": p.Type,
		"articles": len(articles),
	})

	if r.deps.Backfill != nil {
		articles = r.deps.Backfill.Backfill(ctx, articles)
	}
	if r.deps.Guard != nil {
		articles = r.deps.Guard.Filter(articles)
	}
	return articles, nil
}

// fanOut announces the sent digest. Failures are logged only.
func (r *Runner) fanOut(ctx context.Context, log logger.Logger, runID string, d domain.Digest, msg domain.EmailMessage) {
	if r.deps.Publishers == nil {
		return
	}
	pubs, err := r.deps.Publishers(ctx)
	if err != nil {
		log.WarnObj("some publishers could not be built", "publisher_setup_error", map[string]any{"error": err.Error()})
	}
	if len(pubs) == 0 {
		return
	}

	evt := publishers.NewDigestEvent(runID, msg.Subject, len(msg.To), d)
	if err := publishers.PublishAll(ctx, pubs, evt, log); err != nil {
		log.WarnObj("digest fan-out incomplete", "fanout_error", map[string]any{"error": err.Error()})
	}
}

func (r *Runner) pushMetrics(ctx context.Context, log logger.Logger) {
	if r.deps.Metrics == nil || r.deps.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	if err := r.deps.Metrics.Push(pushCtx, r.deps.PushgatewayURL); err != nil {
		log.WarnObj("metrics push failed", "metrics_push_error", map[string]any{"error": err.Error()})
		return
	}
	log.DebugObj("metrics pushed", "metrics_pushed", nil)
}
