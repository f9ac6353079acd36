package publishers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/internal/logger"
)

// Logger is the structured logger publishers write to.
type Logger = logger.Logger

// Publisher announces a delivered digest to an external system.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt DigestEvent) error
}

// DigestEvent is the payload sent to every publisher after the email went out.
type DigestEvent struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	Subject     string         `json:"subject"`
	Recipients  int            `json:"recipients"`
	Total       int            `json:"total"`
	Sections    []EventSection `json:"sections"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// EventSection lists the headlines of one digest section.
type EventSection struct {
	Name     string         `json:"name"`
	Articles []EventArticle `json:"articles"`
}

// EventArticle is the public part of an article.
type EventArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// NewDigestEvent builds the event for a sent digest. Recipient addresses are
// not included, only their count.
func NewDigestEvent(runID, subject string, recipients int, d domain.Digest) DigestEvent {
	evt := DigestEvent{
		ID:          uuid.NewString(),
		RunID:       runID,
		Subject:     subject,
		Recipients:  recipients,
		Total:       d.Total(),
		Sections:    make([]EventSection, 0, len(d.Sections)),
		GeneratedAt: d.GeneratedAt.UTC(),
	}
	for _, s := range d.Sections {
		sec := EventSection{Name: s.Name, Articles: make([]EventArticle, 0, len(s.Articles))}
		for _, a := range s.Articles {
			sec.Articles = append(sec.Articles, EventArticle{
				Title:       a.Title,
				URL:         a.URL,
				Description: a.Description,
				Source:      a.Source,
				PublishedAt: a.PublishedAt,
			})
		}
		evt.Sections = append(evt.Sections, sec)
	}
	return evt
}

func ensureLogger(log Logger) Logger {
	return logger.Ensure(log)
}
