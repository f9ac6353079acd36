package domain

import "time"

// Domain contains the models that flow through a single digest run.

type Article struct {
	ID          string
	Title       string
	URL         string
	Description string // empty when the provider sent none
	ImageURL    string
	Source      string
	PublishedAt time.Time
}

// Section groups the articles fetched for one topic.
type Section struct {
	Name     string
	Articles []Article
}

// Digest is everything that goes into one email.
type Digest struct {
	Sections    []Section
	GeneratedAt time.Time
}

// Total returns the number of articles across all sections.
func (d Digest) Total() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Articles)
	}
	return n
}

// EmailMessage is the rendered message handed to the mail sender.
type EmailMessage struct {
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}
