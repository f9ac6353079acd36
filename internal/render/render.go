package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/Adda-Baaj/news-digest/internal/domain"
)

const (
	FormatHTML = "html"
	FormatText = "text"

	subjectDateLayout = "January 02, 2006"
)

//go:embed templates/digest.html
var templateFS embed.FS

var htmlTemplates = template.Must(template.New("digest").
	Funcs(template.FuncMap{"upper": strings.ToUpper}).
	ParseFS(templateFS, "templates/*.html"))

// Envelope carries the addressing for a rendered digest.
type Envelope struct {
	From          string
	To            []string
	SubjectPrefix string
	Format        string
}

// Subject returns the subject line for a digest generated at d.GeneratedAt.
func Subject(prefix string, d domain.Digest) string {
	prefix = strings.TrimSpace(prefix)
	date := d.GeneratedAt.Format(subjectDateLayout)
	if prefix == "" {
		return date
	}
	return prefix + ": " + date
}

// Text renders the plain-text body. Each section opens with its heading and
// each article is a numbered title line, an optional description line and a
// URL line, followed by a blank line.
func Text(d domain.Digest) string {
	var b strings.Builder
	for _, section := range d.Sections {
		heading := strings.ToUpper(strings.TrimSpace(section.Name))
		if heading != "" {
			b.WriteString(heading)
			b.WriteString("\n")
			b.WriteString(strings.Repeat("=", len([]rune(heading))))
			b.WriteString("\n\n")
		}
		for j, a := range section.Articles {
			b.WriteString(strconv.Itoa(j + 1))
			b.WriteString(". ")
			b.WriteString(oneLine(a.Title))
			b.WriteString("\n")
			if desc := oneLine(a.Description); desc != "" {
				b.WriteString("   ")
				b.WriteString(desc)
				b.WriteString("\n")
			}
			b.WriteString("   ")
			b.WriteString(strings.TrimSpace(a.URL))
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// HTML renders the HTML body.
func HTML(d domain.Digest) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, "digest.html", d); err != nil {
		return "", fmt.Errorf("render digest template: %w", err)
	}
	return buf.String(), nil
}

// Message renders the digest into an email message.
func Message(d domain.Digest, env Envelope) (domain.EmailMessage, error) {
	msg := domain.EmailMessage{
		From:     env.From,
		To:       append([]string(nil), env.To...),
		Subject:  Subject(env.SubjectPrefix, d),
		TextBody: Text(d),
	}

	switch strings.ToLower(strings.TrimSpace(env.Format)) {
	case "", FormatHTML:
		html, err := HTML(d)
		if err != nil {
			return domain.EmailMessage{}, err
		}
		msg.HTMLBody = html
	case FormatText:
	default:
		return domain.EmailMessage{}, fmt.Errorf("unknown digest format %q", env.Format)
	}
	return msg, nil
}

// oneLine keeps a field on a single line of the text body.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
