package mailer

import (
	"fmt"
	"net/mail"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/Adda-Baaj/news-digest/internal/domain"
)

// Build encodes msg for a single recipient. A message with an HTML body
// becomes multipart/alternative with the text body first. messageID is
// given without angle brackets.
func Build(msg domain.EmailMessage, from *mail.Address, to string, date time.Time, messageID string) (*gomail.Msg, error) {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	m := gomail.NewMsg(gomail.WithCharset(gomail.CharsetUTF8), gomail.WithEncoding(gomail.EncodingQP))
	m.FromMailAddress(from)
	m.ToMailAddress(rcpt)
	m.Subject(msg.Subject)
	m.SetDateWithValue(date)
	m.SetMessageIDWithValue(messageID)

	m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}
	return m, nil
}
