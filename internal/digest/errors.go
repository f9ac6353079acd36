package digest

import (
	"errors"
	"fmt"

	"github.com/Adda-Baaj/news-digest/pkg/mailer"
	"github.com/Adda-Baaj/news-digest/pkg/providers"
)

// FetchError reports that a section could not be fetched. No email is sent.
type FetchError struct {
	Section    string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func newFetchError(section string, err error) *FetchError {
	fe := &FetchError{Section: section, Err: err}
	var serr *providers.StatusError
	if errors.As(err, &serr) {
		fe.StatusCode = serr.StatusCode
	}
	return fe
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch section %q: status %d: %v", e.Section, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch section %q: %v", e.Section, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError reports that the SMTP delivery failed.
type SendError struct {
	Recipient string // empty when the failure happened before any recipient
	Err       error
}

func newSendError(err error) *SendError {
	se := &SendError{Err: err}
	var rerr *mailer.RecipientError
	if errors.As(err, &rerr) {
		se.Recipient = rerr.Recipient
	}
	return se
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send digest: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
