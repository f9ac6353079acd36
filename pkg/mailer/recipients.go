package mailer

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrNoRecipients is returned when a recipient list holds no address.
var ErrNoRecipients = errors.New("no recipients")

// ParseRecipients splits a comma or semicolon separated address list. Blank
// entries are ignored and repeated addresses are kept once.
func ParseRecipients(raw string) ([]string, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		addr, err := mail.ParseAddress(f)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", f, err)
		}
		key := strings.ToLower(addr.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr.Address)
	}

	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}
