package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/internal/logger"
)

const (
	// Supported TLS modes.
	TLSModeSSL      = "ssl"      // implicit TLS, usually port 465
	TLSModeStartTLS = "starttls" // plain connect then STARTTLS, usually port 587

	defaultTimeout = 30 * time.Second
)

// Config holds the SMTP connection settings.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSMode   string
	Timeout   time.Duration
	TLSConfig *tls.Config // optional override, mostly for tests
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultTLSMode picks implicit TLS for port 465 and STARTTLS otherwise.
func DefaultTLSMode(port int) string {
	if port == 465 {
		return TLSModeSSL
	}
	return TLSModeStartTLS
}

// Session is an encrypted, authenticated SMTP connection. *gomail.Client
// satisfies it once dialed.
type Session interface {
	Send(msgs ...*gomail.Msg) error
	Close() error
}

// Dialer opens a Session.
type Dialer func(ctx context.Context, cfg Config) (Session, error)

// RecipientError reports a delivery failure for one recipient.
type RecipientError struct {
	Recipient string
	Err       error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *RecipientError) Unwrap() error { return e.Err }

// Sender delivers digest messages over SMTP.
type Sender struct {
	cfg  Config
	dial Dialer
	log  logger.Logger
	now  func() time.Time
}

// Option customizes a Sender.
type Option func(*Sender)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(s *Sender) {
		if d != nil {
			s.dial = d
		}
	}
}

// WithClock replaces the clock used for the Date header.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSender builds a Sender for the given configuration.
func NewSender(cfg Config, log logger.Logger, opts ...Option) *Sender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = DefaultTLSMode(cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	s := &Sender{
		cfg:  cfg,
		dial: dialSMTP,
		log:  logger.Ensure(log),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send opens one session and delivers msg to every recipient in msg.To, one
// transaction per recipient. The first failure aborts the remaining
// recipients. The session is always closed before Send returns.
func (s *Sender) Send(ctx context.Context, msg domain.EmailMessage) (err error) {
	if len(msg.To) == 0 {
		return errors.New("message has no recipients")
	}
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("invalid sender address %q: %w", msg.From, err)
	}

	cfg := s.cfg
	if cfg.Username == "" {
		cfg.Username = from.Address
	}
	sess, err := s.dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to smtp %s as %s: %w", cfg.Addr(), cfg.Username, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			// Every message was already accepted.
			s.log.WarnObj("smtp quit failed", "mail_quit_error", map[string]any{"error": cerr.Error()})
		}
	}()

	for _, rcpt := range msg.To {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := messageID(from.Address)
		m, err := Build(msg, from, rcpt, s.now(), id)
		if err != nil {
			return &RecipientError{Recipient: rcpt, Err: err}
		}
		if err := sess.Send(m); err != nil {
			s.log.ErrorObj("digest delivery failed", "mail_send_error", map[string]any{
				"recipient": rcpt,
				"error":     err.Error(),
			})
			return &RecipientError{Recipient: rcpt, Err: err}
		}
		s.log.InfoObj("digest delivered", "mail_sent", map[string]any{
			"recipient":  rcpt,
			"subject":    msg.Subject,
			"message_id": id,
		})
	}
	return nil
}

// messageID returns a unique id-left@id-right value without angle brackets.
func messageID(from string) string {
	domainPart := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domainPart = from[at+1:]
	}
	return uuid.NewString() + "@" + domainPart
}

// clientOptions maps cfg onto go-mail client options. STARTTLS is mandatory
// in starttls mode; a server without it is refused.
func clientOptions(cfg Config) ([]gomail.Option, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.Timeout),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	switch cfg.TLSMode {
	case TLSModeSSL:
		opts = append(opts, gomail.WithSSL())
	case TLSModeStartTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		return nil, fmt.Errorf("unknown smtp tls mode %q", cfg.TLSMode)
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, gomail.WithTLSConfig(cfg.TLSConfig))
	}
	return opts, nil
}

// dialSMTP connects, negotiates TLS and authenticates.
func dialSMTP(ctx context.Context, cfg Config) (Session, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
