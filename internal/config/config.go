package config

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Adda-Baaj/news-digest/internal/logger"
	"github.com/Adda-Baaj/news-digest/internal/render"
	"github.com/Adda-Baaj/news-digest/pkg/mailer"
	"github.com/Adda-Baaj/news-digest/pkg/providers"
)

// ErrInvalid marks a configuration value that is present but malformed.
var ErrInvalid = errors.New("invalid configuration")

// MissingError lists every required variable that was not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Config is the immutable settings snapshot for one run.
type Config struct {
	News   NewsConfig
	Mail   MailConfig
	Log    logger.Config
	Topics []providers.Topic

	HTTPTimeout          time.Duration
	PublishersFile       string
	PushgatewayURL       string
	BackfillDescriptions bool
	LanguageGuard        bool
	DryRun               bool
}

// NewsConfig selects what is fetched.
type NewsConfig struct {
	Source           string
	BaseURL          string
	APIKey           string
	SitemapURL       string
	Category         string
	Query            string
	Domains          string
	Country          string
	Language         string
	SortBy           string
	PageSize         int
	MaxArticles      int
	SummarySentences int
	Lookback         time.Duration
	TopicsFile       string
}

// MailConfig holds the envelope and SMTP settings.
type MailConfig struct {
	From    string
	To      []string
	Subject string
	Format  string
	SMTP    mailer.Config
}

// LoadOptions tune Load.
type LoadOptions struct {
	// ConfigFile is an optional YAML, TOML or JSON file. Environment
	// variables override its values.
	ConfigFile string
	// DryRun forces a dry run regardless of DRY_RUN.
	DryRun bool
}

// Load reads configuration from the environment (and an optional file),
// applies defaults to optional settings and validates the result. It performs
// no network I/O.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	for _, b := range bindings {
		if err := v.BindEnv(append([]string{b.key}, b.env...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", b.key, err)
		}
		if b.def != nil {
			v.SetDefault(b.key, b.def)
		}
	}

	if path := strings.TrimSpace(opts.ConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config file %s: %v", ErrInvalid, path, err)
		}
	}

	l := &loader{v: v}
	cfg := l.build(opts)
	if len(l.missing) > 0 {
		return Config{}, &MissingError{Vars: l.missing}
	}
	if len(l.invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(l.invalid, "; "))
	}
	return cfg, nil
}

// loader accumulates problems so one run reports all of them.
type loader struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func (l *loader) str(key string) string {
	return strings.TrimSpace(l.v.GetString(key))
}

func (l *loader) required(key string) string {
	val := l.str(key)
	if val == "" {
		l.missing = append(l.missing, envName(key))
	}
	return val
}

func (l *loader) bad(key, format string, args ...any) {
	l.invalid = append(l.invalid, envName(key)+": "+fmt.Sprintf(format, args...))
}

func (l *loader) integer(key string, lo, hi int) int {
	raw := l.str(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		l.bad(key, "want an integer in [%d, %d], got %q", lo, hi, raw)
		return 0
	}
	return n
}

func (l *loader) duration(key string) time.Duration {
	raw := l.str(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.bad(key, "want a positive duration such as 30s, got %q", raw)
		return 0
	}
	return d
}

func (l *loader) boolean(key string) bool {
	raw := l.str(key)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		l.bad(key, "want true or false, got %q", raw)
	}
	return b
}

func (l *loader) oneOf(key string, allowed ...string) string {
	val := strings.ToLower(l.str(key))
	for _, a := range allowed {
		if val == a {
			return val
		}
	}
	l.bad(key, "want one of %s, got %q", strings.Join(allowed, ", "), val)
	return val
}

func (l *loader) build(opts LoadOptions) Config {
	var cfg Config

	cfg.DryRun = opts.DryRun || l.boolean(keyDryRun)

	cfg.News = NewsConfig{
		Source:           l.oneOf(keySource, providers.ProviderTypeTopHeadlines, providers.ProviderTypeEverything, providers.ProviderTypeGoogleNews),
		BaseURL:          strings.TrimRight(l.str(keyBaseURL), "/"),
		SitemapURL:       l.str(keySitemapURL),
		Category:         strings.ToLower(l.str(keyCategory)),
		Query:            l.str(keyQuery),
		Domains:          l.str(keyDomains),
		Country:          strings.ToLower(l.str(keyCountry)),
		Language:         strings.ToLower(l.str(keyLanguage)),
		SortBy:           l.str(keySortBy),
		PageSize:         l.integer(keyPageSize, 1, 100),
		MaxArticles:      l.integer(keyMaxArticles, 1, 100),
		SummarySentences: l.integer(keySummarySentences, 0, 50),
		Lookback:         l.duration(keyLookback),
		TopicsFile:       l.str(keyTopicsFile),
	}

	if cfg.News.TopicsFile != "" {
		topics, err := providers.LoadTopics(cfg.News.TopicsFile)
		if err != nil {
			l.bad(keyTopicsFile, "%v", err)
		}
		cfg.Topics = topics
	}

	if cfg.needsNewsAPIKey() {
		cfg.News.APIKey = l.required(keyAPIKey)
	} else {
		cfg.News.APIKey = l.str(keyAPIKey)
	}
	if len(cfg.Topics) == 0 && cfg.News.Source == providers.ProviderTypeGoogleNews && cfg.News.SitemapURL == "" {
		l.missing = append(l.missing, envName(keySitemapURL))
	}
	if len(cfg.Topics) == 0 && cfg.News.Source == providers.ProviderTypeEverything && cfg.News.Query == "" {
		l.missing = append(l.missing, envName(keyQuery))
	}

	cfg.Mail = l.mail(cfg.DryRun)

	cfg.HTTPTimeout = l.duration(keyHTTPTimeout)
	cfg.Log = logger.Config{
		Level:  l.str(keyLogLevel),
		Format: l.oneOf(keyLogFormat, "json", "console"),
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		l.bad(keyLogLevel, "%v", err)
	}

	cfg.PublishersFile = l.str(keyPublishersFile)
	cfg.PushgatewayURL = l.str(keyPushgatewayURL)
	cfg.BackfillDescriptions = l.boolean(keyBackfill)
	cfg.LanguageGuard = l.boolean(keyLanguageGuard)

	sort.Strings(l.missing)
	return cfg
}

func (l *loader) mail(dryRun bool) MailConfig {
	m := MailConfig{
		From:    l.required(keySender),
		Subject: l.str(keySubject),
		Format:  l.oneOf(keyFormat, render.FormatHTML, render.FormatText),
	}
	if m.From != "" {
		if _, err := mail.ParseAddress(m.From); err != nil {
			l.bad(keySender, "%v", err)
		}
	}

	if raw := l.str(keyReceivers); raw == "" {
		l.missing = append(l.missing, envName(keyReceivers))
	} else {
		to, err := mailer.ParseRecipients(raw)
		switch {
		case errors.Is(err, mailer.ErrNoRecipients):
			l.missing = append(l.missing, envName(keyReceivers))
		case err != nil:
			l.bad(keyReceivers, "%v", err)
		}
		m.To = to
	}

	smtpRequired := l.required
	if dryRun {
		smtpRequired = l.str
	}
	m.SMTP = mailer.Config{
		Host:     smtpRequired(keySMTPServer),
		Username: l.str(keySMTPUsername),
		Password: smtpRequired(keySMTPPassword),
		Timeout:  l.duration(keySMTPTimeout),
	}
	if portRaw := smtpRequired(keySMTPPort); portRaw != "" {
		m.SMTP.Port = l.integer(keySMTPPort, 1, 65535)
	}
	if l.str(keySMTPTLSMode) == "" {
		m.SMTP.TLSMode = mailer.DefaultTLSMode(m.SMTP.Port)
	} else {
		m.SMTP.TLSMode = l.oneOf(keySMTPTLSMode, mailer.TLSModeSSL, mailer.TLSModeStartTLS)
	}
	return m
}

func (c Config) needsNewsAPIKey() bool {
	if len(c.Topics) == 0 {
		return c.News.Source != providers.ProviderTypeGoogleNews
	}
	for _, t := range c.Topics {
		if t.Type != providers.ProviderTypeGoogleNews {
			return true
		}
	}
	return false
}

// Providers returns one provider per digest section, in order.
func (c Config) Providers() []providers.Provider {
	base := providers.Provider{
		ID:               c.News.Category,
		Type:             c.News.Source,
		SourceURL:        c.News.BaseURL,
		APIKey:           c.News.APIKey,
		Category:         c.News.Category,
		Country:          c.News.Country,
		Language:         c.News.Language,
		SortBy:           c.News.SortBy,
		PageSize:         c.News.PageSize,
		Limit:            c.News.MaxArticles,
		Lookback:         c.News.Lookback,
		SummarySentences: c.News.SummarySentences,
	}

	if len(c.Topics) > 0 {
		out := make([]providers.Provider, 0, len(c.Topics))
		for _, t := range c.Topics {
			out = append(out, t.Provider(base))
		}
		return out
	}

	switch base.Type {
	case providers.ProviderTypeGoogleNews:
		base.SourceURL = c.News.SitemapURL
		base.ID = "headlines"
	case providers.ProviderTypeEverything:
		base.ID = c.News.Query
		base.Query = c.News.Query
		base.Domains = c.News.Domains
		base.Category = ""
		base.Country = ""
	}
	return []providers.Provider{base}
}

// Redacted returns a log-safe view of the configuration.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"news_source":     c.News.Source,
		"news_base_url":   c.News.BaseURL,
		"news_api_key":    mask(c.News.APIKey),
		"news_category":   c.News.Category,
		"news_country":    c.News.Country,
		"news_language":   c.News.Language,
		"news_sort_by":    c.News.SortBy,
		"news_page_size":  c.News.PageSize,
		"max_articles":    c.News.MaxArticles,
		"topics":          len(c.Topics),
		"sender":          c.Mail.From,
		"recipients":      len(c.Mail.To),
		"format":          c.Mail.Format,
		"smtp_addr":       c.Mail.SMTP.Addr(),
		"smtp_tls_mode":   c.Mail.SMTP.TLSMode,
		"smtp_password":   mask(c.Mail.SMTP.Password),
		"http_timeout":    c.HTTPTimeout.String(),
		"publishers_file": c.PublishersFile,
		"pushgateway":     c.PushgatewayURL != "",
		"backfill":        c.BackfillDescriptions,
		"language_guard":  c.LanguageGuard,
		"dry_run":         c.DryRun,
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
