package config

import "github.com/Adda-Baaj/news-digest/pkg/providers"

// Config keys. Each is bound to one or more environment variables; the first
// variable listed is the canonical name reported when the value is missing.
const (
	keySource           = "news.source"
	keyBaseURL          = "news.base_url"
	keyAPIKey           = "news.api_key"
	keySitemapURL       = "news.sitemap_url"
	keyCategory         = "news.category"
	keyQuery            = "news.query"
	keyDomains          = "news.domains"
	keyCountry          = "news.country"
	keyLanguage         = "news.language"
	keySortBy           = "news.sort_by"
	keyPageSize         = "news.page_size"
	keyMaxArticles      = "digest.max_articles"
	keySummarySentences = "digest.summary_sentences"
	keyLookback         = "digest.lookback"
	keyTopicsFile       = "digest.topics_file"
	keySubject          = "digest.subject"
	keyFormat           = "digest.format"
	keyBackfill         = "digest.backfill_descriptions"
	keyLanguageGuard    = "digest.language_guard"
	keyDryRun           = "digest.dry_run"

	keySender       = "mail.sender"
	keyReceivers    = "mail.receivers"
	keySMTPServer   = "smtp.server"
	keySMTPPort     = "smtp.port"
	keySMTPUsername = "smtp.username"
	keySMTPPassword = "smtp.password"
	keySMTPTLSMode  = "smtp.tls_mode"
	keySMTPTimeout  = "smtp.timeout"

	keyHTTPTimeout    = "http.timeout"
	keyLogLevel       = "log.level"
	keyLogFormat      = "log.format"
	keyPublishersFile = "publishers.file"
	keyPushgatewayURL = "metrics.pushgateway_url"
)

type binding struct {
	key string
	env []string
	def any // nil for settings without a default
}

var bindings = []binding{
	{key: keySource, env: []string{"NEWS_SOURCE"}, def: providers.ProviderTypeTopHeadlines},
	{key: keyBaseURL, env: []string{"NEWSAPI_BASE_URL"}, def: providers.DefaultNewsAPIBaseURL},
	{key: keyAPIKey, env: []string{"NEWSAPI_KEY"}},
	{key: keySitemapURL, env: []string{"NEWS_SITEMAP_URL"}},
	{key: keyCategory, env: []string{"NEWS_CATEGORY"}, def: "general"},
	{key: keyQuery, env: []string{"NEWS_QUERY"}},
	{key: keyDomains, env: []string{"NEWS_DOMAINS"}},
	{key: keyCountry, env: []string{"NEWS_COUNTRY"}, def: "us"},
	{key: keyLanguage, env: []string{"NEWS_LANGUAGE"}, def: "en"},
	{key: keySortBy, env: []string{"NEWS_SORT_BY"}, def: "popularity"},
	{key: keyPageSize, env: []string{"NEWS_PAGE_SIZE"}, def: "20"},
	{key: keyMaxArticles, env: []string{"DIGEST_MAX_ARTICLES"}, def: "5"},
	{key: keySummarySentences, env: []string{"DIGEST_SUMMARY_SENTENCES"}, def: "3"},
	{key: keyLookback, env: []string{"DIGEST_LOOKBACK"}, def: "24h"},
	{key: keyTopicsFile, env: []string{"DIGEST_TOPICS_FILE"}},
	{key: keySubject, env: []string{"DIGEST_SUBJECT"}, def: "Daily News"},
	{key: keyFormat, env: []string{"DIGEST_FORMAT"}, def: "html"},
	{key: keyBackfill, env: []string{"DIGEST_BACKFILL_DESCRIPTIONS"}, def: "false"},
	{key: keyLanguageGuard, env: []string{"DIGEST_LANGUAGE_GUARD"}, def: "false"},
	{key: keyDryRun, env: []string{"DRY_RUN"}, def: "false"},

	{key: keySender, env: []string{"SENDER_EMAIL", "GMAIL_USER"}},
	{key: keyReceivers, env: []string{"RECEIVER_EMAIL", "RECIPIENT_EMAIL"}},
	{key: keySMTPServer, env: []string{"SMTP_SERVER"}},
	{key: keySMTPPort, env: []string{"SMTP_PORT"}},
	{key: keySMTPUsername, env: []string{"SMTP_USERNAME"}},
	{key: keySMTPPassword, env: []string{"SMTP_PASSWORD", "GMAIL_APP_PASSWORD"}},
	{key: keySMTPTLSMode, env: []string{"SMTP_TLS_MODE"}},
	{key: keySMTPTimeout, env: []string{"SMTP_TIMEOUT"}, def: "30s"},

	{key: keyHTTPTimeout, env: []string{"HTTP_TIMEOUT"}, def: "10s"},
	{key: keyLogLevel, env: []string{"LOG_LEVEL"}, def: "info"},
	{key: keyLogFormat, env: []string{"LOG_FORMAT"}, def: "json"},
	{key: keyPublishersFile, env: []string{"PUBLISHERS_FILE"}},
	{key: keyPushgatewayURL, env: []string{"PUSHGATEWAY_URL"}},
}

// envName returns the canonical environment variable for key.
func envName(key string) string {
	for _, b := range bindings {
		if b.key == key {
			return b.env[0]
		}
	}
	return key
}
