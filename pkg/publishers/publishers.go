package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Supported publisher types.
	TypeQueue    = "queue"
	TypeHTTP     = "http"
	TypeTelegram = "telegram"

	// Supported queue providers.
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type sinksFile struct {
	Publishers []SinkConfig `json:"publishers" yaml:"publishers"`
}

// SinkConfig declares one place a finished digest is announced.
type SinkConfig struct {
	ID       string          `json:"id" yaml:"id"`
	Type     string          `json:"type" yaml:"type"`
	Enabled  *bool           `json:"enabled" yaml:"enabled"`
	Queue    *QueueConfig    `json:"queue" yaml:"queue"`
	HTTP     *HTTPConfig     `json:"http" yaml:"http"`
	Telegram *TelegramConfig `json:"telegram" yaml:"telegram"`
}

// QueueConfig selects a cloud queue provider.
type QueueConfig struct {
	Provider string     `json:"provider" yaml:"provider"`
	SQS      *SQSConfig `json:"sqs" yaml:"sqs"`
	SNS      *SNSConfig `json:"sns" yaml:"sns"`
	GCP      *GCPConfig `json:"gcp" yaml:"gcp"`
}

// SQSConfig holds AWS SQS settings.
type SQSConfig struct {
	QueueURL        string `json:"queue_url" yaml:"queue_url"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// SNSConfig holds AWS SNS settings.
type SNSConfig struct {
	TopicARN        string `json:"topic_arn" yaml:"topic_arn"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// GCPConfig holds Pub/Sub topic settings.
type GCPConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPConfig describes a webhook receiving the digest event as JSON.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// TelegramConfig describes a bot posting the headlines to a chat.
type TelegramConfig struct {
	BotToken    string `json:"bot_token" yaml:"bot_token"`
	ChatID      int64  `json:"chat_id" yaml:"chat_id"`
	APIEndpoint string `json:"api_endpoint" yaml:"api_endpoint"`
}

// IsEnabled reports the enabled flag, defaulting to true.
func (c SinkConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoadSinks reads a YAML or JSON publishers file. ${VAR} references are
// expanded from the environment before parsing so secrets stay out of the file.
func LoadSinks(path string) ([]SinkConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	file, err := decodeSinks([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	seen := make(map[string]struct{}, len(file.Publishers))
	out := make([]SinkConfig, 0, len(file.Publishers))
	for i, c := range file.Publishers {
		c = sanitizeSink(c)
		if err := validateSink(c); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// Enabled filters out disabled entries.
func Enabled(sinks []SinkConfig) []SinkConfig {
	out := make([]SinkConfig, 0, len(sinks))
	for _, s := range sinks {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

func decodeSinks(data []byte, ext string) (sinksFile, error) {
	var file sinksFile
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return sinksFile{}, fmt.Errorf("decode json publishers: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return sinksFile{}, fmt.Errorf("decode yaml publishers: %w", err)
		}
	default:
		return sinksFile{}, fmt.Errorf("publishers file extension %q not supported (expected YAML or JSON)", ext)
	}
	return file, nil
}

func sanitizeSink(c SinkConfig) SinkConfig {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))

	if c.Queue != nil {
		q := *c.Queue
		q.Provider = strings.ToLower(strings.TrimSpace(q.Provider))
		if q.SQS != nil {
			s := *q.SQS
			s.QueueURL = strings.TrimSpace(s.QueueURL)
			s.Region = strings.TrimSpace(s.Region)
			s.AccessKeyID = strings.TrimSpace(s.AccessKeyID)
			s.SecretAccessKey = strings.TrimSpace(s.SecretAccessKey)
			q.SQS = &s
		}
		if q.SNS != nil {
			s := *q.SNS
			s.TopicARN = strings.TrimSpace(s.TopicARN)
			s.Region = strings.TrimSpace(s.Region)
			s.AccessKeyID = strings.TrimSpace(s.AccessKeyID)
			s.SecretAccessKey = strings.TrimSpace(s.SecretAccessKey)
			q.SNS = &s
		}
		if q.GCP != nil {
			g := *q.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			q.GCP = &g
		}
		c.Queue = &q
	}
	if c.HTTP != nil {
		h := *c.HTTP
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = httpDefaultMethod
		}
		h.Headers = sanitizeHeaders(h.Headers)
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		c.HTTP = &h
	}
	if c.Telegram != nil {
		tg := *c.Telegram
		tg.BotToken = strings.TrimSpace(tg.BotToken)
		tg.APIEndpoint = strings.TrimSpace(tg.APIEndpoint)
		c.Telegram = &tg
	}
	return c
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key, val := strings.TrimSpace(k), strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateSink(c SinkConfig) error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	switch c.Type {
	case "":
		return fmt.Errorf("type is required for publisher %q", c.ID)
	case TypeQueue:
		if c.Queue == nil {
			return fmt.Errorf("queue config required for publisher %q", c.ID)
		}
		switch c.Queue.Provider {
		case QueueProviderAWSSQS:
			return validateSQS(c.ID, c.Queue.SQS)
		case QueueProviderAWSSNS:
			return validateSNS(c.ID, c.Queue.SNS)
		case QueueProviderGCP:
			return validateGCP(c.ID, c.Queue.GCP)
		default:
			return fmt.Errorf("queue provider %q not supported for publisher %q", c.Queue.Provider, c.ID)
		}
	case TypeHTTP:
		if c.HTTP == nil || c.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for publisher %q", c.ID)
		}
	case TypeTelegram:
		if c.Telegram == nil || c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required for publisher %q", c.ID)
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required for publisher %q", c.ID)
		}
	default:
		return fmt.Errorf("type %q not supported for publisher %q", c.Type, c.ID)
	}
	return nil
}

func validateSQS(id string, c *SQSConfig) error {
	switch {
	case c == nil:
		return fmt.Errorf("sqs config required for publisher %q", id)
	case c.QueueURL == "":
		return fmt.Errorf("sqs.queue_url is required for publisher %q", id)
	case c.Region == "":
		return fmt.Errorf("sqs.region is required for publisher %q", id)
	case c.AccessKeyID == "" || c.SecretAccessKey == "":
		return fmt.Errorf("sqs credentials are required for publisher %q", id)
	}
	return nil
}

func validateSNS(id string, c *SNSConfig) error {
	switch {
	case c == nil:
		return fmt.Errorf("sns config required for publisher %q", id)
	case c.TopicARN == "":
		return fmt.Errorf("sns.topic_arn is required for publisher %q", id)
	case c.Region == "":
		return fmt.Errorf("sns.region is required for publisher %q", id)
	case c.AccessKeyID == "" || c.SecretAccessKey == "":
		return fmt.Errorf("sns credentials are required for publisher %q", id)
	}
	return nil
}

func validateGCP(id string, c *GCPConfig) error {
	switch {
	case c == nil:
		return fmt.Errorf("gcp config required for publisher %q", id)
	case c.ProjectID == "":
		return fmt.Errorf("gcp.project_id is required for publisher %q", id)
	case c.Topic == "":
		return fmt.Errorf("gcp.topic is required for publisher %q", id)
	}
	return nil
}
