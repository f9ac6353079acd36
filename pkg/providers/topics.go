package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// topicsFile represents the structure of the digest topics file.
type topicsFile struct {
	Topics []Topic `json:"topics" yaml:"topics"`
}

// Topic is one digest section declared in a topics file.
type Topic struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	Category  string `json:"category" yaml:"category"`
	Query     string `json:"query" yaml:"query"`
	Domains   string `json:"domains" yaml:"domains"`
	Country   string `json:"country" yaml:"country"`
	Language  string `json:"language" yaml:"language"`
	SortBy    string `json:"sort_by" yaml:"sort_by"`
	SourceURL string `json:"source_url" yaml:"source_url"`
}

// LoadTopics reads a YAML or JSON topics file. Environment references in the
// file are expanded before decoding.
func LoadTopics(path string) ([]Topic, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("topics file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	file, err := parseTopicsFile([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Topics) == 0 {
		return nil, errors.New("topics file contains no topics entries")
	}

	seen := make(map[string]struct{}, len(file.Topics))
	out := make([]Topic, 0, len(file.Topics))
	for i, t := range file.Topics {
		t = sanitizeTopic(t)
		if err := validateTopic(t); err != nil {
			return nil, fmt.Errorf("topics[%d]: %w", i, err)
		}
		key := strings.ToLower(t.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate topic name %q", t.Name)
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// parseTopicsFile decodes the file content based on its extension.
func parseTopicsFile(data []byte, ext string) (topicsFile, error) {
	var file topicsFile
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return topicsFile{}, fmt.Errorf("decode json topics: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return topicsFile{}, fmt.Errorf("decode yaml topics: %w", err)
		}
	default:
		return topicsFile{}, fmt.Errorf("topics file format %q not recognized (expected YAML or JSON)", ext)
	}
	return file, nil
}

func sanitizeTopic(t Topic) Topic {
	t.Name = strings.TrimSpace(t.Name)
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	t.Query = strings.TrimSpace(t.Query)
	t.Domains = normalizeDomains(t.Domains)
	t.Country = strings.ToLower(strings.TrimSpace(t.Country))
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	t.SortBy = strings.TrimSpace(t.SortBy)
	t.SourceURL = strings.TrimSpace(t.SourceURL)

	if t.Type == "" {
		if t.Query != "" && t.Category == "" {
			t.Type = ProviderTypeEverything
		} else {
			t.Type = ProviderTypeTopHeadlines
		}
	}
	return t
}

// normalizeDomains trims every entry of a comma-separated domain list.
func normalizeDomains(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

func validateTopic(t Topic) error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	switch t.Type {
	case ProviderTypeTopHeadlines:
	case ProviderTypeEverything:
		if t.Query == "" {
			return fmt.Errorf("query is required for topic %q", t.Name)
		}
	case ProviderTypeGoogleNews:
		if t.SourceURL == "" {
			return fmt.Errorf("source_url is required for topic %q", t.Name)
		}
	default:
		return fmt.Errorf("type %q not supported for topic %q", t.Type, t.Name)
	}
	return nil
}

// Provider overlays the topic on base, which carries the shared settings.
func (t Topic) Provider(base Provider) Provider {
	p := base
	p.ID = t.Name
	p.Type = t.Type
	p.Category = t.Category
	p.Query = t.Query
	p.Domains = t.Domains
	if t.Country != "" {
		p.Country = t.Country
	}
	if t.Language != "" {
		p.Language = t.Language
	}
	if t.SortBy != "" {
		p.SortBy = t.SortBy
	}
	if t.Type == ProviderTypeGoogleNews {
		p.SourceURL = t.SourceURL
	} else if t.SourceURL != "" {
		p.SourceURL = t.SourceURL
	}
	if t.Type == ProviderTypeEverything {
		// The everything endpoint rejects country and category.
		p.Country = ""
		p.Category = ""
	}
	return p
}
