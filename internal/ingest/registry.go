package ingest

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all topic sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	ProxyURL       string  `yaml:"proxy_url,omitempty"`
	UseColly       bool    `yaml:"use_colly,omitempty"` // robots.txt-aware fetcher for attachments
}

// SourceConfig defines a single topic source for ingestion.
type SourceConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Strategy    string   `yaml:"strategy"` // "api_dodsbir"
	BaseURL     string   `yaml:"base_url,omitempty"`
	Components  []string `yaml:"components,omitempty"`
	Programs    []string `yaml:"programs,omitempty"`
	PageSize    int      `yaml:"page_size,omitempty"` // Default: 50
	MaxPages    int      `yaml:"max_pages,omitempty"` // 0 = all pages
	Attachments bool     `yaml:"attachments,omitempty"`
	Schedule    string   `yaml:"schedule,omitempty"`
	Description string   `yaml:"description,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml and returns a Registry.
// The path parameter falls back to the filesystem for local development.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Source returns the config with the given ID, or nil.
func (r *Registry) Source(id string) *SourceConfig {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i]
		}
	}
	return nil
}
