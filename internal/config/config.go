// Package config provides configuration loading and structs for knowledgehub.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Slack      SlackConfig      `yaml:"slack"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Confluence ConfluenceConfig `yaml:"confluence"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// StoreConfig selects and configures the knowledge store.
type StoreConfig struct {
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	SupabaseURL  string `yaml:"supabase_url"`
	SupabaseKey  string `yaml:"supabase_key"`
	Table        string `yaml:"table"`
}

// SlackConfig holds chat source settings.
type SlackConfig struct {
	BotToken        string   `yaml:"bot_token"`
	IncludeChannels []string `yaml:"include_channels"`
	HistoryLimit    int      `yaml:"history_limit"`
	RatePerSecond   float64  `yaml:"rate_per_second"`
}

// ExtractionConfig controls the lookback window of a run.
type ExtractionConfig struct {
	HoursBack   int    `yaml:"hours_back"`
	SourceLabel string `yaml:"source_label"`
}

// VocabularyConfig lists documentation sources and seed terms.
// A nil SeedTerms uses the built-in list; an empty list disables seeds.
type VocabularyConfig struct {
	Sources     []string `yaml:"sources"`
	SeedTerms   []string `yaml:"seed_terms,omitempty"`
	IncludeWiki bool     `yaml:"include_wiki"`
}

// SummarizerConfig configures the optional LLM summarizer. It is disabled
// when APIKey is empty.
type SummarizerConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	RefreshOnAppend *bool   `yaml:"refresh_on_append"`
}

// RefreshOnAppendOrDefault returns whether summaries are refreshed after an
// append; defaults to true when unset.
func (s *SummarizerConfig) RefreshOnAppendOrDefault() bool {
	if s.RefreshOnAppend != nil {
		return *s.RefreshOnAppend
	}
	return true
}

// ConfluenceConfig configures the wiki source.
type ConfluenceConfig struct {
	URL      string `yaml:"url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
	SpaceKey string `yaml:"space_key"`
	Limit    int    `yaml:"limit"`
}

// HTTPConfig holds shared outbound client settings.
type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

// envKeys maps the supported environment variables to config keys.
var envKeys = map[string]string{
	"KNOWLEDGEHUB_DEBUG":    "debug",
	"SLACK_BOT_TOKEN":       "slack.bot_token",
	"INCLUDE_CHANNELS":      "slack.include_channels",
	"EXTRACTION_HOURS_BACK": "extraction.hours_back",
	"SUPABASE_URL":          "store.supabase_url",
	"SUPABASE_ANON_KEY":     "store.supabase_key",
	"OPENAI_API_KEY":        "summarizer.api_key",
	"OPENAI_MODEL":          "summarizer.model",
	"CONFLUENCE_URL":        "confluence.url",
	"CONFLUENCE_EMAIL":      "confluence.email",
	"CONFLUENCE_API_TOKEN":  "confluence.api_token",
	"CONFLUENCE_SPACE_KEY":  "confluence.space_key",
	"CONFLUENCE_LIMIT":      "confluence.limit",
}

// Load reads the YAML config at path, overlays environment variables, expands
// paths, and applies defaults. A missing file is not an error; the config
// then comes from the environment and defaults alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.DatabasePath = expandPath(cfg.Store.DatabasePath, configDir)
	for i := range cfg.Vocabulary.Sources {
		cfg.Vocabulary.Sources[i] = expandPath(cfg.Vocabulary.Sources[i], configDir)
	}
	return &cfg, nil
}

// envValue maps a known, non-empty environment variable to its config key.
// Returning an empty key makes koanf skip the variable.
func envValue(key, value string) (string, interface{}) {
	target, ok := envKeys[key]
	if !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	if key == "INCLUDE_CHANNELS" {
		var channels []string
		for _, c := range strings.Split(value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				channels = append(channels, c)
			}
		}
		return target, channels
	}
	return target, value
}

// Save writes the config to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
