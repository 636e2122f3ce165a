package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the conventional config file location.
const DefaultPath = ".profilescout.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PROFILESCOUT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: PROFILESCOUT_BOT_TOKEN -> bot_token.
	if err := k.Load(env.Provider("PROFILESCOUT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PROFILESCOUT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
}

var validIngestModes = map[IngestMode]bool{
	IngestPoll:    true,
	IngestSocket:  true,
	IngestWebhook: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot_token is required")
	}

	if !validIngestModes[c.IngestMode] {
		return fmt.Errorf("invalid ingest_mode %q: must be one of poll, socket, webhook", c.IngestMode)
	}
	if c.IngestMode == IngestSocket && c.AppToken == "" {
		return fmt.Errorf("app_token is required for socket ingestion")
	}
	if c.IngestMode == IngestWebhook && (c.WebhookPort <= 0 || c.WebhookPort > 65535) {
		return fmt.Errorf("webhook_port must be a valid port, got %d", c.WebhookPort)
	}
	if c.IngestMode == IngestPoll && c.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive")
	}

	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive")
	}

	if c.ProfileAPIKey == "" {
		return fmt.Errorf("profile_api_key is required")
	}
	if c.ProfileAPIHost == "" {
		return fmt.Errorf("profile_api_host is required")
	}

	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must be non-negative")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for the
// API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
