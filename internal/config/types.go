package config

// ProviderType identifies a generative-text provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
)

// IngestMode selects how inbound chat events reach the bot.
type IngestMode string

const (
	IngestPoll    IngestMode = "poll"
	IngestSocket  IngestMode = "socket"
	IngestWebhook IngestMode = "webhook"
)

// Config is the top-level profilescout configuration, corresponding to
// .profilescout.yml.
type Config struct {
	// Chat platform credentials.
	BotToken      string `yaml:"bot_token" koanf:"bot_token"`
	AppToken      string `yaml:"app_token" koanf:"app_token"`
	SigningSecret string `yaml:"signing_secret" koanf:"signing_secret"`

	// Event ingestion.
	IngestMode      IngestMode `yaml:"ingest_mode" koanf:"ingest_mode"`
	PollIntervalSec int        `yaml:"poll_interval_sec" koanf:"poll_interval_sec"`
	HistoryLimit    int        `yaml:"history_limit" koanf:"history_limit"`
	WebhookPort     int        `yaml:"webhook_port" koanf:"webhook_port"`

	// Profile-data provider.
	ProfileAPIKey  string `yaml:"profile_api_key" koanf:"profile_api_key"`
	ProfileAPIHost string `yaml:"profile_api_host" koanf:"profile_api_host"`

	// Generative-text backend.
	Provider     ProviderType `yaml:"provider" koanf:"provider"`
	Model        string       `yaml:"model" koanf:"model"`
	RateLimitRPM int          `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`

	// Instrumentation output.
	ReportDir         string `yaml:"report_dir" koanf:"report_dir"`
	ReportIntervalMin int    `yaml:"report_interval_min" koanf:"report_interval_min"`
	DataDir           string `yaml:"data_dir" koanf:"data_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		IngestMode:        IngestPoll,
		PollIntervalSec:   2,
		HistoryLimit:      20,
		WebhookPort:       8080,
		ProfileAPIHost:    "linkedin-data-api.p.rapidapi.com",
		Provider:          ProviderAnthropic,
		Model:             "claude-sonnet-4-5-20250929",
		RateLimitRPM:      30,
		ReportDir:         "reports",
		ReportIntervalMin: 60,
		DataDir:           ".profilescout",
	}
}
