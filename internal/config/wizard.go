package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .profilescout.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to profilescout! Let's configure your bot.")
	fmt.Println()

	cfg := DefaultConfig()

	botTokenPrompt := promptui.Prompt{
		Label: "Bot token (xoxb-...)",
		Mask:  '*',
	}
	botToken, err := botTokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("bot token: %w", err)
	}
	cfg.BotToken = botToken

	ingestPrompt := promptui.Select{
		Label: "How should the bot receive messages?",
		Items: []string{
			"poll    - periodically read DM history (no public endpoint needed)",
			"socket  - socket-mode websocket (needs an app-level token)",
			"webhook - HTTP events endpoint (needs a public URL)",
		},
	}
	ingestIdx, _, err := ingestPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("ingest mode: %w", err)
	}
	modes := []IngestMode{IngestPoll, IngestSocket, IngestWebhook}
	cfg.IngestMode = modes[ingestIdx]

	switch cfg.IngestMode {
	case IngestSocket:
		appTokenPrompt := promptui.Prompt{
			Label: "App-level token (xapp-...)",
			Mask:  '*',
		}
		appToken, err := appTokenPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("app token: %w", err)
		}
		cfg.AppToken = appToken

	case IngestWebhook:
		portPrompt := promptui.Prompt{
			Label:   "Webhook port",
			Default: strconv.Itoa(cfg.WebhookPort),
			Validate: func(s string) error {
				p, err := strconv.Atoi(s)
				if err != nil || p <= 0 || p > 65535 {
					return fmt.Errorf("enter a valid port number")
				}
				return nil
			},
		}
		portStr, err := portPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("webhook port: %w", err)
		}
		cfg.WebhookPort, _ = strconv.Atoi(portStr)

		secretPrompt := promptui.Prompt{
			Label: "Signing secret (empty to skip verification)",
			Mask:  '*',
		}
		secret, err := secretPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("signing secret: %w", err)
		}
		cfg.SigningSecret = secret
	}

	profileKeyPrompt := promptui.Prompt{
		Label: "Profile API key",
		Mask:  '*',
	}
	profileKey, err := profileKeyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("profile API key: %w", err)
	}
	cfg.ProfileAPIKey = profileKey

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"anthropic", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	if cfg.Provider == ProviderOpenAI {
		cfg.Model = "gpt-4o"
	}

	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: cfg.Model,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	cfg.Model = model

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, err
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", DefaultPath)
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" {
		fmt.Printf("Remember to export %s before running the bot.\n", envVar)
	}

	return cfg, nil
}
