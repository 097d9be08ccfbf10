// internal/workers/application/check-readiness-score/config.go
package checkreadinessscore

import (
	"time"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/retry"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRationale int
	Policy       retry.Policy
}

func LoadConfig() *Config {
	return &Config{
		Provider:     ProviderOpenAI,
		BaseURL:      "https://api.openai.com/v1",
		Model:        "gpt-4o-mini",
		Timeout:      60 * time.Second,
		MaxRationale: 1500,
		Policy:       retry.Policy{Attempts: 3, Delay: 2 * time.Second},
	}
}

// FromScoring overlays the service configuration on the defaults.
func FromScoring(sc config.ScoringConfig) *Config {
	c := LoadConfig()
	if sc.Provider != "" {
		c.Provider = sc.Provider
	}
	if sc.BaseURL != "" {
		c.BaseURL = sc.BaseURL
	} else if c.Provider == ProviderAnthropic {
		c.BaseURL = "" // SDK default endpoint
	}
	if sc.Model != "" {
		c.Model = sc.Model
	}
	if sc.Timeout > 0 {
		c.Timeout = config.GetDuration(sc.Timeout)
	}
	c.APIKey = sc.APIKey
	return c
}
