// internal/workers/application/record-decision/config.go
package recorddecision

import (
	"time"

	"intake-bot/internal/common/config"
)

type Config struct {
	Cooldown time.Duration
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Cooldown: 24 * time.Hour,
		Timeout:  10 * time.Second,
	}
}

// FromApplication takes the cooldown as loaded; zero disables it.
func FromApplication(ac config.ApplicationConfig) *Config {
	c := LoadConfig()
	c.Cooldown = ac.Cooldown()
	return c
}
