// internal/workers/application/intake-wizard/config.go
package intakewizard

import (
	"time"

	"intake-bot/internal/common/config"
)

type Config struct {
	IdleTimeout   time.Duration // wait for a typed answer
	PreviewLength int
	ModalMaxLen   int // used when a long question sets no maximum
	GroupURL      string
}

func LoadConfig() *Config {
	return &Config{
		IdleTimeout:   20 * time.Minute,
		PreviewLength: 200,
		ModalMaxLen:   1000,
	}
}

func FromApplication(ac config.ApplicationConfig) *Config {
	c := LoadConfig()
	if ac.TimeoutMinutes > 0 {
		c.IdleTimeout = ac.IdleTimeout()
	}
	c.GroupURL = ac.GroupURL
	return c
}
