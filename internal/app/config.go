// internal/app/config.go
package app

import (
	"time"

	"intake-bot/internal/common/config"
	intakewizard "intake-bot/internal/workers/application/intake-wizard"
)

type Config struct {
	AppID   string
	GuildID string

	Wizard *intakewizard.Config

	// PipelineTimeout bounds one submission from storage to onboarding.
	PipelineTimeout time.Duration
	CommandTimeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Wizard:          intakewizard.LoadConfig(),
		PipelineTimeout: 5 * time.Minute,
		CommandTimeout:  30 * time.Second,
	}
}

func FromConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.AppID = cfg.Discord.AppID
	c.GuildID = cfg.Discord.GuildID
	c.Wizard = intakewizard.FromApplication(cfg.Application)
	return c
}
