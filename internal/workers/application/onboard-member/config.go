// internal/workers/application/onboard-member/config.go
package onboardmember

import (
	"time"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/retry"
)

type Config struct {
	GuildID          string
	NewMemberRoleIDs []string
	TargetRankName   string
	BotUserID        string // recorded as member_ranks.set_by when known
	MaxNicknameLen   int
	Policy           retry.Policy
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TargetRankName: config.DefaultAutoAcceptRank,
		MaxNicknameLen: 32,
		Policy:         retry.DefaultPolicy,
		Timeout:        2 * time.Minute,
	}
}

func FromConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.GuildID = cfg.Discord.GuildID
	c.NewMemberRoleIDs = cfg.Application.NewMemberRoleIDs
	// a bot user shares its application's snowflake
	c.BotUserID = cfg.Discord.AppID
	if cfg.Application.AutoAcceptRank != "" {
		c.TargetRankName = cfg.Application.AutoAcceptRank
	}
	return c
}
