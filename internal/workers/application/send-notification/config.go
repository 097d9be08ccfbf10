// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"intake-bot/internal/common/config"
)

type Config struct {
	CommsChannelID      string
	ManagementChannelID string

	EmailEnabled bool
	FromEmail    string
	StaffEmails  []string

	AlertsEnabled bool
	TopicARN      string

	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

func FromConfig(cfg *config.Config) *Config {
	c := LoadConfig()
	c.CommsChannelID = cfg.Application.CommsChannelID
	c.ManagementChannelID = cfg.Application.ManagementChannelID
	c.EmailEnabled = cfg.Notifications.Email.Enabled
	c.FromEmail = cfg.Notifications.Email.FromEmail
	c.StaffEmails = cfg.Notifications.Email.StaffEmails
	c.AlertsEnabled = cfg.Notifications.Alerts.Enabled
	c.TopicARN = cfg.Notifications.Alerts.TopicARN
	return c
}
