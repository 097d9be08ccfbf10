// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Discord       DiscordConfig       `mapstructure:"discord"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Application   ApplicationConfig   `mapstructure:"application"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	RankService   RankServiceConfig   `mapstructure:"rank_service"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	AppID   string `mapstructure:"app_id"`
	GuildID string `mapstructure:"guild_id"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL            string `mapstructure:"url"` // DATABASE_URL wins over discrete fields
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// Enabled reports whether an audit cluster is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ApplicationConfig holds the intake wizard and routing policy.
type ApplicationConfig struct {
	AutoAcceptThreshold float64 `mapstructure:"auto_accept_threshold"`
	BorderlineMin       float64 `mapstructure:"borderline_min"`
	HardRejectThreshold float64 `mapstructure:"hard_reject_threshold"`
	TimeoutMinutes      int     `mapstructure:"timeout_minutes"` // idle wait per question
	CooldownHours       int     `mapstructure:"cooldown_hours"`
	QuestionsFile       string  `mapstructure:"questions_file"`

	NewMemberRoleIDs []string `mapstructure:"new_member_role_ids"`
	AutoAcceptRank   string   `mapstructure:"auto_accept_rank"`

	CommsChannelID      string `mapstructure:"comms_channel_id"`
	ManagementChannelID string `mapstructure:"management_channel_id"`
	LogChannelID        string `mapstructure:"log_channel_id"`

	GroupURL string `mapstructure:"group_url"`
}

// ScoringConfig selects and configures the rubric scoring provider.
type ScoringConfig struct {
	Provider string `mapstructure:"provider"` // "openai" or "anthropic"
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// RankServiceConfig points at the group rank service and the public users API.
type RankServiceConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Secret        string `mapstructure:"secret"`
	GroupID       string `mapstructure:"group_id"`
	UsersAPIURL   string `mapstructure:"users_api_url"`
	Timeout       int    `mapstructure:"timeout"`         // milliseconds
	EnsureTimeout int    `mapstructure:"ensure_timeout"`  // milliseconds, combined call
	RanksCacheTTL int    `mapstructure:"ranks_cache_ttl"` // seconds
}

// Enabled reports whether rank calls can be made at all.
func (r RankServiceConfig) Enabled() bool {
	return r.BaseURL != "" && r.Secret != ""
}

// NotificationConfig holds the optional AWS staff alert channels.
type NotificationConfig struct {
	Email struct {
		Enabled     bool     `mapstructure:"enabled"`
		FromEmail   string   `mapstructure:"from_email"`
		StaffEmails []string `mapstructure:"staff_emails"`
	} `mapstructure:"email"`
	Alerts struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"alerts"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
