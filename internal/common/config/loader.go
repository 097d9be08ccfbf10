// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"intake-bot/internal/common/validation"
)

const (
	DefaultAutoAcceptThreshold = 55
	DefaultBorderlineMin       = 30
	DefaultHardRejectThreshold = 20
	DefaultTimeoutMinutes      = 20
	DefaultCooldownHours       = 24
	DefaultAutoAcceptRank      = "Medical Student"
	DefaultUsersAPIURL         = "https://users.roblox.com/v1/usernames/users"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setPolicyDefaults(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setPolicyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from the working directory or any parent up to the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// setPolicyDefaults registers defaults for values where zero is meaningful,
// so an explicit 0 in the file is honored.
func setPolicyDefaults(v *viper.Viper) {
	v.SetDefault("application.auto_accept_threshold", DefaultAutoAcceptThreshold)
	v.SetDefault("application.borderline_min", DefaultBorderlineMin)
	v.SetDefault("application.hard_reject_threshold", DefaultHardRejectThreshold)
	v.SetDefault("application.cooldown_hours", DefaultCooldownHours)
}

// Deployment env names predate the yaml layout and still win when the file
// leaves a field empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Discord.Token, "BOT_TOKEN")
	setIfEmpty(&cfg.Discord.AppID, "DISCORD_APP_ID")
	setIfEmpty(&cfg.Discord.GuildID, "DISCORD_GUILD_ID")

	setIfEmpty(&cfg.Database.Postgres.URL, "DATABASE_URL")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")

	if cfg.Scoring.Provider == "anthropic" {
		setIfEmpty(&cfg.Scoring.APIKey, "ANTHROPIC_API_KEY")
	} else {
		setIfEmpty(&cfg.Scoring.APIKey, "OPENAI_API_KEY")
	}
	setIfEmpty(&cfg.Scoring.Model, "AI_MODEL")
	setIfEmpty(&cfg.Scoring.BaseURL, "AI_BASE_URL")

	setIfEmpty(&cfg.RankService.BaseURL, "ROBLOX_SERVICE_BASE")
	setIfEmpty(&cfg.RankService.Secret, "ROBLOX_REMOVE_SECRET")
	setIfEmpty(&cfg.RankService.GroupID, "ROBLOX_GROUP_ID")
	cfg.RankService.BaseURL = NormalizeBaseURL(cfg.RankService.BaseURL)

	setIfEmpty(&cfg.Application.AutoAcceptRank, "AUTO_ACCEPT_GROUP_ROLE_NAME")
	setIfEmpty(&cfg.Application.CommsChannelID, "COMMS_CHANNEL_ID")
	setIfEmpty(&cfg.Application.LogChannelID, "COMMAND_LOG_CHANNEL_ID")
	setIfEmpty(&cfg.Application.ManagementChannelID, "APPLICATION_MANAGEMENT_CHANNEL_ID")
	if len(cfg.Application.NewMemberRoleIDs) == 0 {
		if val := os.Getenv("MEDICAL_STUDENT_ROLE_ID"); val != "" {
			cfg.Application.NewMemberRoleIDs = []string{val}
		}
	}

	setFloatFromEnv(&cfg.Application.AutoAcceptThreshold, "APPLICATION_AUTO_ACCEPT_THRESHOLD")
	setFloatFromEnv(&cfg.Application.BorderlineMin, "APPLICATION_BORDERLINE_MIN")
	setFloatFromEnv(&cfg.Application.HardRejectThreshold, "APPLICATION_HARD_REJECT_THRESHOLD")
	setIntFromEnv(&cfg.Application.TimeoutMinutes, "APPLICATION_TIMEOUT_MINUTES")
	setIntFromEnv(&cfg.Application.CooldownHours, "APPLICATION_COOLDOWN_HOURS")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

func setFloatFromEnv(dst *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setIntFromEnv(dst *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

// NormalizeBaseURL adds a missing https scheme and strips trailing slashes.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "intake-bot"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "intake-audit"
	}

	if cfg.Application.TimeoutMinutes == 0 {
		cfg.Application.TimeoutMinutes = DefaultTimeoutMinutes
	}
	if cfg.Application.AutoAcceptRank == "" {
		cfg.Application.AutoAcceptRank = DefaultAutoAcceptRank
	}

	if cfg.Scoring.Provider == "" {
		cfg.Scoring.Provider = "openai"
	}
	if cfg.Scoring.Model == "" {
		if cfg.Scoring.Provider == "anthropic" {
			cfg.Scoring.Model = "claude-3-5-haiku-latest"
		} else {
			cfg.Scoring.Model = "gpt-4o-mini"
		}
	}
	if cfg.Scoring.BaseURL == "" && cfg.Scoring.Provider == "openai" {
		cfg.Scoring.BaseURL = "https://api.openai.com/v1"
	}
	cfg.Scoring.BaseURL = strings.TrimRight(cfg.Scoring.BaseURL, "/")
	if cfg.Scoring.Timeout == 0 {
		cfg.Scoring.Timeout = 60000
	}

	if cfg.RankService.UsersAPIURL == "" {
		cfg.RankService.UsersAPIURL = DefaultUsersAPIURL
	}
	if cfg.RankService.Timeout == 0 {
		cfg.RankService.Timeout = 20000
	}
	if cfg.RankService.EnsureTimeout == 0 {
		cfg.RankService.EnsureTimeout = 30000
	}
	if cfg.RankService.RanksCacheTTL == 0 {
		cfg.RankService.RanksCacheTTL = 600
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	pg := cfg.Database.Postgres
	if pg.URL == "" {
		if pg.Host == "" {
			return fmt.Errorf("database.postgres.host or DATABASE_URL is required")
		}
		if pg.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if pg.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	app := cfg.Application
	for name, val := range map[string]float64{
		"auto_accept_threshold": app.AutoAcceptThreshold,
		"borderline_min":        app.BorderlineMin,
		"hard_reject_threshold": app.HardRejectThreshold,
	} {
		if val < 0 || val > 100 {
			return fmt.Errorf("application.%s must be within 0..100, got %v", name, val)
		}
	}
	if app.HardRejectThreshold > app.BorderlineMin || app.BorderlineMin > app.AutoAcceptThreshold {
		return fmt.Errorf("application thresholds must satisfy hard_reject <= borderline_min <= auto_accept")
	}
	if app.TimeoutMinutes < 0 {
		return fmt.Errorf("application.timeout_minutes must be positive")
	}
	if app.CooldownHours < 0 {
		return fmt.Errorf("application.cooldown_hours must not be negative")
	}

	switch cfg.Scoring.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("scoring.provider must be openai or anthropic, got %q", cfg.Scoring.Provider)
	}

	if email := cfg.Notifications.Email; email.Enabled {
		if email.FromEmail == "" {
			return fmt.Errorf("notifications.email.from_email is required when email is enabled")
		}
		if !validation.ValidateEmail(email.FromEmail) {
			return fmt.Errorf("notifications.email.from_email is not a valid address: %q", email.FromEmail)
		}
		for _, addr := range email.StaffEmails {
			if !validation.ValidateEmail(addr) {
				return fmt.Errorf("notifications.email.staff_emails has an invalid address: %q", addr)
			}
		}
	}
	if cfg.Notifications.Alerts.Enabled && cfg.Notifications.Alerts.TopicARN == "" {
		return fmt.Errorf("notifications.alerts.topic_arn is required when alerts are enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// IdleTimeout is the per-question wait before a session is abandoned.
func (a ApplicationConfig) IdleTimeout() time.Duration {
	return time.Duration(a.TimeoutMinutes) * time.Minute
}

// Cooldown is the reapplication block applied after a terminal decision.
func (a ApplicationConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownHours) * time.Hour
}
