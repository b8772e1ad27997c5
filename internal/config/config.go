// Package config provides environment-based configuration management
package config

import (
	"fmt"
	"os"
	"strconv"
)

// ChatwootConfig holds the platform API credentials and bot identity
type ChatwootConfig struct {
	BaseURL        string // e.g. https://app.chatwoot.com
	AccountID      string
	AccessKey      string
	InboxID        string
	BotName        string
	BotDescription string
}

// WebhookConfig holds the public webhook exposure settings
type WebhookConfig struct {
	// PublicBaseURL is the externally-reachable HTTPS base URL the agent
	// bot's outgoing webhook is registered under
	PublicBaseURL string
}

// DBConfig holds the optional audit-log database parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RedisConfig holds the optional dedup cache parameters
type RedisConfig struct {
	Addr string // Format: host:port; empty disables dedup
}

// AMQPConfig holds the optional gateway broker parameters
type AMQPConfig struct {
	URL      string // empty falls back to the log-only gateway
	Exchange string
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Port       int
	MeshSecret string // auth for the ops log stream

	// KeepUnknownAttachments surfaces attachments with unrecognized
	// file_type values instead of dropping them
	KeepUnknownAttachments bool
}

// Config aggregates all configuration sections
type Config struct {
	App      AppConfig
	Chatwoot ChatwootConfig
	Webhook  WebhookConfig
	DB       *DBConfig // nil when the audit log is disabled
	Redis    RedisConfig
	AMQP     AMQPConfig
}

// LoadConfig reads configuration from environment variables.
// Returns an error when any required Chatwoot credential is missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.Chatwoot.BaseURL = getEnv("CHATWOOT_URL", "")
	cfg.Chatwoot.AccountID = getEnv("CHATWOOT_ACCOUNT_ID", "")
	cfg.Chatwoot.AccessKey = getEnv("CHATWOOT_ACCESS_KEY", "")
	cfg.Chatwoot.InboxID = getEnv("CHATWOOT_INBOX_ID", "")
	cfg.Chatwoot.BotName = getEnv("BOT_NAME", "Assistant Bot")
	cfg.Chatwoot.BotDescription = getEnv("BOT_DESCRIPTION", "Assistant gateway bot")

	required := map[string]string{
		"CHATWOOT_URL":        cfg.Chatwoot.BaseURL,
		"CHATWOOT_ACCOUNT_ID": cfg.Chatwoot.AccountID,
		"CHATWOOT_ACCESS_KEY": cfg.Chatwoot.AccessKey,
		"CHATWOOT_INBOX_ID":   cfg.Chatwoot.InboxID,
	}
	for key, val := range required {
		if val == "" {
			return nil, fmt.Errorf("%s environment variable is required", key)
		}
	}

	cfg.Webhook.PublicBaseURL = getEnv("WEBHOOK_BASE_URL", "")

	cfg.App.Port = getEnvAsInt("APP_PORT", 8080)
	cfg.App.MeshSecret = getEnv("MESH_SECRET", "")
	cfg.App.KeepUnknownAttachments = getEnvAsBool("KEEP_UNKNOWN_ATTACHMENTS", false)

	// Audit log is enabled only when a DB host is configured
	if host := getEnv("DB_HOST", ""); host != "" {
		db := &DBConfig{
			Host:     host,
			Port:     getEnvAsInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASS", ""),
			Database: getEnv("DB_NAME", "woot_bridge"),
		}
		if db.Password == "" {
			return nil, fmt.Errorf("DB_PASS environment variable is required when DB_HOST is set")
		}
		cfg.DB = db
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")

	cfg.AMQP.URL = getEnv("AMQP_URL", "")
	cfg.AMQP.Exchange = getEnv("AMQP_EXCHANGE", "assistant.gateway")

	return cfg, nil
}

// GetDSN returns the MySQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBool reads environment variable as boolean with fallback default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
