// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	IsMetricsEnabled() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ArchiveConfig provides settings for the lead archival sweep.
type ArchiveConfig interface {
	GetLeadArchiveAfter() time.Duration
	GetLeadArchiveInterval() time.Duration
}

// WebhookConfig provides settings for the public webhook endpoint.
type WebhookConfig interface {
	GetWebhookRateLimit() float64
	GetWebhookRateBurst() int
	GetWebhookAliases() map[string]string
}

// RelayConfig provides settings for the optional RabbitMQ event relay.
type RelayConfig interface {
	GetRabbitMQURL() string
	GetRabbitMQExchange() string
	IsRelayEnabled() bool
}

// MailConfig provides SMTP settings for advisor notifications.
type MailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetEmailFromName() string
	IsMailEnabled() bool
}

// TerminalConfig provides settings for a headless terminal session.
type TerminalConfig interface {
	GetTerminalAPIURL() string
	GetTerminalWSURL() string
	GetTerminalToken() string
	GetTerminalAdvisorID() string
	GetTerminalReconnectInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	AccessTokenTTL            time.Duration
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	MetricsEnabled            bool
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	LeadArchiveAfter          time.Duration
	LeadArchiveInterval       time.Duration
	WebhookRateLimit          float64
	WebhookRateBurst          int
	WebhookAliases            map[string]string
	RabbitMQURL               string
	RabbitMQExchange          string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUsername              string
	SMTPPassword              string
	EmailFromAddress          string
	EmailFromName             string
	TerminalAPIURL            string
	TerminalWSURL             string
	TerminalToken             string
	TerminalAdvisorID         string
	TerminalReconnectInterval time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthServiceConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) IsMetricsEnabled() bool   { return c.MetricsEnabled }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ArchiveConfig implementation
func (c *Config) GetLeadArchiveAfter() time.Duration    { return c.LeadArchiveAfter }
func (c *Config) GetLeadArchiveInterval() time.Duration { return c.LeadArchiveInterval }

// WebhookConfig implementation
func (c *Config) GetWebhookRateLimit() float64 { return c.WebhookRateLimit }
func (c *Config) GetWebhookRateBurst() int     { return c.WebhookRateBurst }
func (c *Config) GetWebhookAliases() map[string]string {
	return c.WebhookAliases
}

// RelayConfig implementation
func (c *Config) GetRabbitMQURL() string      { return c.RabbitMQURL }
func (c *Config) GetRabbitMQExchange() string { return c.RabbitMQExchange }
func (c *Config) IsRelayEnabled() bool        { return c.RabbitMQURL != "" }

// MailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) IsMailEnabled() bool         { return c.SMTPHost != "" }

// TerminalConfig implementation
func (c *Config) GetTerminalAPIURL() string    { return c.TerminalAPIURL }
func (c *Config) GetTerminalWSURL() string     { return c.TerminalWSURL }
func (c *Config) GetTerminalToken() string     { return c.TerminalToken }
func (c *Config) GetTerminalAdvisorID() string { return c.TerminalAdvisorID }
func (c *Config) GetTerminalReconnectInterval() time.Duration {
	return c.TerminalReconnectInterval
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	cfg := read()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.LeadArchiveAfter <= 0 {
		return nil, fmt.Errorf("LEAD_ARCHIVE_AFTER must be a positive duration")
	}
	if cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}

	return cfg, nil
}

// LoadTerminal reads the subset of configuration a terminal session needs.
// It does not require database or JWT settings.
func LoadTerminal() (*Config, error) {
	cfg := read()

	if cfg.TerminalAPIURL == "" {
		return nil, fmt.Errorf("TERMINAL_API_URL is required")
	}
	if cfg.TerminalWSURL == "" {
		return nil, fmt.Errorf("TERMINAL_WS_URL is required")
	}
	if cfg.TerminalReconnectInterval <= 0 {
		return nil, fmt.Errorf("TERMINAL_RECONNECT_INTERVAL must be a positive duration")
	}

	return cfg, nil
}

func read() *Config {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	return &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":3001"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:            mustDuration(getEnv("JWT_ACCESS_TTL", "168h")),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		MetricsEnabled:            strings.EqualFold(getEnv("METRICS_ENABLED", "true"), "true"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "5"))),
		LeadArchiveAfter:          mustDuration(getEnv("LEAD_ARCHIVE_AFTER", "360h")),
		LeadArchiveInterval:       mustDuration(getEnv("LEAD_ARCHIVE_INTERVAL", "1h")),
		WebhookRateLimit:          mustFloat64(getEnv("WEBHOOK_RATE_LIMIT", "10")),
		WebhookRateBurst:          int(mustInt64(getEnv("WEBHOOK_RATE_BURST", "20"))),
		WebhookAliases:            parseAliases(getEnv("WEBHOOK_PLATFORM_ALIASES", "")),
		RabbitMQURL:               getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:          getEnv("RABBITMQ_EXCHANGE", "ex.leads"),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress:          getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:             getEnv("EMAIL_FROM_NAME", "Lead Desk"),
		TerminalAPIURL:            getEnv("TERMINAL_API_URL", "http://localhost:3001"),
		TerminalWSURL:             getEnv("TERMINAL_WS_URL", "ws://localhost:3001/api/realtime/ws"),
		TerminalToken:             getEnv("TERMINAL_TOKEN", ""),
		TerminalAdvisorID:         getEnv("TERMINAL_ADVISOR_ID", ""),
		TerminalReconnectInterval: mustDuration(getEnv("TERMINAL_RECONNECT_INTERVAL", "3s")),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

// parseAliases reads "alias=platform" pairs separated by commas.
func parseAliases(value string) map[string]string {
	aliases := make(map[string]string)
	for _, pair := range splitCSV(value) {
		alias, platform, ok := strings.Cut(pair, "=")
		alias, platform = strings.TrimSpace(alias), strings.TrimSpace(platform)
		if ok && alias != "" && platform != "" {
			aliases[alias] = platform
		}
	}
	return aliases
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
