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

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerMinute() int
}

// SchedulerConfig provides Redis and asynq settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetExpirySweepInterval() time.Duration
}

// GatewayConfig provides settings for the external invoicing gateway.
type GatewayConfig interface {
	GetGatewayURL() string
	GetGatewayAPIKey() string
	GetGatewayAttemptTimeout() time.Duration
	GetGatewayMaxAttempts() int
	GetGatewayBackoffBase() time.Duration
	GetGatewayTotalBudget() time.Duration
	IsGatewayEnabled() bool
}

// QuoteConfig provides quote defaults.
type QuoteConfig interface {
	GetDefaultTaxRate() float64
	GetQuoteValidityDays() int
	GetSendLockTTL() time.Duration
}

// SMTPConfig provides settings for outbound mail.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsSMTPEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketQuotePDFs() string
	IsMinIOEnabled() bool
}

// MonitoringConfig provides settings for error reporting and metrics.
type MonitoringConfig interface {
	GetEnv() string
	GetSentryDSN() string
	GetRelease() string
	GetMetricsEnabled() bool
}

// AuthzConfig provides the optional capability matrix override.
type AuthzConfig interface {
	GetAuthzPolicyFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	Release               string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RateLimitPerMinute    int
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	ExpirySweepInterval   time.Duration
	GatewayURL            string
	GatewayAPIKey         string
	GatewayAttemptTimeout time.Duration
	GatewayMaxAttempts    int
	GatewayBackoffBase    time.Duration
	GatewayTotalBudget    time.Duration
	DefaultTaxRate        float64
	QuoteValidityDays     int
	SendLockTTL           time.Duration
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketQuotePDFs  string
	SentryDSN             string
	MetricsEnabled        bool
	AuthzPolicyFile       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                    { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool              { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string              { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int               { return c.AsynqConcurrency }
func (c *Config) GetExpirySweepInterval() time.Duration { return c.ExpirySweepInterval }

// GatewayConfig implementation
func (c *Config) GetGatewayURL() string                    { return c.GatewayURL }
func (c *Config) GetGatewayAPIKey() string                 { return c.GatewayAPIKey }
func (c *Config) GetGatewayAttemptTimeout() time.Duration { return c.GatewayAttemptTimeout }
func (c *Config) GetGatewayMaxAttempts() int               { return c.GatewayMaxAttempts }
func (c *Config) GetGatewayBackoffBase() time.Duration    { return c.GatewayBackoffBase }
func (c *Config) GetGatewayTotalBudget() time.Duration    { return c.GatewayTotalBudget }
func (c *Config) IsGatewayEnabled() bool                   { return c.GatewayURL != "" }

// QuoteConfig implementation
func (c *Config) GetDefaultTaxRate() float64       { return c.DefaultTaxRate }
func (c *Config) GetQuoteValidityDays() int        { return c.QuoteValidityDays }
func (c *Config) GetSendLockTTL() time.Duration { return c.SendLockTTL }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketQuotePDFs() string { return c.MinioBucketQuotePDFs }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// MonitoringConfig implementation
func (c *Config) GetEnv() string          { return c.Env }
func (c *Config) GetSentryDSN() string    { return c.SentryDSN }
func (c *Config) GetRelease() string      { return c.Release }
func (c *Config) GetMetricsEnabled() bool { return c.MetricsEnabled }

// AuthzConfig implementation
func (c *Config) GetAuthzPolicyFile() string { return c.AuthzPolicyFile }

// Load reads configuration from a .env file (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from a lookup function, which keeps Load testable.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if val, ok := lookup(key); ok {
			return val
		}
		return fallback
	}

	corsOrigins := splitCSV(get("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(get("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   get("APP_ENV", "development"),
		Release:               get("APP_RELEASE", "dev"),
		HTTPAddr:              get("HTTP_ADDR", ":8080"),
		DatabaseURL:           get("DATABASE_URL", ""),
		JWTAccessSecret:       get("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(get("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitPerMinute:    mustInt(get("RATE_LIMIT_PER_MINUTE", "300")),
		RedisURL:              get("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(get("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        get("ASYNQ_QUEUE", "quotes"),
		AsynqConcurrency:      mustInt(get("ASYNQ_CONCURRENCY", "5")),
		ExpirySweepInterval:   mustDuration(get("QUOTE_EXPIRY_SWEEP_INTERVAL", "15m")),
		GatewayURL:            strings.TrimRight(get("INVOICE_GATEWAY_URL", ""), "/"),
		GatewayAPIKey:         get("INVOICE_GATEWAY_API_KEY", ""),
		GatewayAttemptTimeout: mustDuration(get("INVOICE_GATEWAY_ATTEMPT_TIMEOUT", "3s")),
		GatewayMaxAttempts:    mustInt(get("INVOICE_GATEWAY_MAX_ATTEMPTS", "3")),
		GatewayBackoffBase:    mustDuration(get("INVOICE_GATEWAY_BACKOFF_BASE", "250ms")),
		GatewayTotalBudget:    mustDuration(get("INVOICE_GATEWAY_TOTAL_BUDGET", "9s")),
		DefaultTaxRate:        mustFloat(get("QUOTE_DEFAULT_TAX_RATE", "21")),
		QuoteValidityDays:     mustInt(get("QUOTE_VALIDITY_DAYS", "30")),
		SendLockTTL:           mustDuration(get("QUOTE_SEND_LOCK_TTL", "30s")),
		SMTPHost:              get("SMTP_HOST", ""),
		SMTPPort:              mustInt(get("SMTP_PORT", "587")),
		SMTPUsername:          get("SMTP_USERNAME", ""),
		SMTPPassword:          get("SMTP_PASSWORD", ""),
		EmailFromName:         get("EMAIL_FROM_NAME", "Quotes"),
		EmailFromAddress:      get("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:         get("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        get("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        get("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(get("MINIO_USE_SSL", "false"), "true"),
		MinioBucketQuotePDFs:  get("MINIO_BUCKET_QUOTE_PDFS", "quote-pdfs"),
		SentryDSN:             get("SENTRY_DSN", ""),
		MetricsEnabled:        strings.EqualFold(get("METRICS_ENABLED", "true"), "true"),
		AuthzPolicyFile:       get("AUTHZ_POLICY_FILE", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.DefaultTaxRate < 0 || cfg.DefaultTaxRate > 100 {
		return nil, fmt.Errorf("QUOTE_DEFAULT_TAX_RATE must be between 0 and 100")
	}
	if cfg.GatewayMaxAttempts < 1 {
		return nil, fmt.Errorf("INVOICE_GATEWAY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.GatewayTotalBudget <= 0 || cfg.GatewayAttemptTimeout <= 0 {
		return nil, fmt.Errorf("gateway timeouts must be positive durations")
	}

	return cfg, nil
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return -1
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

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
