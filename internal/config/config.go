package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Rate limiter backends for the booking webhook.
const (
	RateLimitBackendAudit = "audit"
	RateLimitBackendRedis = "redis"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	// WebhookSecret is the environment-level fallback signing secret. The
	// webhook_config row takes precedence when present.
	WebhookSecret           string        `mapstructure:"BOOKING_WEBHOOK_SECRET"`
	WebhookPath             string        `mapstructure:"WEBHOOK_PATH"`
	WebhookRateLimit        int           `mapstructure:"WEBHOOK_RATE_LIMIT"`
	WebhookRateWindow       time.Duration `mapstructure:"WEBHOOK_RATE_WINDOW"`
	WebhookRateLimitBackend string        `mapstructure:"WEBHOOK_RATE_LIMIT_BACKEND"`
	WebhookBodyLimit        string        `mapstructure:"WEBHOOK_BODY_LIMIT"`
	DefaultClinicianRole    string        `mapstructure:"DEFAULT_CLINICIAN_ROLE"`
	MetricsEnabled          bool          `mapstructure:"METRICS_ENABLED"`
}

// newViper reads the environment and an optional .env file in the working
// directory, environment taking precedence.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("WEBHOOK_PATH", "/api/webhooks/booking")
	v.SetDefault("WEBHOOK_RATE_LIMIT", 100)
	v.SetDefault("WEBHOOK_RATE_WINDOW", "60s")
	v.SetDefault("WEBHOOK_RATE_LIMIT_BACKEND", RateLimitBackendAudit)
	v.SetDefault("WEBHOOK_BODY_LIMIT", "1M")
	v.SetDefault("DEFAULT_CLINICIAN_ROLE", "admin")
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
		"BOOKING_WEBHOOK_SECRET", "WEBHOOK_PATH",
		"WEBHOOK_RATE_LIMIT", "WEBHOOK_RATE_WINDOW", "WEBHOOK_RATE_LIMIT_BACKEND",
		"WEBHOOK_BODY_LIMIT", "DEFAULT_CLINICIAN_ROLE", "METRICS_ENABLED",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()
	return v
}

func Load() (*Config, error) {
	v := newViper()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WebhookSecret == "" {
		log.Println("WARNING: BOOKING_WEBHOOK_SECRET is not set.")
		log.Println("WARNING: Booking webhooks are rejected until a secret is stored in webhook_config.")
	}

	return cfg, nil
}

// WebhookSecret returns BOOKING_WEBHOOK_SECRET resolved the same way Load
// resolves it. Unlike Load it does not require DATABASE_URL.
func WebhookSecret() string {
	return newViper().GetString("BOOKING_WEBHOOK_SECRET")
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the webhook settings can produce a working pipeline.
// A missing signing secret is not an error here: verification fails closed
// per request, and the secret may be stored in the database later.
func (c *Config) Validate() error {
	if c.WebhookRateLimit <= 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT must be positive, got %d", c.WebhookRateLimit)
	}
	if c.WebhookRateWindow <= 0 {
		return fmt.Errorf("WEBHOOK_RATE_WINDOW must be positive, got %s", c.WebhookRateWindow)
	}

	switch c.WebhookRateLimitBackend {
	case RateLimitBackendAudit:
	case RateLimitBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when WEBHOOK_RATE_LIMIT_BACKEND is %q", RateLimitBackendRedis)
		}
	default:
		return fmt.Errorf("WEBHOOK_RATE_LIMIT_BACKEND must be %q or %q, got %q",
			RateLimitBackendAudit, RateLimitBackendRedis, c.WebhookRateLimitBackend)
	}

	if c.WebhookPath == "" || c.WebhookPath[0] != '/' {
		return fmt.Errorf("WEBHOOK_PATH must start with '/', got %q", c.WebhookPath)
	}
	if c.DefaultClinicianRole == "" {
		return fmt.Errorf("DEFAULT_CLINICIAN_ROLE must not be empty")
	}
	return nil
}
