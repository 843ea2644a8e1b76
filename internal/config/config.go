package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mail transports understood by MAIL_TRANSPORT.
const (
	MailLog  = "log"
	MailSMTP = "smtp"
	MailAMQP = "amqp"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	CronSecret     string        `mapstructure:"CRON_SECRET"`
	ClinicTimezone string        `mapstructure:"CLINIC_TIMEZONE"`
	ReminderCron   string        `mapstructure:"REMINDER_CRON_SPEC"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	AccountTTL     time.Duration `mapstructure:"ACCOUNT_CACHE_TTL"`
	MailTransport  string        `mapstructure:"MAIL_TRANSPORT"`
	MailFrom       string        `mapstructure:"MAIL_FROM"`
	MailTimeout    time.Duration `mapstructure:"MAIL_TIMEOUT"`
	SMTPHost       string        `mapstructure:"SMTP_HOST"`
	SMTPPort       int           `mapstructure:"SMTP_PORT"`
	SMTPUsername   string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword   string        `mapstructure:"SMTP_PASSWORD"`
	AMQPURL        string        `mapstructure:"AMQP_URL"`
	AMQPMailQueue  string        `mapstructure:"AMQP_MAIL_QUEUE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_SIGNING_KEY", "CORS_ORIGINS", "CRON_SECRET", "CLINIC_TIMEZONE",
	"REMINDER_CRON_SPEC", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "ACCOUNT_CACHE_TTL",
	"MAIL_TRANSPORT", "MAIL_FROM", "MAIL_TIMEOUT", "SMTP_HOST", "SMTP_PORT",
	"SMTP_USERNAME", "SMTP_PASSWORD", "AMQP_URL", "AMQP_MAIL_QUEUE",
}

// Load reads configuration from an optional .env file and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_ISSUER", "clinic-booking")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("ACCOUNT_CACHE_TTL", "5m")
	v.SetDefault("MAIL_TRANSPORT", MailLog)
	v.SetDefault("MAIL_FROM", "no-reply@clinic.local")
	v.SetDefault("MAIL_TIMEOUT", "10s")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("AMQP_MAIL_QUEUE", "mail.outbound")

	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.MailTransport = strings.ToLower(strings.TrimSpace(cfg.MailTransport))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Appointment dates and times are wall
// clock values in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.ClinicTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.ClinicTimezone)
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}

	switch c.MailTransport {
	case MailLog:
	case MailSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_TRANSPORT is %q", MailSMTP)
		}
	case MailAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when MAIL_TRANSPORT is %q", MailAMQP)
		}
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be %q, %q or %q, got %q", MailLog, MailSMTP, MailAMQP, c.MailTransport)
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
