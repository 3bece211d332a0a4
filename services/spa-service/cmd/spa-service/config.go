package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/spabook/libs/config"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"spa-service"`
	Port        string `env:"PORT" envDefault:"8080"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	BusinessTimezone     string `env:"BUSINESS_TIMEZONE" envDefault:"UTC"`
	SlotStepMinutes      int    `env:"SLOT_STEP_MINUTES" envDefault:"30"`
	SearchHorizonDays    int    `env:"SEARCH_HORIZON_DAYS" envDefault:"30"`
	MinLeadMinutes       int    `env:"BOOKING_MIN_LEAD_MINUTES" envDefault:"60"`
	MaxAheadDays         int    `env:"BOOKING_MAX_AHEAD_DAYS" envDefault:"0"`
	HonorBlackoutsInNext bool   `env:"NEXT_SLOT_HONOR_BLACKOUTS" envDefault:"true"`

	KafkaBrokers    string        `env:"KAFKA_BROKERS"`
	OutboxPollEvery time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	RateLimitBooking  int           `env:"RATE_LIMIT_BOOKING" envDefault:"5"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitFailOpen bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`

	SMTPHost        string  `env:"SMTP_HOST"`
	SMTPPort        string  `env:"SMTP_PORT" envDefault:"25"`
	SMTPFrom        string  `env:"SMTP_FROM" envDefault:"bookings@spa.local"`
	SMSWebhookURL   string  `env:"SMS_WEBHOOK_URL"`
	SMSWebhookToken string  `env:"SMS_WEBHOOK_TOKEN"`
	NotifyPerSecond float64 `env:"NOTIFY_PER_SECOND" envDefault:"5"`
	NotifyBurst     int     `env:"NOTIFY_BURST" envDefault:"5"`

	JWTSecret         string        `env:"JWT_SECRET"`
	AdminEmail        string        `env:"ADMIN_EMAIL"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	AdminTokenTTL     time.Duration `env:"ADMIN_TOKEN_TTL" envDefault:"8h"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowedHeaders []string      `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Authorization,Content-Type,X-Request-Id"`
	CORSMaxAge         time.Duration `env:"CORS_MAX_AGE" envDefault:"10m"`

	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	MaxBodyBytes   int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	location *time.Location
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if err := config.ValidatePort("PORT", c.Port); err != nil {
		errs = append(errs, err)
	}
	if err := config.ValidatePort("GRPC_PORT", c.GRPCPort); err != nil {
		errs = append(errs, err)
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.BusinessTimezone))
	if err != nil {
		errs = append(errs, fmt.Errorf("BUSINESS_TIMEZONE: %w", err))
	}
	c.location = loc
	if c.SlotStepMinutes <= 0 || c.SlotStepMinutes > 24*60 {
		errs = append(errs, fmt.Errorf("SLOT_STEP_MINUTES must be between 1 and 1440 (got %d)", c.SlotStepMinutes))
	}
	if c.SearchHorizonDays <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_HORIZON_DAYS must be positive (got %d)", c.SearchHorizonDays))
	}
	if c.MinLeadMinutes <= 0 {
		errs = append(errs, fmt.Errorf("BOOKING_MIN_LEAD_MINUTES must be positive (got %d)", c.MinLeadMinutes))
	}
	if c.MaxAheadDays < 0 {
		errs = append(errs, fmt.Errorf("BOOKING_MAX_AHEAD_DAYS must not be negative (got %d)", c.MaxAheadDays))
	}
	if c.SMTPHost != "" {
		if err := config.ValidatePort("SMTP_PORT", c.SMTPPort); err != nil {
			errs = append(errs, err)
		}
	}
	// Admin login is all or nothing.
	if c.AdminEmail != "" || c.AdminPasswordHash != "" {
		if c.AdminEmail == "" || c.AdminPasswordHash == "" || c.JWTSecret == "" {
			errs = append(errs, errors.New("ADMIN_EMAIL, ADMIN_PASSWORD_HASH and JWT_SECRET must be set together"))
		}
	}
	return errors.Join(errs...)
}

func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
