package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/VictorEZCodes/clothing-shop/internal/provider/exchangerate"
	pkgconfig "github.com/VictorEZCodes/clothing-shop/pkg/config"
	"github.com/VictorEZCodes/clothing-shop/pkg/database"
	"github.com/VictorEZCodes/clothing-shop/pkg/middleware"
	"github.com/VictorEZCodes/clothing-shop/pkg/tracing"
)

// ServiceName identifies this binary in logs, metrics and traces.
const ServiceName = "clothing-shop"

// Payment providers.
const (
	PaymentProviderMock     = "mock"
	PaymentProviderPaystack = "paystack"
)

// Notification senders.
const (
	SenderMock = "mock"
	SenderSMTP = "smtp"
)

// Config holds all configuration for the order service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,https://ecommclothingshop.netlify.app" envSeparator:","`
	JWTSecret          string   `env:"JWT_SECRET,required"`

	// Rate limits per caller. RPS 0 disables a limiter.
	RateLimitRPS           float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst         int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"0.5"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"5"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"shop"`
	PostgresPass     string `env:"POSTGRES_PASSWORD" envDefault:"shop"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"clothing_shop"`
	PostgresSSL      string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"20"`
	PostgresMinConns int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	SlowQueryMS      int    `env:"SLOW_QUERY_MS" envDefault:"200"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 7 days)
	CartTTLHours       int `env:"CART_TTL_HOURS" envDefault:"168"`
	CheckoutTTLMinutes int `env:"CHECKOUT_TTL_MINUTES" envDefault:"30"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Exchange rate
	RateFeedURL        string `env:"RATE_FEED_URL"`
	RateSourceCurrency string `env:"RATE_SOURCE_CURRENCY" envDefault:"USD"`
	SettlementCurrency string `env:"SETTLEMENT_CURRENCY" envDefault:"NGN"`
	RateRefreshMinutes int    `env:"RATE_REFRESH_MINUTES" envDefault:"60"`

	// Payments
	PaymentProvider     string `env:"PAYMENT_PROVIDER" envDefault:"mock"`
	PaystackSecretKey   string `env:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL     string `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	PaystackCallbackURL string `env:"PAYSTACK_CALLBACK_URL"`

	// Notifications
	NotifySender         string `env:"NOTIFY_SENDER" envDefault:"mock"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string `env:"SMTP_USER"`
	SMTPPassword         string `env:"SMTP_PASSWORD"`
	EmailFrom            string `env:"EMAIL_FROM" envDefault:"Clothing Shop <orders@clothing-shop.local>"`
	AdminEmail           string `env:"ADMIN_EMAIL" envDefault:"admin@clothing-shop.local"`
	NotifyDedupeTTLHours int    `env:"NOTIFY_DEDUPE_TTL_HOURS" envDefault:"72"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	OTELInsecure   bool    `env:"OTEL_INSECURE" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load service config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.RateSourceCurrency = strings.ToUpper(strings.TrimSpace(c.RateSourceCurrency))
	c.SettlementCurrency = strings.ToUpper(strings.TrimSpace(c.SettlementCurrency))
	c.PaymentProvider = strings.ToLower(strings.TrimSpace(c.PaymentProvider))
	c.NotifySender = strings.ToLower(strings.TrimSpace(c.NotifySender))
	if c.RateFeedURL == "" {
		c.RateFeedURL = exchangerate.DefaultBaseURL
	}
}

// validate rejects settings that cannot work together.
func (c *Config) validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 bytes"))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, errors.New("OTEL_SAMPLE_RATE must be between 0.0 and 1.0"))
	}
	if c.CartTTLHours <= 0 {
		errs = append(errs, errors.New("CART_TTL_HOURS must be positive"))
	}
	if c.CheckoutTTLMinutes <= 0 {
		errs = append(errs, errors.New("CHECKOUT_TTL_MINUTES must be positive"))
	}
	if c.RateLimitRPS < 0 || c.CheckoutRateLimitRPS < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.RateRefreshMinutes <= 0 {
		errs = append(errs, errors.New("RATE_REFRESH_MINUTES must be positive"))
	}
	for name, code := range map[string]string{
		"RATE_SOURCE_CURRENCY": c.RateSourceCurrency,
		"SETTLEMENT_CURRENCY":  c.SettlementCurrency,
	} {
		if len(code) != 3 {
			errs = append(errs, fmt.Errorf("%s must be a 3-letter currency code, got %q", name, code))
		}
	}
	if err := checkURL("RATE_FEED_URL", c.RateFeedURL); err != nil {
		errs = append(errs, err)
	}

	switch c.PaymentProvider {
	case PaymentProviderMock:
	case PaymentProviderPaystack:
		if c.PaystackSecretKey == "" {
			errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required when PAYMENT_PROVIDER=paystack"))
		}
		if err := checkURL("PAYSTACK_BASE_URL", c.PaystackBaseURL); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider))
	}

	switch c.NotifySender {
	case SenderMock:
	case SenderSMTP:
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when NOTIFY_SENDER=smtp"))
		}
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid SMTP port: %d", c.SMTPPort))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_SENDER %q", c.NotifySender))
	}
	if c.AdminEmail == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL is required"))
	}

	return errors.Join(errs...)
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Postgres returns the connection settings for database.NewPostgresPool.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	return pg
}

// Redis returns the connection settings for database.NewRedisClient.
func (c *Config) Redis() database.RedisConfig {
	r := database.DefaultRedisConfig()
	r.Addr = c.RedisAddr
	r.Password = c.RedisPass
	r.DB = c.RedisDB
	return r
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	t := tracing.DefaultConfig(ServiceName)
	t.Environment = c.Environment
	t.Enabled = c.OTELEnabled
	t.OTLPEndpoint = c.OTELEndpoint
	t.SampleRate = c.OTELSampleRate
	t.Insecure = c.OTELInsecure
	return t
}

// RateLimit is the per-caller limit for every /api route.
func (c *Config) RateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{Name: "api", RPS: c.RateLimitRPS, Burst: c.RateLimitBurst}
}

// CheckoutRateLimit is the stricter limit for starting and completing
// checkouts, which call the payment gateway.
func (c *Config) CheckoutRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{Name: "checkout", RPS: c.CheckoutRateLimitRPS, Burst: c.CheckoutRateLimitBurst}
}

func (c *Config) CartTTL() time.Duration     { return time.Duration(c.CartTTLHours) * time.Hour }
func (c *Config) CheckoutTTL() time.Duration { return time.Duration(c.CheckoutTTLMinutes) * time.Minute }
func (c *Config) RateRefreshInterval() time.Duration {
	return time.Duration(c.RateRefreshMinutes) * time.Minute
}
func (c *Config) NotifyDedupeTTL() time.Duration {
	return time.Duration(c.NotifyDedupeTTLHours) * time.Hour
}
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}
