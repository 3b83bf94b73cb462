package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MaxRequestBodySize int64         `envconfig:"MAX_REQUEST_BODY_SIZE" default:"1048576"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment     bool          `envconfig:"LOG_DEVELOPMENT" default:"false"`

	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:8081"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"5s"`

	TaxRate     string `envconfig:"TAX_RATE" default:"0.18"`
	ShippingFee string `envconfig:"SHIPPING_FEE" default:"50"`
	Currency    string `envconfig:"CURRENCY" default:"INR"`

	PaymentBaseURL   string        `envconfig:"PAYMENT_BASE_URL" default:"https://api.razorpay.com"`
	PaymentScriptURL string        `envconfig:"PAYMENT_SCRIPT_URL" default:"https://checkout.razorpay.com/v1/checkout.js"`
	PaymentKeyID     string        `envconfig:"PAYMENT_KEY_ID" default:"rzp_test_key"`
	PaymentKeySecret string        `envconfig:"PAYMENT_KEY_SECRET"`
	PaymentTimeout   time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	StoreName        string        `envconfig:"STORE_NAME" default:"SalesSavvy Store"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"salessavvy"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	ReceiptTTL    time.Duration `envconfig:"RECEIPT_TTL" default:"24h"`
	PaymentDedupe time.Duration `envconfig:"PAYMENT_DEDUPE_TTL" default:"72h"`

	OutboxDriver       string        `envconfig:"OUTBOX_DRIVER" default:"sqlite"`
	OutboxDSN          string        `envconfig:"OUTBOX_DSN" default:"file:outbox.db"`
	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"10s"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5"`
	KafkaBrokers       string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopic         string        `envconfig:"KAFKA_TOPIC" default:"storefront-orders"`

	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"2h"`
}

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := cfg.Tax(); err != nil {
		return nil, err
	}
	if _, err := cfg.Shipping(); err != nil {
		return nil, err
	}
	switch cfg.OutboxDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported OUTBOX_DRIVER %q", cfg.OutboxDriver)
	}
	return &cfg, nil
}

func (c *Config) Tax() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.TaxRate)
	if err != nil || v.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid TAX_RATE %q", c.TaxRate)
	}
	return v, nil
}

func (c *Config) Shipping() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(c.ShippingFee)
	if err != nil || v.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid SHIPPING_FEE %q", c.ShippingFee)
	}
	return v, nil
}

func (c *Config) Brokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
