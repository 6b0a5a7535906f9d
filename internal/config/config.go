package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	App
	Razorpay
	Database
	Redis
	Kafka
	Nats
	Telemetry
	RateLimit
	Webhook
}

type App struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	// TrustedProxies may set X-Forwarded-For. Empty means the client IP is
	// always the connection's remote address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type Razorpay struct {
	KeyID         string `env:"RAZORPAY_KEY_ID,required"`
	KeySecret     string `env:"RAZORPAY_KEY_SECRET,required"`
	WebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET,required"`
	// Source account debited by payouts.
	PayoutAccountNumber string        `env:"RAZORPAYX_ACCOUNT_NUMBER"`
	Timeout             time.Duration `env:"RAZORPAY_TIMEOUT" envDefault:"30s"`
}

type Database struct {
	URL string `env:"DATABASE_URL"`
}

type Redis struct {
	URL string `env:"REDIS_URL"`
}

type Kafka struct {
	Brokers          string `env:"KAFKA_BROKERS"`
	PayoutStateTopic string `env:"KAFKA_PAYOUT_STATE_TOPIC" envDefault:"payout.state.changed"`
}

type Nats struct {
	URL           string `env:"NATS_URL"`
	WebhookPrefix string `env:"NATS_WEBHOOK_SUBJECT_PREFIX" envDefault:"razorpay.webhook"`
}

type Telemetry struct {
	Enabled        bool   `env:"TRACING_ENABLED" envDefault:"true"`
	JaegerEndpoint string `env:"JAEGER_ENDPOINT" envDefault:"jaeger:4318"`
}

type RateLimit struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

type Webhook struct {
	DedupTTL time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"24h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" || cfg.Razorpay.WebhookSecret == "" {
		return nil, fmt.Errorf("razorpay key id, key secret and webhook secret must not be empty")
	}
	if cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got rps=%v burst=%d", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	return &cfg, nil
}

func (k Kafka) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (a App) IsProduction() bool {
	return a.Env == "production"
}
