package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (VENDORA_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL     string        `usage:"PostgreSQL connection URL (VENDORA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	AMQPURL         string        `usage:"RabbitMQ connection URL; empty disables event publishing" flag:"amqp-url"`
	DefaultCurrency string        `default:"USD" usage:"Currency for new carts" flag:"default-currency"`
	CartTTL         time.Duration `default:"72h" usage:"Idle time before a cart is abandoned" flag:"cart-ttl"`
	ReservationTTL  time.Duration `default:"15m" usage:"Time a stock reservation is held without payment" flag:"reservation-ttl"`
	SweepInterval   time.Duration `default:"1m" usage:"Interval between expired-reservation sweeps" flag:"sweep-interval"`
	PlatformFeeRate string        `default:"0.15" usage:"Default commission rate as a fraction" flag:"platform-fee-rate"`
	TaxRate         string        `default:"8.5" usage:"Flat tax percentage applied to taxable subtotals" flag:"tax-rate"`
	RateLimit       RateLimitConfig
	Graceful        GracefulConfig
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "VENDORA",
		Files:     []string{"config.yaml", "/etc/vendora/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set VENDORA_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the VENDORA_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.AMQPURL == "" {
		if v := os.Getenv("AMQP_URL"); v != "" {
			c.AMQPURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
