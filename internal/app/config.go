package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing" flag:"api-key-pepper"`
	Checkout     CheckoutConfig
	Gateway      GatewayConfig
	Carrier      CarrierConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CheckoutConfig holds the pricing policy.
type CheckoutConfig struct {
	FreeShippingThreshold string `default:"50" usage:"Subtotal at or above which shipping is free" flag:"free-shipping-threshold"`
	OfficeShippingPrice   string `default:"4.99" usage:"Shipping price for pickup-office delivery" flag:"office-shipping-price"`
	AddressShippingPrice  string `default:"6.99" usage:"Shipping price for address delivery" flag:"address-shipping-price"`
	DefaultCurrency       string `default:"EUR" usage:"Currency assumed when the request names none" flag:"default-currency"`
}

// GatewayConfig holds the card payment gateway connection settings.
type GatewayConfig struct {
	BaseURL       string        `usage:"Payment gateway base URL" flag:"gateway-url"`
	APIKey        string        `usage:"Payment gateway API key" flag:"gateway-api-key"`
	WebhookSecret string        `usage:"HMAC secret for webhook signatures" flag:"gateway-webhook-secret"`
	Timeout       time.Duration `default:"10s" usage:"Gateway request timeout" flag:"gateway-timeout"`
}

// CarrierConfig holds the shipping carrier connection settings.
type CarrierConfig struct {
	BaseURL string        `usage:"Carrier base URL" flag:"carrier-url"`
	APIKey  string        `usage:"Carrier API key" flag:"carrier-api-key"`
	Timeout time.Duration `default:"15s" usage:"Carrier request timeout" flag:"carrier-timeout"`
}

// KafkaConfig holds the order event stream settings. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses (empty disables events)" flag:"kafka-brokers"`
	Topic   string   `default:"order-events" usage:"Topic for order lifecycle events" flag:"kafka-topic"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-provided defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform environment variables (Railway, Render,
// Heroku) that use standard names like DATABASE_URL and PORT onto the
// CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// PricingPolicy converts the string money amounts into the checkout policy.
// Amounts are kept as strings in the config layer so aconfig can bind them
// from env and flags without a custom decimal decoder.
func (c *CheckoutConfig) PricingPolicy() (order.Config, error) {
	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil {
		return order.Config{}, errors.Wrap(err, "parse free shipping threshold")
	}
	office, err := decimal.NewFromString(c.OfficeShippingPrice)
	if err != nil {
		return order.Config{}, errors.Wrap(err, "parse office shipping price")
	}
	address, err := decimal.NewFromString(c.AddressShippingPrice)
	if err != nil {
		return order.Config{}, errors.Wrap(err, "parse address shipping price")
	}

	return order.Config{
		FreeShippingThreshold: threshold,
		ShippingPrices: map[shipping.Method]decimal.Decimal{
			shipping.MethodOffice:  office,
			shipping.MethodAddress: address,
		},
		DefaultCurrency: c.DefaultCurrency,
	}, nil
}
