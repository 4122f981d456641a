// Package config loads gateway settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/pos-gateway/internal/pos"
)

// Config is the full runtime configuration.
type Config struct {
	App      AppConfig
	POS      POSConfig
	Square   SquareConfig
	Clover   CloverConfig
	NCR      NCRConfig
	Stripe   StripeConfig
	Tenants  TenantConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
}

// AppConfig holds process level settings.
type AppConfig struct {
	Env                string
	Port               int
	LogLevel           string
	RateLimitPerMinute int
}

// POSConfig holds settings shared by every vendor.
type POSConfig struct {
	Vendor          string
	DefaultCurrency string
	HTTPTimeout     time.Duration
}

// SquareConfig holds single-tenant Square credentials and webhook settings.
type SquareConfig struct {
	AccessToken            string
	LocationID             string
	Environment            string
	WebhookSignatureKey    string
	WebhookNotificationURL string
}

// CloverConfig holds single-tenant Clover credentials.
type CloverConfig struct {
	APIKey          string
	MerchantID      string
	Sandbox         bool
	APIURL          string
	SandboxURL      string
	WebhookAuthCode string
}

// NCRConfig holds single-tenant NCR credentials.
type NCRConfig struct {
	APIURL       string
	AccessKey    string
	SecretKey    string
	Organization string
	LocationID   string
}

// StripeConfig holds the Stripe API key.
type StripeConfig struct {
	SecretKey string
	APIURL    string
}

// TenantConfig controls how restaurant credentials are resolved.
type TenantConfig struct {
	File          string
	CacheDir      string
	CacheTTL      time.Duration
	EncryptionKey string
}

// DatabaseConfig holds the optional Postgres DSN.
type DatabaseConfig struct {
	URL string
}

// KafkaConfig holds the optional status event stream settings.
type KafkaConfig struct {
	Brokers          []string
	OrderStatusTopic string
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// Load reads the environment (and a .env file when present), applies
// defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}
	cfg := &Config{}

	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8000, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)
	cfg.App.RateLimitPerMinute = ldr.getInt("RATE_LIMIT_PER_MINUTE", 120, false)

	cfg.POS.Vendor = strings.ToLower(ldr.getString("POS_TYPE", pos.VendorSquare, false))
	cfg.POS.DefaultCurrency = strings.ToUpper(ldr.getString("DEFAULT_CURRENCY", pos.DefaultCurrency, false))
	cfg.POS.HTTPTimeout = ldr.getSeconds("VENDOR_HTTP_TIMEOUT_SECONDS", 30)

	cfg.Square.AccessToken = ldr.getString("SQUARE_ACCESS_TOKEN", "", false)
	cfg.Square.LocationID = ldr.getString("SQUARE_LOCATION_ID", "", false)
	cfg.Square.Environment = ldr.getString("SQUARE_ENVIRONMENT", pos.EnvironmentSandbox, false)
	cfg.Square.WebhookSignatureKey = ldr.getString("SQUARE_WEBHOOK_SIGNATURE_KEY", "", false)
	cfg.Square.WebhookNotificationURL = ldr.getString("SQUARE_WEBHOOK_URL", "", false)

	cfg.Clover.APIKey = ldr.getString("CLOVER_API_KEY", "", false)
	cfg.Clover.MerchantID = ldr.getString("CLOVER_MERCHANT_ID", "", false)
	cfg.Clover.Sandbox = ldr.getBool("CLOVER_SANDBOX", true, false)
	cfg.Clover.APIURL = ldr.getString("CLOVER_API_URL", "", false)
	cfg.Clover.SandboxURL = ldr.getString("CLOVER_SANDBOX_URL", "", false)
	cfg.Clover.WebhookAuthCode = ldr.getString("CLOVER_WEBHOOK_AUTH_CODE", "", false)

	cfg.NCR.APIURL = ldr.getString("NCR_API_URL", "", false)
	cfg.NCR.AccessKey = ldr.getString("NCR_ACCESS_KEY", "", false)
	cfg.NCR.SecretKey = ldr.getString("NCR_SECRET_KEY", "", false)
	cfg.NCR.Organization = ldr.getString("NCR_ORGANIZATION", "", false)
	cfg.NCR.LocationID = ldr.getString("NCR_LOCATION_ID", "", false)

	cfg.Stripe.SecretKey = ldr.getString("STRIPE_SECRET_KEY", "", false)
	cfg.Stripe.APIURL = ldr.getString("STRIPE_API_URL", "", false)

	cfg.Tenants.File = ldr.getString("TENANTS_FILE", "", false)
	cfg.Tenants.CacheDir = ldr.getString("TENANT_CACHE_DIR", "", false)
	cfg.Tenants.CacheTTL = ldr.getSeconds("TENANT_CACHE_TTL_SECONDS", 300)
	cfg.Tenants.EncryptionKey = ldr.getString("TOKEN_ENCRYPTION_KEY", "", false)

	cfg.Database.URL = ldr.getString("DATABASE_URL", "", false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.OrderStatusTopic = ldr.getString("KAFKA_ORDER_STATUS_TOPIC", "pos.order-status", cfg.Kafka.Enabled())

	switch cfg.POS.Vendor {
	case pos.VendorSquare, pos.VendorClover, pos.VendorNCR, pos.VendorMock:
	default:
		ldr.addError(fmt.Sprintf("POS_TYPE %q is not supported", cfg.POS.Vendor))
	}
	if cfg.App.RateLimitPerMinute < 0 {
		ldr.addError("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AdapterConfig builds the single-tenant adapter config for vendor. Missing
// credentials are left empty; adapter construction reports them.
func (c *Config) AdapterConfig(vendor string) pos.AdapterConfig {
	base := pos.AdapterConfig{
		Vendor:      vendor,
		Currency:    c.POS.DefaultCurrency,
		HTTPTimeout: c.POS.HTTPTimeout,
	}
	switch vendor {
	case pos.VendorSquare:
		base.AccessToken = c.Square.AccessToken
		base.LocationID = c.Square.LocationID
		base.Environment = c.Square.Environment
	case pos.VendorClover:
		base.AccessToken = c.Clover.APIKey
		base.MerchantID = c.Clover.MerchantID
		base.Environment = pos.EnvironmentProduction
		base.BaseURL = c.Clover.APIURL
		if c.Clover.Sandbox {
			base.Environment = pos.EnvironmentSandbox
			base.BaseURL = c.Clover.SandboxURL
		}
	case pos.VendorNCR:
		base.AccessToken = c.NCR.AccessKey
		base.SecretKey = c.NCR.SecretKey
		base.OrganizationID = c.NCR.Organization
		base.LocationID = c.NCR.LocationID
		base.BaseURL = c.NCR.APIURL
		base.Environment = pos.EnvironmentProduction
	case pos.VendorMock:
		base.AccessToken = "mock"
		base.LocationID = "mock-location"
	}
	return base
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) lookup(key string, required bool) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return "", false
	}
	return val, true
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := l.lookup(key, required); ok {
		return val
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getSeconds(key string, def int) time.Duration {
	secs := l.getInt(key, def, false)
	if secs <= 0 {
		l.addError(fmt.Sprintf("%s must be positive", key))
		secs = def
	}
	return time.Duration(secs) * time.Second
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
