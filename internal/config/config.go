package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address    string `mapstructure:"address"`
	Port       int    `mapstructure:"port"`
	Mode       string `mapstructure:"mode"`
	BaseURL    string `mapstructure:"base_url"`
	Production bool   `mapstructure:"production"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	TTLHours   int    `mapstructure:"ttl_hours"`
	CookieName string `mapstructure:"cookie_name"`
}

// TTL returns the session lifetime, 7 days unless configured.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.TTLHours) * time.Hour
}

type SecurityConfig struct {
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// StripeConfig holds the payment provider credentials. Prices maps plan
// identifiers to provider price ids; plans without one are priced inline.
type StripeConfig struct {
	SecretKey      string            `mapstructure:"secret_key"`
	WebhookSecret  string            `mapstructure:"webhook_secret"`
	PublishableKey string            `mapstructure:"publishable_key"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	Currency       string            `mapstructure:"currency"`
	Prices         map[string]string `mapstructure:"prices"`
}

// Timeout bounds a single provider call.
func (s StripeConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / console
}

type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"`
	Burst          int `mapstructure:"burst"`
}

type AppSubConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	Security  SecurityConfig  `mapstructure:"security"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	App       AppSubConfig    `mapstructure:"app"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.production", false)

	v.SetDefault("database.path", "data/childcare.db")
	v.SetDefault("database.log_mode", false)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "childcare-billing")
	v.SetDefault("session.ttl_hours", 168)
	v.SetDefault("session.cookie_name", "ccb_session")

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.encryption_key", "")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.publishable_key", "")
	v.SetDefault("stripe.timeout_seconds", 10)
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.prices", map[string]string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("rate_limit.login_per_minute", 10)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("app.page_size", 20)
}

// Load reads configuration from the given file path (e.g. "config.yaml").
// If path is empty, "config.yaml" in the working directory is used when it
// exists; otherwise defaults and environment variables apply.
// Environment overrides use the CCB_ prefix, e.g. CCB_STRIPE_SECRET_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CCB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("session.secret must be at least 32 characters"))
	}
	if c.Security.EncryptionKey == "" {
		errs = append(errs, errors.New("security.encryption_key is required"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("stripe.secret_key is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("stripe.webhook_secret is required"))
	}
	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	}
	return errors.Join(errs...)
}
