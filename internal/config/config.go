package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "GASBILLING"

// Config is the service configuration.
type Config struct {
	HTTP  HTTPConfig  `envconfig:"HTTP"`
	DB    DBConfig    `envconfig:"DB"`
	Redis RedisConfig `envconfig:"REDIS"`
	Auth  AuthConfig  `envconfig:"AUTH"`
	Log   LogConfig   `envconfig:"LOG"`

	// BillingFile is an optional YAML file with billing settings.
	BillingFile string        `envconfig:"BILLING_CONFIG"`
	Billing     BillingConfig `ignored:"true"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type DBConfig struct {
	DSN             string        `envconfig:"DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"false"`
}

// RedisConfig enables the cross-replica run lease when URL is set.
type RedisConfig struct {
	URL string `envconfig:"URL"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
	Disabled  bool   `envconfig:"DISABLED" default:"false"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
	Output string `envconfig:"OUTPUT" default:"stdout"`
}

// BillingConfig tunes billing runs. Values come from defaults, then the
// YAML file, then GASBILLING_BILLING_* variables.
type BillingConfig struct {
	TaxCode     string         `yaml:"tax_code" envconfig:"TAX_CODE"`
	Concurrency int            `yaml:"concurrency" envconfig:"CONCURRENCY"`
	RunTimeout  time.Duration  `yaml:"run_timeout" envconfig:"RUN_TIMEOUT"`
	LeaseTTL    time.Duration  `yaml:"lease_ttl" envconfig:"LEASE_TTL"`
	Currency    string         `yaml:"currency" envconfig:"CURRENCY"`
	Schedule    ScheduleConfig `yaml:"schedule" envconfig:"SCHEDULE"`
	WebhookURL  string         `yaml:"webhook_url" envconfig:"WEBHOOK_URL"`
}

// ScheduleConfig runs the previous month on DayOfMonth at At (UTC, HH:MM).
type ScheduleConfig struct {
	Enabled    bool   `yaml:"enabled" envconfig:"ENABLED"`
	DayOfMonth int    `yaml:"day_of_month" envconfig:"DAY_OF_MONTH"`
	At         string `yaml:"at" envconfig:"AT"`
}

// DefaultBilling returns the billing defaults.
func DefaultBilling() BillingConfig {
	return BillingConfig{
		TaxCode:     "IVA",
		Concurrency: 4,
		RunTimeout:  10 * time.Minute,
		LeaseTTL:    15 * time.Minute,
		Currency:    "EUR",
		Schedule: ScheduleConfig{
			DayOfMonth: 1,
			At:         "02:00",
		},
	}
}

// Load reads the configuration from the environment and the billing file.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("config: GASBILLING_DB_DSN is required")
	}
	billing, err := LoadBilling(cfg.BillingFile)
	if err != nil {
		return nil, err
	}
	cfg.Billing = billing
	if !cfg.Auth.Disabled && cfg.Auth.JWTSecret == "" {
		return nil, errors.New("config: GASBILLING_AUTH_JWT_SECRET is required unless auth is disabled")
	}
	return &cfg, nil
}

// LoadBilling applies defaults, the optional YAML file and env overrides.
func LoadBilling(path string) (BillingConfig, error) {
	cfg := DefaultBilling()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read billing config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse billing config: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix+"_BILLING", &cfg); err != nil {
		return cfg, fmt.Errorf("parsing billing env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks billing settings.
func (c BillingConfig) Validate() error {
	if c.Concurrency < 1 {
		return errors.New("billing config: concurrency must be >= 1")
	}
	if c.RunTimeout <= 0 {
		return errors.New("billing config: run_timeout must be > 0")
	}
	if c.LeaseTTL < c.RunTimeout {
		return errors.New("billing config: lease_ttl must cover run_timeout")
	}
	if c.Schedule.Enabled {
		if c.Schedule.DayOfMonth < 1 || c.Schedule.DayOfMonth > 28 {
			return errors.New("billing config: schedule.day_of_month must be within 1-28")
		}
		if _, err := time.Parse("15:04", c.Schedule.At); err != nil {
			return fmt.Errorf("billing config: schedule.at must be HH:MM: %w", err)
		}
	}
	return nil
}
