package config

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/flexprice/flexprice/internal/types"
	"github.com/flexprice/flexprice/internal/validator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration is the full, validated process configuration. It is loaded
// once at startup and passed explicitly everywhere; there is no global.
type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Auth       AuthConfig       `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	ClickHouse ClickHouseConfig `validate:"omitempty"`
	Logging    LoggingConfig    `validate:"required"`
	RateLimit  RateLimitConfig  `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Webhook    WebhookConfig    `validate:"required"`
	Dunning    DunningConfig    `validate:"required"`
	Scheduler  SchedulerConfig  `validate:"required"`
	Providers  ProvidersConfig  `validate:"omitempty"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

// AuthConfig configures both API-key header auth and customer-portal JWTs.
type AuthConfig struct {
	APIKeyHeader    string `mapstructure:"api_key_header" default:"Authorization"`
	OrgHeader       string `mapstructure:"org_header" default:"X-Organization-Id"`
	PortalSecret    string `mapstructure:"portal_secret" validate:"required"`
	AllowDefaultOrg bool   `mapstructure:"allow_default_org"` // non-production fallback only
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password" validate:"required"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"20"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User, c.Password, c.DBName, c.Host, c.Port, c.SSLMode,
	)
}

// ClickHouseConfig configures the optional columnar mirror of the event
// store. When Enabled is false the relational store is authoritative and
// aggregation queries never consult ClickHouse.
type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	TLS      bool   `mapstructure:"tls"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func (c ClickHouseConfig) GetClientOptions() *clickhouse.Options {
	options := &clickhouse.Options{
		Addr: []string{c.Address},
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}
	if c.TLS {
		options.TLS = &tls.Config{}
	}
	return options
}

// RateLimitConfig sets the default per-tenant sliding-window ingestion quota.
type RateLimitConfig struct {
	EventsPerMinute int    `mapstructure:"events_per_minute" default:"1000" validate:"required"`
	Window          string `mapstructure:"window" default:"1m" validate:"required"`
}

// BillingConfig carries tenant-independent billing defaults.
type BillingConfig struct {
	InvoiceNumberPrefix       string `mapstructure:"invoice_number_prefix" default:"INV"`
	DefaultGracePeriodDays    int    `mapstructure:"default_grace_period_days" default:"0"`
	DefaultNetPaymentTermDays int    `mapstructure:"default_net_payment_term_days" default:"30"`
}

// WebhookConfig configures outbound signed-webhook delivery.
type WebhookConfig struct {
	Enabled         bool   `mapstructure:"enabled" default:"true"`
	MaxRetries      int    `mapstructure:"max_retries" default:"8"`
	BaseBackoff     string `mapstructure:"base_backoff" default:"30s"`
	MaxBackoff      string `mapstructure:"max_backoff" default:"30m"`
	DeliveryTimeout string `mapstructure:"delivery_timeout" default:"15s"`
	Workers         int    `mapstructure:"workers" default:"8"`
}

// DunningConfig sets cross-campaign defaults for the dunning controller.
type DunningConfig struct {
	TickInterval string `mapstructure:"tick_interval" default:"1h"`
}

// SchedulerConfig controls the cron cadence of the four periodic tasks.
type SchedulerConfig struct {
	Enabled               bool   `mapstructure:"enabled" default:"true"`
	PeriodicInvoicingCron string `mapstructure:"periodic_invoicing_cron" default:"*/15 * * * *"`
	TrialExpiryCron       string `mapstructure:"trial_expiry_cron" default:"*/15 * * * *"`
	DunningTickCron       string `mapstructure:"dunning_tick_cron" default:"0 * * * *"`
	WebhookRetryCron      string `mapstructure:"webhook_retry_cron" default:"* * * * *"`
	Workers               int    `mapstructure:"workers" default:"16"`
}

// ProvidersConfig carries credentials for the narrow payment-provider adapter
// interface. The providers themselves are external collaborators; only the
// keys needed to construct their SDK clients live here.
type ProvidersConfig struct {
	StripeSecretKey string `mapstructure:"stripe_secret_key"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("BXB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return &cfg, nil
}

func (c Configuration) Validate() error {
	return validator.ValidateRequest(c)
}

// GetDefaultConfig returns a configuration suitable for local development and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		RateLimit:  RateLimitConfig{EventsPerMinute: 1000, Window: "1m"},
		Billing:    BillingConfig{InvoiceNumberPrefix: "INV", DefaultNetPaymentTermDays: 30},
		Webhook:    WebhookConfig{Enabled: true, MaxRetries: 8, BaseBackoff: "30s", MaxBackoff: "30m", DeliveryTimeout: "15s", Workers: 8},
		Dunning:    DunningConfig{TickInterval: "1h"},
		Scheduler:  SchedulerConfig{Enabled: true, Workers: 16},
	}
}
