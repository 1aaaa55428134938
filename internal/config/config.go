// Package config loads the application configuration from a YAML file and
// environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Ethereum EthereumConfig `mapstructure:"ethereum"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents the HTTP API server configuration
type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

// EthereumConfig represents chain endpoint configuration
type EthereumConfig struct {
	Chain  string `mapstructure:"chain"`
	WSURL  string `mapstructure:"ws_url"`
	RPCURL string `mapstructure:"rpc_url"`
}

// PricingConfig represents price source configuration
type PricingConfig struct {
	NativeURL        string `mapstructure:"native_url"`
	TokenURL         string `mapstructure:"token_url"`
	NativeTTLSeconds int    `mapstructure:"native_ttl_seconds"`
	TokenTTLSeconds  int    `mapstructure:"token_ttl_seconds"`
}

// NativeTTL returns the native price cache TTL.
func (c PricingConfig) NativeTTL() time.Duration {
	return time.Duration(c.NativeTTLSeconds) * time.Second
}

// TokenTTL returns the token price cache TTL.
func (c PricingConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

// AlertsConfig represents alert qualification and delivery configuration
type AlertsConfig struct {
	USDThreshold float64 `mapstructure:"usd_threshold"`
	Backlog      int     `mapstructure:"backlog"`
}

// FeedConfig represents the pending-transaction feed configuration
type FeedConfig struct {
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `mapstructure:"reconnect_base_delay"`
}

// NotifyConfig represents notification channel configuration; empty sections
// leave the corresponding channel disabled.
type NotifyConfig struct {
	WebhookURL string         `mapstructure:"webhook_url"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
	Email      EmailConfig    `mapstructure:"email"`
	NATS       NATSConfig     `mapstructure:"nats"`
}

// TelegramConfig represents the messaging-bot channel
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Enabled reports whether the channel is fully configured.
func (c TelegramConfig) Enabled() bool { return c.BotToken != "" && c.ChatID != "" }

// EmailConfig represents the SMTP channel
type EmailConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Enabled reports whether the channel is fully configured.
func (c EmailConfig) Enabled() bool { return c.Host != "" && c.From != "" && len(c.To) > 0 }

// NATSConfig represents the NATS publish channel
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// Enabled reports whether the channel is fully configured.
func (c NATSConfig) Enabled() bool { return c.URL != "" }

// StorageConfig represents persistence configuration
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// LoggingConfig represents logger configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from the given file (optional) plus environment
// variables prefixed with MEMPOOL_SENTINEL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MEMPOOL_SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges that would otherwise fail deep inside a
// component at runtime.
func (c *Config) Validate() error {
	if c.Alerts.USDThreshold <= 0 {
		return fmt.Errorf("alerts.usd_threshold must be positive, got %v", c.Alerts.USDThreshold)
	}
	if c.Alerts.Backlog < 0 {
		return fmt.Errorf("alerts.backlog must not be negative, got %d", c.Alerts.Backlog)
	}
	if c.Feed.MaxReconnectAttempts < 1 {
		return fmt.Errorf("feed.max_reconnect_attempts must be at least 1, got %d", c.Feed.MaxReconnectAttempts)
	}
	if c.Feed.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("feed.reconnect_base_delay must be positive, got %v", c.Feed.ReconnectBaseDelay)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")

	v.SetDefault("ethereum.chain", "ethereum")
	v.SetDefault("ethereum.ws_url", "")
	v.SetDefault("ethereum.rpc_url", "http://localhost:8545")

	v.SetDefault("pricing.native_url", "")
	v.SetDefault("pricing.token_url", "")
	v.SetDefault("pricing.native_ttl_seconds", 120)
	v.SetDefault("pricing.token_ttl_seconds", 300)

	v.SetDefault("alerts.usd_threshold", 50000.0)
	v.SetDefault("alerts.backlog", 20)

	v.SetDefault("feed.max_reconnect_attempts", 10)
	v.SetDefault("feed.reconnect_base_delay", "1s")

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.nats.subject", "alerts.mempool")

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}
