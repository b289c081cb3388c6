// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// TOKEN_DASHBOARD_API_BASE_URL.
const EnvPrefix = "TOKEN_DASHBOARD"

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	API           APIConfig          `mapstructure:"api"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Realtime      RealtimeConfig     `mapstructure:"realtime"`
	Monitor       MonitorConfig      `mapstructure:"monitor"`
	Processor     ProcessorConfig    `mapstructure:"processor"`
	Analytics     AnalyticsConfig    `mapstructure:"analytics"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	// DemoMode serves generated transactions instead of calling the backend.
	DemoMode bool `mapstructure:"demo_mode"`
}

// APIConfig contains backend REST API configuration
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	AuthHeader string        `mapstructure:"auth_header"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// AuthConfig contains dashboard login configuration
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// PersistSession keeps the session token in storage between runs.
	PersistSession bool `mapstructure:"persist_session"`
}

// Ordering values for realtime inserts
const (
	OrderingPrepend = "prepend"
	OrderingSorted  = "sorted"
)

// RealtimeConfig contains push channel configuration
type RealtimeConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	URL               string        `mapstructure:"url"`
	Path              string        `mapstructure:"path"`
	Namespace         string        `mapstructure:"namespace"`
	Event             string        `mapstructure:"event"`
	Ordering          string        `mapstructure:"ordering"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReconnectDelayMax time.Duration `mapstructure:"reconnect_delay_max"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
}

// MonitorConfig contains transaction log fetching configuration
type MonitorConfig struct {
	// PollInterval reloads the log when realtime is disabled; 0 disables polling.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	DemoEntries  int           `mapstructure:"demo_entries"`
}

// ProcessorConfig contains new-entry processing configuration
type ProcessorConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	EnableArchive  bool          `mapstructure:"enable_archive"`
}

// AnalyticsConfig contains revenue and view configuration
type AnalyticsConfig struct {
	PricePerTransaction int64         `mapstructure:"price_per_transaction"`
	CurrencySymbol      string        `mapstructure:"currency_symbol"`
	Timezone            string        `mapstructure:"timezone"`
	StatsRange          string        `mapstructure:"stats_range"`
	DefaultFilter       string        `mapstructure:"default_filter"`
	DefaultPageSize     string        `mapstructure:"default_page_size"`
	SearchDebounce      time.Duration `mapstructure:"search_debounce"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	RetentionDays    int           `mapstructure:"retention_days"`
}

// WebhookConfig describes one webhook target
type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Secret  string            `mapstructure:"secret"`
}

// NotificationConfig contains webhook forwarding configuration
type NotificationConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	QueueSize     int             `mapstructure:"queue_size"`
	Workers       int             `mapstructure:"workers"`
	RetryAttempts int             `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration   `mapstructure:"retry_delay"`
	Timeout       time.Duration   `mapstructure:"timeout"`
	Webhooks      []WebhookConfig `mapstructure:"webhooks"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json, text
	Output     string `mapstructure:"output"` // stdout, file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Well-known overrides
	if apiURL := os.Getenv("XLTOKEN_API_URL"); apiURL != "" {
		config.API.BaseURL = apiURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "xltoken-dashboard")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.demo_mode", false)

	// API defaults
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.auth_header", "Bearer")
	v.SetDefault("api.user_agent", "xltoken-dashboard/1.0")

	// Auth defaults
	v.SetDefault("auth.persist_session", true)

	// Realtime defaults (socket.io client defaults)
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.path", "/socket.io/")
	v.SetDefault("realtime.namespace", "/")
	v.SetDefault("realtime.event", "log:new")
	v.SetDefault("realtime.ordering", OrderingPrepend)
	v.SetDefault("realtime.dial_timeout", "20s")
	v.SetDefault("realtime.reconnect_delay", "1s")
	v.SetDefault("realtime.reconnect_delay_max", "5s")
	v.SetDefault("realtime.reconnect_attempts", 0)

	// Monitor defaults
	v.SetDefault("monitor.poll_interval", "30s")
	v.SetDefault("monitor.fetch_timeout", "15s")
	v.SetDefault("monitor.demo_entries", 120)

	// Processor defaults
	v.SetDefault("processor.workers", 2)
	v.SetDefault("processor.queue_size", 1000)
	v.SetDefault("processor.process_timeout", "30s")
	v.SetDefault("processor.enable_archive", true)

	// Analytics defaults
	v.SetDefault("analytics.price_per_transaction", 10000)
	v.SetDefault("analytics.currency_symbol", "Rp")
	v.SetDefault("analytics.timezone", "Local")
	v.SetDefault("analytics.stats_range", "month")
	v.SetDefault("analytics.default_filter", "all")
	v.SetDefault("analytics.default_page_size", "5")
	v.SetDefault("analytics.search_debounce", "300ms")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/dashboard.db")
	v.SetDefault("storage.max_connections", 10)
	v.SetDefault("storage.max_idle_time", "15m")
	v.SetDefault("storage.retention_days", 90)

	// Notification defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.queue_size", 100)
	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.retry_attempts", 3)
	v.SetDefault("notifications.retry_delay", "2s")
	v.SetDefault("notifications.timeout", "10s")

	// Server defaults
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "./logs/dashboard.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" && !c.App.DemoMode {
		return fmt.Errorf("API base URL is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	switch c.Storage.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Monitor.PollInterval < 0 {
		return fmt.Errorf("monitor poll interval must not be negative")
	}
	if c.Processor.Workers <= 0 {
		return fmt.Errorf("processor workers must be positive")
	}
	if c.Processor.QueueSize <= 0 {
		return fmt.Errorf("processor queue size must be positive")
	}
	switch c.Realtime.Ordering {
	case OrderingPrepend, OrderingSorted:
	default:
		return fmt.Errorf("realtime ordering must be %q or %q, got %q", OrderingPrepend, OrderingSorted, c.Realtime.Ordering)
	}
	if c.Analytics.PricePerTransaction < 0 {
		return fmt.Errorf("price per transaction must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Analytics.StatsRange {
	case "month", "all":
	default:
		return fmt.Errorf("analytics stats range must be month or all, got %q", c.Analytics.StatsRange)
	}
	if c.Notifications.Enabled {
		for i, wh := range c.Notifications.Webhooks {
			if wh.URL == "" {
				return fmt.Errorf("webhook %d has no URL", i)
			}
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	return nil
}

// Location resolves the analytics time zone. "" and "Local" use the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Analytics.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics timezone %q: %w", c.Analytics.Timezone, err)
	}
	return loc, nil
}

// Price returns the per-transaction price as a decimal
func (c *Config) Price() decimal.Decimal {
	return decimal.NewFromInt(c.Analytics.PricePerTransaction)
}

// RealtimeURL is the push channel URL, defaulting to the API base URL
func (c *Config) RealtimeURL() string {
	if c.Realtime.URL != "" {
		return c.Realtime.URL
	}
	return c.API.BaseURL
}
