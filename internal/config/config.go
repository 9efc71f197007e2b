// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/tilevault/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Download DownloadConfig `mapstructure:"download"`
	State    StateConfig    `mapstructure:"state"`
	TLS      TLSConfig      `mapstructure:"tls"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	FrontendEnabled bool            `mapstructure:"frontend_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	CORS            CORSConfig      `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

// SourceConfig holds tile source configuration.
type SourceConfig struct {
	Type  string            `mapstructure:"type"` // http, s3, azure, local
	HTTP  HTTPSourceConfig  `mapstructure:"http"`
	S3    S3SourceConfig    `mapstructure:"s3"`
	Azure AzureSourceConfig `mapstructure:"azure"`
	Local LocalSourceConfig `mapstructure:"local"`
}

// HTTPSourceConfig holds HTTP tile server configuration.
type HTTPSourceConfig struct {
	URLTemplate   string        `mapstructure:"url_template"` // with {z}/{x}/{y} placeholders
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

// S3SourceConfig holds AWS S3 tile source configuration.
type S3SourceConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureSourceConfig holds Azure Blob Storage tile source configuration.
type AzureSourceConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// LocalSourceConfig holds local directory tile source configuration.
type LocalSourceConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds tile cache configuration. The cache size budget itself
// is a persisted runtime setting, not a config value.
type CacheConfig struct {
	Path            string        `mapstructure:"path"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DownloadConfig holds region download configuration.
type DownloadConfig struct {
	Concurrency      int `mapstructure:"concurrency"`       // parallel tile fetches per region
	ProgressInterval int `mapstructure:"progress_interval"` // tiles between progress emissions
}

// StateConfig holds persisted state configuration.
type StateConfig struct {
	Path string `mapstructure:"path"` // SQLite database file
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds Azure DNS provider settings for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"` // Managed identity client ID (optional)
}

// MetricsConfig holds Prometheus metrics configuration. The endpoint runs
// on its own listener so it can stay firewalled off from the API port.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.frontend_enabled", true)
	viper.SetDefault("server.rate_limit.enabled", false)
	viper.SetDefault("server.rate_limit.rate", 100.0)
	viper.SetDefault("server.rate_limit.burst", 200)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Source defaults
	viper.SetDefault("source.type", "http")
	viper.SetDefault("source.http.url_template", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	viper.SetDefault("source.http.user_agent", "tilevault/1.0")
	viper.SetDefault("source.http.timeout", 30*time.Second)
	viper.SetDefault("source.http.retry_attempts", 2)
	viper.SetDefault("source.http.retry_backoff", 500*time.Millisecond)

	// Cache defaults
	viper.SetDefault("cache.path", "./tiles")
	viper.SetDefault("cache.cleanup_interval", 15*time.Minute)

	// Download defaults
	viper.SetDefault("download.concurrency", 4)
	viper.SetDefault("download.progress_interval", 10)

	// State defaults
	viper.SetDefault("state.path", "./tilevault.db")

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("TILEVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tilevault")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigError{
			Field:   "server.port",
			Message: fmt.Sprintf("invalid port: %d", c.Server.Port),
		}
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return &domain.ConfigError{Field: "tls.domains", Message: "TLS enabled but no domains specified"}
		}
		if c.TLS.Email == "" {
			return &domain.ConfigError{Field: "tls.email", Message: "TLS enabled but no email specified"}
		}
	}

	switch c.Source.Type {
	case "http":
		if c.Source.HTTP.URLTemplate == "" {
			return &domain.ConfigError{Field: "source.http.url_template", Message: "URL template is required"}
		}
		for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(c.Source.HTTP.URLTemplate, placeholder) {
				return &domain.ConfigError{
					Field:   "source.http.url_template",
					Message: fmt.Sprintf("URL template is missing the %s placeholder", placeholder),
				}
			}
		}
	case "s3":
		if c.Source.S3.Bucket == "" {
			return &domain.ConfigError{Field: "source.s3.bucket", Message: "S3 bucket is required"}
		}
		if c.Source.S3.Region == "" {
			return &domain.ConfigError{Field: "source.s3.region", Message: "S3 region is required"}
		}
	case "azure":
		if c.Source.Azure.Container == "" {
			return &domain.ConfigError{Field: "source.azure.container", Message: "azure container is required"}
		}
		if c.Source.Azure.AccountName == "" && c.Source.Azure.ConnectionString == "" {
			return &domain.ConfigError{
				Field:   "source.azure.account_name",
				Message: "azure account name or connection string is required",
			}
		}
	case "local":
		if c.Source.Local.Path == "" {
			return &domain.ConfigError{Field: "source.local.path", Message: "local source path is required"}
		}
	default:
		return &domain.ConfigError{
			Field:   "source.type",
			Message: fmt.Sprintf("unknown source type: %s", c.Source.Type),
		}
	}

	if c.Cache.Path == "" {
		return &domain.ConfigError{Field: "cache.path", Message: "cache path is required"}
	}
	if c.State.Path == "" {
		return &domain.ConfigError{Field: "state.path", Message: "state path is required"}
	}
	if c.Download.Concurrency < 1 {
		return &domain.ConfigError{
			Field:   "download.concurrency",
			Message: fmt.Sprintf("concurrency must be at least 1, got %d", c.Download.Concurrency),
		}
	}
	if c.Download.ProgressInterval < 1 {
		return &domain.ConfigError{
			Field:   "download.progress_interval",
			Message: fmt.Sprintf("progress interval must be at least 1, got %d", c.Download.ProgressInterval),
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return &domain.ConfigError{
			Field:   "metrics.port",
			Message: fmt.Sprintf("invalid port: %d", c.Metrics.Port),
		}
	}

	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
