package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all worker configuration.
type Config struct {
	Server    ServerConfig
	Runtime   RuntimeConfig
	Packages  PackageConfig
	Fetch     FetchConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// RuntimeConfig holds script runtime configuration.
type RuntimeConfig struct {
	Timeout    time.Duration `envconfig:"RUNTIME_TIMEOUT" default:"2m"`
	MainScript string        `envconfig:"MAIN_SCRIPT"`
	DataDir    string        `envconfig:"DATA_DIR" default:"."`
}

// PackageConfig holds package installation configuration.
type PackageConfig struct {
	Manifest   string `envconfig:"PACKAGE_MANIFEST"`
	Wheelhouse string `envconfig:"WHEELHOUSE"`
}

// FetchConfig holds remote package download configuration.
type FetchConfig struct {
	Timeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"FETCH_RETRIES" default:"3"`
	RPS        float64       `envconfig:"FETCH_RPS" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Runtime: RuntimeConfig{
			Timeout: 2 * time.Minute,
			DataDir: ".",
		},
		Fetch: FetchConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
