package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"swap-quoter/pkg/client"
	"swap-quoter/pkg/retry"
)

// Config holds the application configuration
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int

	Retry RetryConfig

	TokensFile string
	PoolsFile  string
	LogLevel   string
	ServerAddr string
}

// RetryConfig bounds retries of the remote quote request
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var globalConfig *Config

var envReplacer = strings.NewReplacer(".", "_")

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	def := client.DefaultConfig()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("rate_limit", def.RateLimit)
	v.SetDefault("rate_burst", def.RateBurst)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)
	v.SetDefault("retry.max_delay", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".swap-quoter")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	SetDefaults(v)

	// SWAP_QUOTER_RETRY_MAX_ATTEMPTS etc.
	v.SetEnvPrefix("SWAP_QUOTER")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	Set(cfg)
	return cfg, nil
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) *Config {
	return &Config{
		BaseURL:        v.GetString("base_url"),
		RequestTimeout: v.GetDuration("request_timeout"),
		RateLimit:      v.GetFloat64("rate_limit"),
		RateBurst:      v.GetInt("rate_burst"),
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   v.GetDuration("retry.base_delay"),
			MaxDelay:    v.GetDuration("retry.max_delay"),
		},
		TokensFile: v.GetString("tokens_file"),
		PoolsFile:  v.GetString("pools_file"),
		LogLevel:   v.GetString("log_level"),
		ServerAddr: v.GetString("server.addr"),
	}
}

// Validate checks the values that would otherwise fail deep inside a request
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: must be an absolute URL", c.BaseURL)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// ClientConfig returns the routing client settings
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:        c.BaseURL,
		RequestTimeout: c.RequestTimeout,
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,
	}
}

// RetryPolicy returns the retry settings for the remote quoter
func (c *Config) RetryPolicy() retry.Config {
	cfg := retry.DefaultConfig("routing-api")
	cfg.MaxAttempts = c.Retry.MaxAttempts
	cfg.BaseDelay = c.Retry.BaseDelay
	if c.Retry.MaxDelay > 0 {
		cfg.MaxDelay = c.Retry.MaxDelay
	}
	return cfg
}

// QuoteTimeout is the longest a full remote retry sequence can take
func (c *Config) QuoteTimeout() time.Duration {
	attempts := time.Duration(c.Retry.MaxAttempts)
	return c.RequestTimeout*attempts + c.Retry.MaxDelay*attempts
}

// Get returns the global configuration, loading it on first use
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
