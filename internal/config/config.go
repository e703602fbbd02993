// Package config resolves client settings from defaults, a YAML file and
// the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/and161185/taler-client/internal/validate"
)

// Config is the resolved client configuration.
type Config struct {
	MerchantURL   string
	MerchantToken string
	Instance      string
	ExchangeURL   string

	RedisURL    string
	CacheTTL    time.Duration
	CacheSize   uint32
	HTTPTimeout time.Duration

	StateDir string
}

// configFile mirrors the YAML schema.
type configFile struct {
	Merchant struct {
		URL      string `yaml:"url"`
		Token    string `yaml:"token"`
		Instance string `yaml:"instance"`
	} `yaml:"merchant"`
	Exchange struct {
		URL string `yaml:"url"`
	} `yaml:"exchange"`
	Cache struct {
		RedisURL   string `yaml:"redis_url"`
		TTLSeconds int    `yaml:"ttl_seconds"`
		Size       int    `yaml:"size"`
	} `yaml:"cache"`
	HTTP struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"http"`
	StateDir string `yaml:"state_dir"`
}

// DefaultDir is the per-user directory for the config file and pending
// operations.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "taler-client")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taler-client")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string { return filepath.Join(DefaultDir(), "config.yaml") }

// Load resolves configuration: defaults, then the file at path if it
// exists, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{
		Instance:    "admin",
		CacheTTL:    5 * time.Minute,
		CacheSize:   128,
		HTTPTimeout: 30 * time.Second,
		StateDir:    DefaultDir(),
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		applyFile(&cfg, f)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.MerchantURL = envOrDefault("TALER_MERCHANT_URL", cfg.MerchantURL)
	cfg.MerchantToken = envOrDefault("TALER_MERCHANT_TOKEN", cfg.MerchantToken)
	cfg.Instance = envOrDefault("TALER_INSTANCE", cfg.Instance)
	cfg.ExchangeURL = envOrDefault("TALER_EXCHANGE_URL", cfg.ExchangeURL)
	cfg.RedisURL = envOrDefault("TALER_REDIS_URL", cfg.RedisURL)
	cfg.StateDir = envOrDefault("TALER_STATE_DIR", cfg.StateDir)
	cfg.CacheTTL = time.Duration(envInt("TALER_CACHE_TTL_SECONDS", int(cfg.CacheTTL.Seconds()))) * time.Second
	cfg.HTTPTimeout = time.Duration(envInt("TALER_HTTP_TIMEOUT_SECONDS", int(cfg.HTTPTimeout.Seconds()))) * time.Second

	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Merchant.URL != "" {
		cfg.MerchantURL = f.Merchant.URL
	}
	if f.Merchant.Token != "" {
		cfg.MerchantToken = f.Merchant.Token
	}
	if f.Merchant.Instance != "" {
		cfg.Instance = f.Merchant.Instance
	}
	if f.Exchange.URL != "" {
		cfg.ExchangeURL = f.Exchange.URL
	}
	if f.Cache.RedisURL != "" {
		cfg.RedisURL = f.Cache.RedisURL
	}
	if f.Cache.TTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(f.Cache.TTLSeconds) * time.Second
	}
	if f.Cache.Size > 0 {
		cfg.CacheSize = uint32(f.Cache.Size)
	}
	if f.HTTP.TimeoutSeconds > 0 {
		cfg.HTTPTimeout = time.Duration(f.HTTP.TimeoutSeconds) * time.Second
	}
	if f.StateDir != "" {
		cfg.StateDir = f.StateDir
	}
}

// Validate checks the URLs that are set.
func (c Config) Validate() error {
	if c.MerchantURL != "" && !validate.BaseURL(c.MerchantURL) {
		return fmt.Errorf("merchant url %q must be absolute and end with \"/\"", c.MerchantURL)
	}
	if c.ExchangeURL != "" && !validate.BaseURL(c.ExchangeURL) {
		return fmt.Errorf("exchange url %q must be absolute and end with \"/\"", c.ExchangeURL)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
