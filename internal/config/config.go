package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port            string `yaml:"port"`
	LogLevel        string `yaml:"logLevel"`
	StoreBackend    string `yaml:"storeBackend"`
	DatabaseURL     string `yaml:"databaseURL"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	CheckoutRetries int    `yaml:"checkoutRetries"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("BOOKLEND_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("BOOKLEND_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BOOKLEND_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("BOOKLEND_CHECKOUT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CheckoutRetries = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreBackend {
	case "", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres backend")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown storeBackend %q", cfg.StoreBackend)
	}
	if cfg.CheckoutRetries < 0 {
		return errors.New("config: checkoutRetries cannot be negative")
	}
	return nil
}
