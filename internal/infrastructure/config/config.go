// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg, err := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	tolerance := cfg.Matcher.HomeTolerance
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/matcher"
)

// Config represents the entire application configuration.
type Config struct {
	Matcher       matcher.Config      `yaml:"matcher"`
	Merchant      MerchantConfig      `yaml:"merchant"`
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MerchantConfig extends the built-in alias and family tables. Keys are
// canonical merchant names, values the textual variants seen on statements
// and receipts.
type MerchantConfig struct {
	Aliases  map[string][]string `yaml:"aliases"`
	Families map[string][]string `yaml:"families"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration with all tunables at their defaults.
func Default() *Config {
	return &Config{
		Matcher: matcher.DefaultConfig(),
		Storage: StorageConfig{
			DatabasePath: "receiptcheck.db",
		},
		API: APIConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file over the defaults, then validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECEIPTCHECK_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.Storage.DatabasePath = getEnv("RECEIPTCHECK_DB_PATH", cfg.Storage.DatabasePath)
	cfg.API.Port = getEnvInt("RECEIPTCHECK_API_PORT", cfg.API.Port)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment
// variables.
func LoadOrEnv() (*Config, error) {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back to
// environment variables.
func LoadOrEnvWithPath(path string) (*Config, error) {
	if cfg, err := Load(path); err == nil {
		return cfg, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cfg := LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast before any matching run can start.
func (c *Config) Validate() error {
	if err := c.Matcher.Validate(); err != nil {
		return err
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api port %d outside (0,65535]", c.API.Port)
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path must not be empty")
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default.
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
