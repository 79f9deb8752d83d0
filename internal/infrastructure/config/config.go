// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	realm := cfg.QBO.RealmID
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	QBO           QBOConfig           `yaml:"qbo"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	GCS           GCSConfig           `yaml:"gcs"`
	Matching      MatchingConfig      `yaml:"matching"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// QBOConfig holds QuickBooks Online API configuration
type QBOConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RealmID      string `yaml:"realm_id"`
	RefreshToken string `yaml:"refresh_token"`
	Environment  string `yaml:"environment"` // "sandbox" or "production"
}

// GeminiConfig holds extraction model configuration
type GeminiConfig struct {
	Model string `yaml:"model"`
}

// GCSConfig holds document storage configuration
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

// MatchingConfig holds reconciliation thresholds.
// Zero values are replaced with working defaults.
type MatchingConfig struct {
	DateToleranceDays         int     `yaml:"date_tolerance_days"`
	AutoMatchThreshold        float64 `yaml:"auto_match_threshold"`
	SuggestMatchThreshold     float64 `yaml:"suggest_match_threshold"`
	VendorSimilarityThreshold float64 `yaml:"vendor_similarity_threshold"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${QBO_CLIENT_SECRET})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("LEDGERMATCH_DB_PATH", "ledgermatch.db"),
		},
		QBO: QBOConfig{
			ClientID:     os.Getenv("QBO_CLIENT_ID"),
			ClientSecret: os.Getenv("QBO_CLIENT_SECRET"),
			RealmID:      os.Getenv("QBO_REALM_ID"),
			RefreshToken: os.Getenv("QBO_REFRESH_TOKEN"),
			Environment:  getEnv("QBO_ENVIRONMENT", "sandbox"),
		},
		Gemini: GeminiConfig{
			Model: getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		GCS: GCSConfig{
			Bucket: os.Getenv("GCS_BUCKET"),
		},
		Matching: MatchingConfig{
			DateToleranceDays:         getEnvInt("MATCH_DATE_TOLERANCE_DAYS", 5),
			AutoMatchThreshold:        getEnvFloat("MATCH_AUTO_THRESHOLD", 90),
			SuggestMatchThreshold:     getEnvFloat("MATCH_SUGGEST_THRESHOLD", 70),
			VendorSimilarityThreshold: getEnvFloat("VENDOR_SIMILARITY_THRESHOLD", 0.7),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills in zero values that have working defaults
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "ledgermatch.db"
	}
	if c.QBO.Environment == "" {
		c.QBO.Environment = "sandbox"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Matching.DateToleranceDays == 0 {
		c.Matching.DateToleranceDays = 5
	}
	if c.Matching.AutoMatchThreshold == 0 {
		c.Matching.AutoMatchThreshold = 90
	}
	if c.Matching.SuggestMatchThreshold == 0 {
		c.Matching.SuggestMatchThreshold = 70
	}
	if c.Matching.VendorSimilarityThreshold == 0 {
		c.Matching.VendorSimilarityThreshold = 0.7
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}
