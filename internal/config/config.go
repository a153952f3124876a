package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port                   string `json:"port" toml:"port"`
		Debug                  bool   `json:"debug" toml:"debug"`
		ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
		StaticDir              string `json:"static_dir" toml:"static_dir"` // optional frontend build, empty disables
	} `json:"server" toml:"server"`

	Log struct {
		Level  string `json:"level" toml:"level"`
		Format string `json:"format" toml:"format"` // "console" or "json"
	} `json:"log" toml:"log"`

	Database struct {
		Driver string `json:"driver" toml:"driver"` // "sqlite" or "postgres"
		Path   string `json:"path" toml:"path"`
		DSN    string `json:"dsn" toml:"dsn"`
	} `json:"database" toml:"database"`

	ML struct {
		Type       string `json:"type" toml:"type"` // "local", "google" or "rekognition"
		ConfigPath string `json:"config_path" toml:"config_path"`
	} `json:"ml" toml:"ml"`

	Storage struct {
		Type   string `json:"type" toml:"type"` // "local" or "s3"
		Dir    string `json:"dir" toml:"dir"`
		Bucket string `json:"bucket" toml:"bucket"`
		Region string `json:"region" toml:"region"`
	} `json:"storage" toml:"storage"`

	Lookup struct {
		BaseURL        string `json:"base_url" toml:"base_url"`
		UserAgent      string `json:"user_agent" toml:"user_agent"`
		TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds"`
	} `json:"lookup" toml:"lookup"`

	Enrichment struct {
		MaxConcurrency int `json:"max_concurrency" toml:"max_concurrency"`
	} `json:"enrichment" toml:"enrichment"`

	Auth struct {
		JWTSecret string `json:"jwt_secret" toml:"jwt_secret"`
	} `json:"auth" toml:"auth"`
}

// LoadConfig loads configuration from a JSON or TOML file. Variables from a
// .env file in the working directory are loaded first and fill unset secrets.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		err = toml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()

	// Handle missing values
	if config.Server.Port == "" {
		// Fail if port is not set
		return nil, fmt.Errorf("server port is not set in config file")
	}
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if c.Server.Port == "" {
		c.Server.Port = os.Getenv("PORT")
	}
	if c.Database.DSN == "" {
		c.Database.DSN = os.Getenv("DATABASE_URL")
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = os.Getenv("S3_BUCKET")
	}
	if c.Storage.Region == "" {
		c.Storage.Region = os.Getenv("S3_REGION")
	}
	if c.Storage.Region == "" {
		c.Storage.Region = os.Getenv("AWS_REGION")
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
		if c.Server.Debug {
			c.Log.Level = "debug"
		}
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "food_nutrition.db"
	}
	if c.ML.Type == "" {
		c.ML.Type = "local"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./images"
	}
	if c.Lookup.TimeoutSeconds <= 0 {
		c.Lookup.TimeoutSeconds = 10
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Enrichment.MaxConcurrency < 0 {
		return fmt.Errorf("enrichment max_concurrency must not be negative")
	}
	return nil
}

// DatabaseDSN returns the connection string for the configured driver
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "postgres" {
		return c.Database.DSN
	}
	return c.Database.Path
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("SMARTPLATE_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
