package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envPort                     = "GOQR_PORT"
	envDatabaseType             = "GOQR_DATABASE_TYPE"
	envDatabaseConnectionString = "GOQR_DATABASE_CONNECTION_STRING"
	envLogLevel                 = "GOQR_LOG_LEVEL"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

// Logging configures the process wide slog handler. When File is set, log
// lines are also written to a rotated file.
type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Persistence controls how a failed record insert affects a generation.
// When Required is false the image is still returned.
type Persistence struct {
	Required bool `yaml:"required"`
}

type Upload struct {
	BodyLimit string `yaml:"bodyLimit"`
}

type ServiceConfig struct {
	Port        int         `yaml:"port"`
	Database    Database    `yaml:"database"`
	Logging     Logging     `yaml:"logging"`
	Persistence Persistence `yaml:"persistence"`
	Upload      Upload      `yaml:"upload"`
}

// DefaultConfig returns the configuration used for values the file omits.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port: 8080,
		Database: Database{
			Type: "memory",
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Upload: Upload{
			BodyLimit: "4M",
		},
	}
}

// LoadConfig loads configuration from the specified YAML file on top of the
// defaults, then applies environment overrides.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := finalizeConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return config, nil
}

// LoadConfigOrDefault behaves like LoadConfig but falls back to the defaults
// when the file does not exist.
func LoadConfigOrDefault(configPath string) (*ServiceConfig, error) {
	config, err := LoadConfig(configPath)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	slog.Warn("LoadConfig: config file not found, using defaults", "path", configPath)
	config = DefaultConfig()
	if err := finalizeConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func finalizeConfig(config *ServiceConfig) error {
	if err := applyEnvOverrides(config); err != nil {
		return err
	}
	return validateConfig(config)
}

func applyEnvOverrides(config *ServiceConfig) error {
	if v := os.Getenv(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", envPort, v)
		}
		config.Port = port
	}
	if v := os.Getenv(envDatabaseType); v != "" {
		config.Database.Type = v
	}
	if v := os.Getenv(envDatabaseConnectionString); v != "" {
		config.Database.ConnectionString = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		config.Logging.Level = v
	}
	return nil
}

func validateConfig(config *ServiceConfig) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	switch config.Database.Type {
	case "memory":
	case "sqlite", "postgres", "redis":
		if config.Database.ConnectionString == "" {
			return fmt.Errorf("database type %s requires a connectionString", config.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %q", config.Database.Type)
	}

	if _, err := parseLevel(config.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(config.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", config.Logging.Format)
	}

	if config.Upload.BodyLimit == "" {
		return fmt.Errorf("upload.bodyLimit must not be empty")
	}
	return nil
}
