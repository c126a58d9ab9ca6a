package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// EnvConfigFile overrides the default config file location.
const EnvConfigFile = "SNOWPILOT_CONFIG"

func GetConfigPath() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snowpilot")
}

func GetConfigFile() string {
	if configFile := os.Getenv(EnvConfigFile); configFile != "" {
		if cleaned, err := cleanPath(configFile); err == nil {
			return cleaned
		}
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// Load reads the config file. A missing file yields an empty config so
// first runs can fall through to defaults and environment variables.
func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return &models.Config{}, nil
	}

	data, err := os.ReadFile(configFile) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "Failed to read config file").
			WithContext("file", configFile)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse config file").
			WithContext("file", configFile)
	}
	return &config, nil
}

// Save writes the config file with owner-only permissions.
func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0o700); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigPermission, "Failed to create config directory").
			WithContext("dir", configPath)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to marshal config")
	}

	if err := os.WriteFile(GetConfigFile(), data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigPermission, "Failed to write config file").
			WithContext("file", GetConfigFile())
	}
	return nil
}

// LoadResolved loads the config and applies, in order: defaults,
// environment variable overrides and password decryption. This is the
// entry point commands should use.
func LoadResolved() (*models.Config, error) {
	config, err := Load()
	if err != nil {
		return nil, err
	}

	ApplyDefaults(config)
	applyEnvOverrides(config)

	if err := DecryptConfigPasswords(config); err != nil {
		return nil, err
	}
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyDefaults fills every setting a fresh install can run with.
func ApplyDefaults(config *models.Config) {
	if config.Warehouse.Driver == "" {
		config.Warehouse.Driver = "snowflake"
	}
	if config.Warehouse.Timeout == "" {
		config.Warehouse.Timeout = "30s"
	}

	if config.Loop.IngestEvery == "" {
		config.Loop.IngestEvery = "every 15m"
	}
	if config.Loop.AggregateEvery == "" {
		config.Loop.AggregateEvery = "every 15m"
	}
	if config.Loop.GenerateEvery == "" {
		config.Loop.GenerateEvery = "every 15m"
	}
	if config.Loop.ApplyEvery == "" {
		config.Loop.ApplyEvery = "every 30m"
	}
	if config.Loop.SweepEvery == "" {
		config.Loop.SweepEvery = "every 5m"
	}
	if config.Loop.LookbackHours <= 0 {
		config.Loop.LookbackHours = 24
	}
	if config.Loop.MaxActionsPerRun <= 0 {
		config.Loop.MaxActionsPerRun = 20
	}

	if config.Store.Engine == "" {
		config.Store.Engine = "memory"
	}
	if config.Store.Path == "" {
		config.Store.Path = filepath.Join(GetConfigPath(), "store")
	}

	if config.Pipeline.Git.Path == "" {
		config.Pipeline.Git.Path = "pipelines"
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}
	if config.Metrics.Enabled && config.Metrics.Listen == "" {
		config.Metrics.Listen = ":9151"
	}
}

// Validate rejects settings no component can make sense of. Connection
// details are checked later by the warehouse service, which knows its
// drivers.
func Validate(config *models.Config) error {
	switch config.Store.Engine {
	case "", "memory", "badger":
	default:
		return errors.ConfigError(
			fmt.Sprintf("Unknown store engine %q", config.Store.Engine), "store.engine")
	}

	switch config.Warehouse.Driver {
	case "", "snowflake", "postgres", "mysql":
	default:
		return errors.ConfigError(
			fmt.Sprintf("Unknown warehouse driver %q", config.Warehouse.Driver), "warehouse.driver")
	}

	switch config.Logging.Format {
	case "", "json", "console":
	default:
		return errors.ConfigError(
			fmt.Sprintf("Unknown log format %q", config.Logging.Format), "logging.format")
	}
	return nil
}

// ResolveEnvironment overlays a named environment onto the warehouse
// connection settings.
func ResolveEnvironment(config *models.Config, name string) error {
	if name == "" {
		return nil
	}
	for _, env := range config.Environments {
		if !strings.EqualFold(env.Name, name) {
			continue
		}
		overlay := func(dst *string, src string) {
			if src != "" {
				*dst = src
			}
		}
		overlay(&config.Warehouse.Driver, env.Driver)
		overlay(&config.Warehouse.Account, env.Account)
		overlay(&config.Warehouse.Username, env.Username)
		overlay(&config.Warehouse.Password, env.Password)
		overlay(&config.Warehouse.Database, env.Database)
		overlay(&config.Warehouse.Schema, env.Schema)
		overlay(&config.Warehouse.Warehouse, env.Warehouse)
		overlay(&config.Warehouse.Role, env.Role)
		overlay(&config.Warehouse.Host, env.Host)
		overlay(&config.Warehouse.Timeout, env.Timeout)
		if env.Port != 0 {
			config.Warehouse.Port = env.Port
		}
		return nil
	}
	return errors.ConfigError(
		fmt.Sprintf("Environment %q is not defined", name), "environments")
}

func applyEnvOverrides(config *models.Config) {
	for env, dst := range map[string]*string{
		"SNOWPILOT_DRIVER":    &config.Warehouse.Driver,
		"SNOWPILOT_ACCOUNT":   &config.Warehouse.Account,
		"SNOWPILOT_USERNAME":  &config.Warehouse.Username,
		"SNOWPILOT_PASSWORD":  &config.Warehouse.Password,
		"SNOWPILOT_ROLE":      &config.Warehouse.Role,
		"SNOWPILOT_WAREHOUSE": &config.Warehouse.Warehouse,
		"SNOWPILOT_DATABASE":  &config.Warehouse.Database,
		"SNOWPILOT_SCHEMA":    &config.Warehouse.Schema,
		"SNOWPILOT_HOST":      &config.Warehouse.Host,
		"SNOWPILOT_LOG_LEVEL": &config.Logging.Level,
	} {
		if value := os.Getenv(env); value != "" {
			*dst = value
		}
	}

	if value := os.Getenv("SNOWPILOT_PORT"); value != "" {
		if port, err := strconv.Atoi(value); err == nil {
			config.Warehouse.Port = port
		}
	}
	if value := os.Getenv("SNOWPILOT_DRY_RUN"); value != "" {
		if dryRun, err := strconv.ParseBool(value); err == nil {
			config.Loop.DryRun = dryRun
		}
	}
}

// cleanPath guards the config override against directory traversal.
func cleanPath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path: contains directory traversal")
	}
	if !filepath.IsAbs(cleaned) {
		abs, err := filepath.Abs(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		cleaned = abs
	}
	return cleaned, nil
}
