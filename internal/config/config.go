// Package config loads and validates rtfs configuration from the config
// file, an adjacent .env file, and RTFS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete rtfs configuration.
//
// Sources, in order of precedence:
//  1. Environment variables (RTFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// A .env file in the working directory seeds missing RTFS_* variables
// before the environment is read.
type Config struct {
	// Host is the store's base URL, e.g. https://example.jfrog.io/artifactory
	Host string `mapstructure:"host" validate:"required,url"`

	// User and Token authenticate every request (HTTP Basic).
	User  string `mapstructure:"user" validate:"required"`
	Token string `mapstructure:"token" validate:"required"`

	Remote  RemoteConfig  `mapstructure:"remote"`
	Mount   MountConfig   `mapstructure:"mount"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// RemoteConfig tunes the HTTP client.
type RemoteConfig struct {
	// Timeout bounds one remote request end to end. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
}

// MountConfig tunes the mounted filesystem.
type MountConfig struct {
	// FileMode and DirMode are octal permission strings ("0440", "0550").
	// Two values have shipped historically, 0666 and 0440; 0440 is the
	// default because the mount is read-only.
	FileMode string `mapstructure:"file_mode"`
	DirMode  string `mapstructure:"dir_mode"`

	// AttrTimeout is the attribute TTL advertised to the kernel.
	AttrTimeout time.Duration `mapstructure:"attr_timeout"`

	// AllowOther opens the mount to other local users.
	AllowOther bool `mapstructure:"allow_other"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the listener.
	Addr string `mapstructure:"addr"`
}

// configKeys lists every key so environment-only configuration works: viper
// will not surface unbound env variables through Unmarshal.
var configKeys = []string{
	"host",
	"user",
	"token",
	"remote.timeout",
	"mount.file_mode",
	"mount.dir_mode",
	"mount.attr_timeout",
	"mount.allow_other",
	"logging.level",
	"logging.format",
	"logging.output",
	"metrics.addr",
}

// Load loads configuration from file, environment, and defaults.
// configPath empty means the default location; a missing file is fine as
// long as the environment carries the required values.
func Load(configPath string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment binding and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// RTFS_HOST, RTFS_USER, RTFS_TOKEN, RTFS_MOUNT_FILE_MODE, ...
	v.SetEnvPrefix("RTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			// SetConfigFile bypasses viper's not-found type.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 60 * time.Second
	}
	if cfg.Mount.FileMode == "" {
		cfg.Mount.FileMode = "0440"
	}
	if cfg.Mount.DirMode == "" {
		cfg.Mount.DirMode = "0550"
	}
	if cfg.Mount.AttrTimeout == 0 {
		cfg.Mount.AttrTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// ParseMode parses an octal permission string such as "0440".
func ParseMode(s string) (uint32, error) {
	trimmed := strings.TrimPrefix(s, "0o")
	n, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: want octal digits", s)
	}
	if n > 0o777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return uint32(n), nil
}

// Save writes host, user, and token to the config file with owner-only
// permissions (the token is a credential) and returns the path written.
func Save(cfg *Config, configPath string) (string, error) {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.Set("host", cfg.Host)
	v.Set("user", cfg.User)
	v.Set("token", cfg.Token)
	if err := v.WriteConfigAs(configPath); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	if err := os.Chmod(configPath, 0o600); err != nil {
		return "", fmt.Errorf("restrict config file: %w", err)
	}
	return configPath, nil
}

// loadDotEnv seeds missing RTFS_* environment variables from a .env file in
// the working directory, keeping parity with the original dotenv behavior.
// Real environment variables win over .env entries.
func loadDotEnv() {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if !strings.HasPrefix(name, "RTFS_") {
			continue
		}
		if _, exists := os.LookupEnv(name); !exists {
			os.Setenv(name, v.GetString(key))
		}
	}
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME and falling back to ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rtfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rtfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
