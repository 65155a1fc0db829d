// Package config loads, defaults, and validates the program
// configuration, and provides factories that turn configuration sections
// into live components.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete vdiskfs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (VDISKFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store backend defines its own options. The Config struct carries
// type-specific sections (storage.image, storage.badger) and only the
// section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Storage specifies the backing store type, geometry, and
	// type-specific configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Backup configures S3 image backups
	Backup BackupConfig `mapstructure:"backup"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// GeometryConfig fixes the virtual disk dimensions. Geometry is set at
// format time and verified on every subsequent open.
type GeometryConfig struct {
	// BlockSize is the content block size in bytes
	BlockSize uint32 `mapstructure:"block_size" validate:"required,gt=0"`

	// BlockCount is the number of content blocks
	BlockCount uint32 `mapstructure:"block_count" validate:"required,gt=0"`

	// InodeCapacity is the number of inode slots
	InodeCapacity uint32 `mapstructure:"inode_capacity" validate:"required,gt=0"`
}

// StorageConfig specifies backing store configuration.
//
// The Type field determines which store backend is used. Only the
// corresponding type-specific section is consulted.
type StorageConfig struct {
	// Type specifies which store backend to use
	// Valid values: image, badger, memory
	Type string `mapstructure:"type" validate:"required,oneof=image badger memory"`

	// Geometry fixes the virtual disk dimensions
	Geometry GeometryConfig `mapstructure:"geometry" validate:"required"`

	// Image contains image-file-specific configuration
	// Only used when Type = "image"
	Image map[string]any `mapstructure:"image"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// BackupConfig configures S3 image backups.
type BackupConfig struct {
	// Enabled turns the backup command on
	Enabled bool `mapstructure:"enabled"`

	// S3 contains the S3 target configuration
	S3 map[string]any `mapstructure:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VDISKFS_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
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

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the VDISKFS_ prefix and underscores
	// Example: VDISKFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("VDISKFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/vdiskfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is acceptable; defaults apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vdiskfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "vdiskfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
