package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default virtual disk geometry: 4 KiB blocks, 16 MiB of content, 1024
// inode slots.
const (
	DefaultBlockSize     = 4096
	DefaultBlockCount    = 4096
	DefaultInodeCapacity = 1024
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage)
	applyBackupDefaults(&cfg.Backup)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStorageDefaults sets backing store defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "image"
	}

	if cfg.Geometry.BlockSize == 0 {
		cfg.Geometry.BlockSize = DefaultBlockSize
	}
	if cfg.Geometry.BlockCount == 0 {
		cfg.Geometry.BlockCount = DefaultBlockCount
	}
	if cfg.Geometry.InodeCapacity == 0 {
		cfg.Geometry.InodeCapacity = DefaultInodeCapacity
	}

	if cfg.Image == nil {
		cfg.Image = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Image["path"]; !ok {
		cfg.Image["path"] = defaultDataPath("disk.img")
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = defaultDataPath("badger")
	}
}

// applyBackupDefaults sets backup defaults.
func applyBackupDefaults(cfg *BackupConfig) {
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

// defaultDataPath places store data under the XDG data directory,
// falling back to the current directory.
func defaultDataPath(name string) string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "vdiskfs", name)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".local", "share", "vdiskfs", name)
}
