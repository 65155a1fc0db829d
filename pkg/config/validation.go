package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom
// rules.
//
// Declarative constraints live in struct tags; rules that cannot be
// expressed there are checked in validateCustomRules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	geo := cfg.Storage.Geometry
	if geo.BlockSize%512 != 0 {
		return fmt.Errorf("storage.geometry: block_size %d must be a multiple of 512", geo.BlockSize)
	}

	switch cfg.Storage.Type {
	case "image":
		if path, _ := cfg.Storage.Image["path"].(string); path == "" {
			return fmt.Errorf("storage.image: path is required")
		}
	case "badger":
		inMemory, _ := cfg.Storage.Badger["in_memory"].(bool)
		if path, _ := cfg.Storage.Badger["db_path"].(string); path == "" && !inMemory {
			return fmt.Errorf("storage.badger: db_path is required unless in_memory is set")
		}
	}

	if cfg.Backup.Enabled {
		if bucket, _ := cfg.Backup.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("backup.s3: bucket is required when backup is enabled")
		}
		if region, _ := cfg.Backup.S3["region"].(string); region == "" {
			return fmt.Errorf("backup.s3: region is required when backup is enabled")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
