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

// Validate validates the configuration using struct tags plus the custom
// rules that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if _, err := ParseMode(cfg.Mount.FileMode); err != nil {
		return fmt.Errorf("mount.file_mode: %w", err)
	}
	if _, err := ParseMode(cfg.Mount.DirMode); err != nil {
		return fmt.Errorf("mount.dir_mode: %w", err)
	}
	if cfg.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout: must not be negative")
	}
	if cfg.Mount.AttrTimeout < 0 {
		return fmt.Errorf("mount.attr_timeout: must not be negative")
	}
	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
