package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// Validate checks a loaded configuration against its struct `validate`
// tags plus the cross-field rules the tags can't express (telemetry
// endpoint required when enabled, database type-specific fields).
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return translateValidationError(err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry.enabled is true")
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	anyEncrypted := false
	for port, binding := range cfg.Roles.Bindings {
		if len(binding.Roles) == 0 {
			return fmt.Errorf("roles.bindings[%d]: at least one role is required", port)
		}
		if binding.Encrypted {
			anyEncrypted = true
		}
	}
	if anyEncrypted && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file are required when any role binding sets encrypted: true")
	}

	return nil
}

func translateValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fe := verrs[0]
	return fmt.Errorf("%s failed validation (%s)", fe.Namespace(), fe.Tag())
}
