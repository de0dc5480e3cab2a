package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log format")
	}
}

func TestValidate_AdminPortOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Admin.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Admin.JWT.Secret = "too-short"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for short jwt secret")
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for telemetry enabled without endpoint")
	}
}

func TestValidate_TelemetrySampleRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for sample rate above 1.0")
	}
}

func TestValidate_EmptyRoleBindingRejected(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Roles.Bindings[9999] = RoleBinding{Roles: nil}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty role list")
	}
}

func TestValidate_MissingDirectoryEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Directory.Endpoint = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing directory endpoint")
	}
}

func TestValidate_PostgresRequiresHost(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Type = "postgres"
	cfg.Database.Postgres.Database = "idhost"
	cfg.Database.Postgres.User = "idhost"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for missing postgres host")
	}
	if !strings.Contains(err.Error(), "host") {
		t.Errorf("expected host-related error, got: %v", err)
	}
}
