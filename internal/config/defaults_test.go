package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level INFO, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format text, got %s", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("expected default log output stdout, got %s", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LoggingNormalizesCase(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected normalized level DEBUG, got %s", cfg.Logging.Level)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected default shutdown timeout 30s, got %s", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Admin(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Admin.Port != 8080 {
		t.Errorf("expected default admin port 8080, got %d", cfg.Admin.Port)
	}
	if cfg.Admin.JWT.TTL != time.Hour {
		t.Errorf("expected default jwt ttl 1h, got %s", cfg.Admin.JWT.TTL)
	}
}

func TestApplyDefaults_Quotas(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Quotas.MaxHostedIdentities != 10000 {
		t.Errorf("expected default max hosted identities 10000, got %d", cfg.Quotas.MaxHostedIdentities)
	}
	if cfg.Quotas.MaxNeighborhoodSize != 256 {
		t.Errorf("expected default max neighborhood size 256, got %d", cfg.Quotas.MaxNeighborhoodSize)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "ERROR", Format: "json", Output: "stderr"},
		Quotas:  QuotasConfig{MaxHostedIdentities: 5},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("expected explicit log level preserved, got %s", cfg.Logging.Level)
	}
	if cfg.Quotas.MaxHostedIdentities != 5 {
		t.Errorf("expected explicit quota preserved, got %d", cfg.Quotas.MaxHostedIdentities)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected default config to validate, got: %v", err)
	}
}

func TestGetDefaultConfig_HasRoleBindings(t *testing.T) {
	cfg := GetDefaultConfig()

	if len(cfg.Roles.Bindings) == 0 {
		t.Error("expected default config to have at least one role binding")
	}
}
