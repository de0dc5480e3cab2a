// Package config loads and validates idhostd's configuration.
//
// Configuration sources, in order of precedence:
//  1. CLI flags (highest priority)
//  2. Environment variables (IDHOST_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/idhost/internal/bytesize"
	"github.com/marmos91/idhost/internal/store"
)

// Config is the complete static configuration for an idhostd node.
//
// Dynamic state (hosted identities, relations, follower bookkeeping) lives
// in the database configured here, not in this struct.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the profile store (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Admin contains the control-plane HTTP API server configuration.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Identity contains this node's own signing key pair.
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	// Roles maps listening ports to the protocol roles offered on them.
	Roles RolesConfig `mapstructure:"roles" yaml:"roles"`

	// Quotas bounds the amount of state a single node will carry.
	Quotas QuotasConfig `mapstructure:"quotas" yaml:"quotas"`

	// Directory configures the outbound connection to the neighborhood
	// oracle this node registers itself with.
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`

	// Images configures where profile images are stored.
	Images ImagesConfig `mapstructure:"images" yaml:"images"`

	// TLS configures the certificate used by every encrypted role port.
	// Validation of the certificate by peers is out of scope;
	// this is only the server-side credential.
	TLS TLSConfig `mapstructure:"tls" yaml:"tls"`
}

// TLSConfig points at the certificate/key pair served on every port whose
// RoleBinding sets Encrypted. Provisioning the certificate itself (self-
// signed or CA-issued) is outside the core's scope.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile  string `mapstructure:"key_file" yaml:"key_file"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized
	// to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format. Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig holds Prometheus metrics settings. No separate metrics
// HTTP server is started from it; metrics are served on the admin API's
// /metrics route.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AdminConfig configures the control-plane HTTP API: health, stats, sweep,
// and metrics scraping.
type AdminConfig struct {
	// Port is the HTTP port for the admin API.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// JWT configures admin API authentication.
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig configures JWT token generation and validation for the admin
// API.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	// Can also be set via IDHOST_ADMIN_JWT_SECRET.
	Secret string `mapstructure:"secret" validate:"required,min=32" yaml:"secret"`

	// TTL is how long issued tokens remain valid.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// IdentityConfig holds this node's own Ed25519 key pair. The public key is
// sent to clients when a conversation starts; the private key is loaded
// but nothing is signed with it.
type IdentityConfig struct {
	// PublicKeyPath is the path to the node's Ed25519 public key, stored
	// as raw 32 bytes; PEM files are not accepted.
	PublicKeyPath string `mapstructure:"public_key_path" validate:"required" yaml:"public_key_path"`

	// PrivateKeyPath is the path to the node's Ed25519 private key.
	PrivateKeyPath string `mapstructure:"private_key_path" validate:"required" yaml:"private_key_path"`
}

// RoleBinding describes the protocol roles offered on a single listening
// port.
type RoleBinding struct {
	// Encrypted requires TLS on connections accepted on this port.
	Encrypted bool `mapstructure:"encrypted" yaml:"encrypted"`

	// Roles lists the role names accepted on this port (e.g. "customer",
	// "non_customer", "app_service").
	Roles []string `mapstructure:"roles" validate:"required,min=1" yaml:"roles"`
}

// RolesConfig maps listening ports to the role sets they serve.
type RolesConfig struct {
	Bindings map[int]RoleBinding `mapstructure:"bindings" validate:"required,min=1" yaml:"bindings"`
}

// QuotasConfig bounds the amount of per-node state the store and session
// layers will accumulate.
type QuotasConfig struct {
	// MaxHostedIdentities caps the number of identities this node will
	// host at once.
	MaxHostedIdentities int `mapstructure:"max_hosted_identities" validate:"omitempty,gt=0" yaml:"max_hosted_identities"`

	// MaxIdentityRelations caps the number of relationship cards a
	// single hosted identity may hold.
	MaxIdentityRelations int `mapstructure:"max_identity_relations" validate:"omitempty,gt=0" yaml:"max_identity_relations"`

	// MaxFollowerServersCount caps the number of follower nodes a host
	// may register.
	MaxFollowerServersCount int `mapstructure:"max_follower_servers_count" validate:"omitempty,gt=0" yaml:"max_follower_servers_count"`

	// MaxNeighborhoodSize is loaded from configuration but no code reads
	// it; neighbor identities mirrored from the directory are not capped.
	MaxNeighborhoodSize int `mapstructure:"max_neighborhood_size" validate:"omitempty,gt=0" yaml:"max_neighborhood_size"`
}

// DirectoryConfig configures the outbound connection to the neighborhood
// oracle.
type DirectoryConfig struct {
	// Endpoint is the directory's host:port.
	Endpoint string `mapstructure:"endpoint" validate:"required" yaml:"endpoint"`

	// RefreshInterval is loaded and defaulted but not read by the
	// directory client; the node does not poll the directory, it applies
	// the neighborhood changes the directory pushes.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"omitempty,gt=0" yaml:"refresh_interval"`
}

// ImagesConfig configures where profile images are stored.
type ImagesConfig struct {
	// Backend selects the storage backend: "disk" or "s3".
	Backend string `mapstructure:"backend" validate:"required,oneof=disk s3" yaml:"backend"`

	// Path is the images directory, used when Backend is "disk".
	Path string `mapstructure:"path" yaml:"path"`

	// S3 configures the S3 backend, used when Backend is "s3".
	S3 ImagesS3Config `mapstructure:"s3" yaml:"s3"`
}

// ImagesS3Config configures the S3-backed image store. AccessKeyID and
// SecretAccessKey are optional static credentials; when unset the
// ambient AWS credential chain is used.
type ImagesS3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("default configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when no
// config file exists at the default location.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  idhostd init\n\n"+
				"Or specify a custom config file:\n"+
				"  idhostd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  idhostd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("IDHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "idhost")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "idhost")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
