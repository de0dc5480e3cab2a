package config

import (
	"strings"
	"time"

	"github.com/marmos91/idhost/internal/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields after loading from file and environment.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminDefaults(&cfg.Admin)
	applyQuotasDefaults(&cfg.Quotas)
	applyDirectoryDefaults(&cfg.Directory)
	applyImagesDefaults(&cfg.Images)
	applyDatabaseDefaults(&cfg.Database)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = time.Hour
	}
}

func applyQuotasDefaults(cfg *QuotasConfig) {
	if cfg.MaxHostedIdentities == 0 {
		cfg.MaxHostedIdentities = 10000
	}
	if cfg.MaxIdentityRelations == 0 {
		cfg.MaxIdentityRelations = 1000
	}
	if cfg.MaxFollowerServersCount == 0 {
		cfg.MaxFollowerServersCount = 8
	}
	if cfg.MaxNeighborhoodSize == 0 {
		cfg.MaxNeighborhoodSize = 256
	}
}

func applyDirectoryDefaults(cfg *DirectoryConfig) {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
}

func applyImagesDefaults(cfg *ImagesConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "disk"
	}
	if cfg.Backend == "disk" && cfg.Path == "" {
		cfg.Path = filepathJoinConfigDir("images")
	}
}

func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

func filepathJoinConfigDir(parts ...string) string {
	dir := getConfigDir()
	for _, p := range parts {
		dir = dir + "/" + p
	}
	return dir
}

// GetDefaultConfig returns a fully-populated, valid Config. Identity key
// paths, the single role binding on port 7070, the directory endpoint
// and the admin JWT secret are placeholders that an operator replaces
// before production use.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Identity: IdentityConfig{
			PublicKeyPath:  filepathJoinConfigDir("node.pub"),
			PrivateKeyPath: filepathJoinConfigDir("node.key"),
		},
		Roles: RolesConfig{
			Bindings: map[int]RoleBinding{
				7070: {Encrypted: false, Roles: []string{"non_customer", "customer", "neighbor"}},
			},
		},
		Directory: DirectoryConfig{
			Endpoint: "localhost:7000",
		},
		Admin: AdminConfig{
			JWT: JWTConfig{
				Secret: "changeme-changeme-changeme-changeme",
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
