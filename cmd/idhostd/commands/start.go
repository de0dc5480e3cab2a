package commands

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/idhost/internal/adminapi"
	"github.com/marmos91/idhost/internal/config"
	"github.com/marmos91/idhost/internal/cryptoutil"
	"github.com/marmos91/idhost/internal/directory"
	"github.com/marmos91/idhost/internal/images"
	"github.com/marmos91/idhost/internal/logger"
	"github.com/marmos91/idhost/internal/registry"
	"github.com/marmos91/idhost/internal/relay"
	"github.com/marmos91/idhost/internal/server"
	"github.com/marmos91/idhost/internal/store"
	"github.com/marmos91/idhost/internal/telemetry"
)

// sweepInterval is how often the background maintenance loop runs
// store.SweepExpired and relay.Manager.SweepExpired.
const sweepInterval = 1 * time.Minute

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node in the foreground",
	Long: `Start idhostd in the foreground: one listener per configured role
port, the admin API, and the outbound directory connection.

The node runs until it receives SIGINT/SIGTERM or a newline is read on
stdin, at which point it shuts down gracefully and exits 0. Any failure
before the node is fully started exits non-zero.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "idhostd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "idhostd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("idhostd starting", "config", getConfigSource(GetConfigFile()))

	pub, priv, err := cryptoutil.LoadKeyPair(cfg.Identity.PublicKeyPath, cfg.Identity.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load node key pair (run 'idhostd init' first): %w", err)
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	defer func() { _ = st.Close() }()

	imgCfg := images.Config{
		Backend: cfg.Images.Backend,
		Path:    cfg.Images.Path,
		S3: images.S3Config{
			Bucket:          cfg.Images.S3.Bucket,
			Region:          cfg.Images.S3.Region,
			Endpoint:        cfg.Images.S3.Endpoint,
			Prefix:          cfg.Images.S3.Prefix,
			AccessKeyID:     cfg.Images.S3.AccessKeyID,
			SecretAccessKey: cfg.Images.S3.SecretAccessKey,
		},
	}
	imgStore, err := images.New(imgCfg)
	if err != nil {
		return fmt.Errorf("failed to open image store: %w", err)
	}
	defer func() { _ = imgStore.Close() }()

	reg := registry.New()
	relays := relay.New()
	tracker := server.NewTracker()
	relays.SetResponder(tracker)

	deps := &server.Deps{
		Registry:             reg,
		Store:                st,
		Images:               imgStore,
		Relays:               relays,
		Tracker:              tracker,
		ServerPublicKey:      pub,
		ServerPrivateKey:     priv,
		MaxHostedIdentities:  cfg.Quotas.MaxHostedIdentities,
		MaxIdentityRelations: cfg.Quotas.MaxIdentityRelations,
		MaxFollowerServers:   cfg.Quotas.MaxFollowerServersCount,
	}

	var tlsConfig *tls.Config
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	roleServers := make([]*server.RoleServer, 0, len(cfg.Roles.Bindings))
	for port, binding := range cfg.Roles.Bindings {
		roles, err := parseRoleSet(binding.Roles)
		if err != nil {
			return fmt.Errorf("role port %d: %w", port, err)
		}

		var portTLS *tls.Config
		if binding.Encrypted {
			if tlsConfig == nil {
				return fmt.Errorf("role port %d requires TLS but no tls.cert_file/tls.key_file is configured", port)
			}
			portTLS = tlsConfig
		}

		roleServers = append(roleServers, server.New(server.Config{
			BindAddress:     "0.0.0.0",
			Port:            port,
			Roles:           roles,
			TLSConfig:       portTLS,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, deps))
	}

	var dirClient *directory.Client
	if cfg.Directory.Endpoint != "" {
		dirClient, err = directory.Dial(ctx, directory.Config{
			Endpoint: cfg.Directory.Endpoint,
		}, st)
		if err != nil {
			return fmt.Errorf("failed to connect to directory: %w", err)
		}
		defer func() { _ = dirClient.Close() }()

		serverID := cfg.Identity.PublicKeyPath
		registeredPort := lowestBoundPort(cfg.Roles.Bindings)
		if err := dirClient.RegisterService(serverID, registeredPort); err != nil {
			return fmt.Errorf("failed to register with directory: %w", err)
		}
		defer func() {
			if err := dirClient.DeregisterService(serverID); err != nil {
				logger.Error("directory deregistration failed", "error", err)
			}
		}()

		if _, err := dirClient.GetNeighborNodesByDistance(true); err != nil {
			logger.Warn("initial neighborhood fetch failed", "error", err)
		}
	}

	var adminSrv *adminapi.Server
	if cfg.Admin.Port != 0 {
		adminSrv, err = adminapi.New(adminapi.Config{
			Port:         cfg.Admin.Port,
			ReadTimeout:  cfg.Admin.ReadTimeout,
			WriteTimeout: cfg.Admin.WriteTimeout,
			IdleTimeout:  cfg.Admin.IdleTimeout,
			JWTSecret:    cfg.Admin.JWT.Secret,
			JWTTTL:       cfg.Admin.JWT.TTL,
		}, adminapi.Deps{
			Store:    st,
			Registry: reg,
			Relays:   relays,
			ActiveConnections: func() int32 {
				var total int32
				for _, rs := range roleServers {
					total += rs.ActiveConnections()
				}
				return total
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create admin API: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rs := range roleServers {
		rs := rs
		g.Go(func() error { return rs.Serve(gctx) })
	}
	if adminSrv != nil {
		g.Go(func() error { return adminSrv.Start(gctx) })
	}
	g.Go(func() error { return runSweepLoop(gctx, st, relays) })

	logger.Info("idhostd running", "role_ports", len(roleServers), "admin_port", cfg.Admin.Port)

	waitForShutdownSignal(ctx, cancel)

	if err := g.Wait(); err != nil {
		logger.Error("idhostd shutdown error", "error", err)
		return err
	}
	logger.Info("idhostd stopped gracefully")
	return nil
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM, a newline on stdin
//, or ctx is already done, then cancels ctx.
func waitForShutdownSignal(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	stdinLine := make(chan struct{}, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			stdinLine <- struct{}{}
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-stdinLine:
		logger.Info("shutdown requested via stdin")
	case <-ctx.Done():
	}
	cancel()
}

// lowestBoundPort picks a deterministic port to advertise to the
// directory when a node serves more than one role port, since
// RegisterService carries a single port per server.
func lowestBoundPort(bindings map[int]config.RoleBinding) uint32 {
	lowest := 0
	for port := range bindings {
		if lowest == 0 || port < lowest {
			lowest = port
		}
	}
	return uint32(lowest)
}

// runSweepLoop periodically expires stale hosted identities and relays.
func runSweepLoop(ctx context.Context, st *store.Store, relays *relay.Manager) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expired, err := st.SweepExpired(ctx)
			if err != nil {
				logger.Error("identity sweep failed", "error", err)
				continue
			}
			relaysExpired := relays.SweepExpired(ctx)
			if expired > 0 || relaysExpired > 0 {
				logger.Info("sweep completed", "expired_identities", expired, "expired_relays", relaysExpired)
			}
		}
	}
}
