package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/internal/telemetry"
	"github.com/marmos91/dittosh/pkg/adapter/shell"
	"github.com/marmos91/dittosh/pkg/config"
	"github.com/marmos91/dittosh/pkg/credentials/persist"
	"github.com/marmos91/dittosh/pkg/metrics"
	"github.com/marmos91/dittosh/pkg/metrics/prometheus"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/transport"
	"github.com/marmos91/dittosh/pkg/vfs"
	"github.com/spf13/cobra"
)

var (
	pidFile     string
	watchConfig bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dittosh server",
	Long: `Start the dittosh server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dittosh/config.yaml. Without a config
file the built-in defaults apply.

Examples:
  # Start with the default configuration
  dittosh start

  # Start with custom config file
  dittosh start --config /etc/dittosh/config.yaml

  # Start with environment variable overrides
  DITTOSH_LOGGING_LEVEL=DEBUG DITTOSH_SERVER_PORT=9000 dittosh start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file")
	startCmd.Flags().BoolVar(&watchConfig, "watch", true, "Reload the log level when the config file changes")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("%s %s (protocol %s)\n", protocol.Name, Version, protocol.Version)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	if watchConfig {
		source := GetConfigFile()
		if source == "" && config.DefaultConfigExists() {
			source = config.GetDefaultConfigPath()
		}
		if source != "" {
			if err := config.Watch(source, config.ApplyLogLevel); err != nil {
				logger.Warn("Config watch disabled", logger.Err(err))
			}
		}
	}

	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.close()

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// server is everything `start` runs, assembled from configuration.
type server struct {
	cfg     *config.Config
	adapter *shell.Adapter
	backend persist.Backend
	metrics *metrics.Server
	closers []func(context.Context) error
}

// newServer wires telemetry, the credential store, the tree, metrics and
// the shell adapter. Nothing listens until run.
func newServer(ctx context.Context, cfg *config.Config) (_ *server, err error) {
	s := &server{cfg: cfg}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceVersion = Version
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.closers = append(s.closers, telemetryShutdown)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	profilingStop, err := telemetry.InitProfiling(cfg.Telemetry.Profiling, telemetryCfg.ServiceName, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	s.closers = append(s.closers, func(context.Context) error { return profilingStop() })

	store, backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.backend = backend
	logger.Info("Credentials loaded",
		logger.KeyStoreType, string(cfg.Credentials.Type),
		logger.KeyLocation, cfg.Credentials.Location(),
		logger.KeyUsers, store.Count())

	tree, err := vfs.Load(cfg.Tree.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}
	logger.Info("Tree loaded", logger.KeyNodes, tree.Len(), "source", treeSource(cfg.Tree.File))

	var shellMetrics metrics.ShellMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		shellMetrics = prometheus.NewShellMetrics()
		s.metrics = metrics.NewServer(cfg.Metrics.Port, func() map[string]any {
			return map[string]any{
				"protocol": protocol.Version,
				"sessions": s.adapter.GetActiveConnections(),
			}
		})
	}

	tlsConfig, err := transport.ServerTLSConfig(cfg.Server.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}

	s.adapter, err = shell.New(cfg.Server, shell.Deps{
		Auth:        store,
		Tree:        tree,
		TLS:         tlsConfig,
		MaxAttempts: cfg.Auth.MaxAttempts,
		Metrics:     shellMetrics,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// run serves until ctx is cancelled. The metrics endpoint failing does not
// stop the shell server.
func (s *server) run(ctx context.Context) error {
	if s.metrics != nil {
		go func() {
			if err := s.metrics.Start(ctx); err != nil {
				logger.Error("Metrics server failed", logger.Err(err))
			}
		}()
	}

	logger.Info("Shell server starting",
		logger.KeyListenAddr, fmt.Sprintf("%s:%d", s.cfg.Server.BindAddress, s.cfg.Server.Port),
		"max_connections", s.cfg.Server.MaxConnections)

	err := s.adapter.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// close releases everything newServer acquired, bounded by ShutdownTimeout.
func (s *server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			logger.Error("Credential backend close error", logger.Err(err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Error("Shutdown error", logger.Err(err))
		}
	}
}

func treeSource(file string) string {
	if file == "" {
		return "built-in"
	}
	return file
}
