package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/pkg/config"
	"github.com/marmos91/dittosh/pkg/credentials"
	"github.com/marmos91/dittosh/pkg/credentials/persist"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the configuration for commands that work without a
// config file, falling back to defaults plus environment overrides.
func loadConfig() (*config.Config, error) {
	return config.Load(GetConfigFile())
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// openStore opens the configured persistence backend and loads the
// credential table from it. The returned backend must be closed by the
// caller.
func openStore(ctx context.Context, cfg *config.Config) (*credentials.Store, persist.Backend, error) {
	backend, err := persist.Open(ctx, cfg.Credentials)
	if err != nil {
		return nil, nil, err
	}

	store := credentials.NewStore(credentials.Options{
		Persister:            backend,
		Hasher:               credentials.BcryptHasher{Cost: cfg.Auth.BcryptCost},
		AutoRegister:         cfg.Auth.AutoRegister,
		AllowCertificateStub: cfg.Auth.AllowCertificateStub,
	})
	if err := store.Load(ctx); err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	logger.Debug("Credential store opened",
		logger.KeyStoreType, string(cfg.Credentials.Type),
		logger.KeyLocation, cfg.Credentials.Location(),
		logger.KeyUsers, store.Count())
	return store, backend, nil
}
