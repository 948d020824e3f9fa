package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/dittosh/internal/logger"
	"github.com/spf13/viper"
)

// Watch reloads configPath whenever it changes on disk and hands the result
// to onChange. A file that fails to load or validate is reported with a
// nil Config and the previous settings stay in force.
//
// Only settings that are safe to swap on a live process should be applied
// by onChange; the server listener is bound once at start.
func Watch(configPath string, onChange func(*Config, error)) error {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}

	v := viper.New()
	if err := setupViper(v, configPath); err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug("Configuration file changed", "file", e.Name, "op", e.Op.String())
		onChange(decode(v))
	})
	v.WatchConfig()
	return nil
}

// ApplyLogLevel is an onChange helper that hot-reloads the log level.
func ApplyLogLevel(cfg *Config, err error) {
	if err != nil {
		logger.Warn("Ignoring invalid configuration reload", logger.Err(err))
		return
	}
	if cfg.Logging.Level == logger.GetLevel() {
		return
	}
	logger.Info("Log level changed", "from", logger.GetLevel(), "to", cfg.Logging.Level)
	logger.SetLevel(cfg.Logging.Level)
}
