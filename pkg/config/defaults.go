package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittosh/internal/telemetry"
	"github.com/marmos91/dittosh/pkg/adapter/shell"
	"github.com/marmos91/dittosh/pkg/credentials"
	"github.com/marmos91/dittosh/pkg/session"
)

// DefaultMetricsPort is where /metrics is served when enabled.
const DefaultMetricsPort = 9090

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults, explicit values are preserved.
// Booleans cannot be told apart from an explicit false here, so their
// defaults come from Load seeding viper with GetDefaultConfig.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	cfg.Credentials.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
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

func applyTelemetryDefaults(cfg *telemetry.Config) {
	def := telemetry.DefaultConfig()

	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = def.ServiceVersion
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = def.Profiling.Endpoint
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = def.Profiling.ProfileTypes
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyServerDefaults(cfg *shell.Config) {
	if cfg.Port == 0 {
		cfg.Port = shell.DefaultPort
	}
	cfg.ApplyDefaults()
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = session.DefaultMaxAttempts
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = credentials.DefaultBcryptCost
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a Config with every default applied.
//
// Unlike ApplyDefaults on a zero Config, it also turns on the defaults
// that are true booleans: auto-registration, insecure OTLP transport and a
// self-signed TLS certificate.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: telemetry.DefaultConfig(),
		Server:    shell.DefaultConfig(),
		Auth: AuthConfig{
			AutoRegister: true,
		},
	}
	cfg.Server.TLS.SelfSigned = true
	ApplyDefaults(cfg)
	return cfg
}
