package shell

import (
	"fmt"
	"time"

	"github.com/marmos91/dittosh/internal/bytesize"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/transport"
)

// DefaultPort is the port the server listens on when none is configured.
const DefaultPort = 7878

// TimeoutsConfig groups connection timeouts.
type TimeoutsConfig struct {
	// Idle closes a connection that sends nothing for this long.
	// 0 selects the default; a negative value disables it.
	Idle time.Duration `mapstructure:"idle" yaml:"idle" json:"idle"`

	// Write bounds sending one response. 0 selects the default; a negative
	// value disables it.
	Write time.Duration `mapstructure:"write" yaml:"write" json:"write"`

	// Handshake bounds the TLS handshake.
	Handshake time.Duration `mapstructure:"handshake" yaml:"handshake" json:"handshake" validate:"min=0"`

	// Shutdown is how long Stop waits for sessions before force-closing them.
	Shutdown time.Duration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown" validate:"min=0"`
}

// Config holds the shell server configuration.
//
// Defaults (applied by New for zero values):
//   - BindAddress: 127.0.0.1
//   - Port: none, 0 picks a free port (DefaultConfig uses 7878)
//   - Timeouts.Idle: 5m (negative disables)
//   - Timeouts.Write: 30s (negative disables)
//   - Timeouts.Handshake: 10s
//   - Timeouts.Shutdown: 30s
//   - MaxMessageSize: 64KiB
type Config struct {
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" json:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent sessions. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" json:"max_connections" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`

	// MaxMessageSize bounds one frame in either direction.
	MaxMessageSize bytesize.ByteSize `mapstructure:"max_message_size" yaml:"max_message_size" json:"max_message_size" jsonschema:"type=string"`

	// MetricsLogInterval logs the active session count periodically.
	// 0 disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" json:"metrics_log_interval" validate:"min=0"`

	TLS transport.ServerConfig `mapstructure:"tls" yaml:"tls" json:"tls"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	c := Config{Port: DefaultPort}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = "127.0.0.1"
	}
	if c.Timeouts.Idle == 0 {
		c.Timeouts.Idle = 5 * time.Minute
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.Timeouts.Handshake == 0 {
		c.Timeouts.Handshake = 10 * time.Second
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = 30 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = protocol.DefaultMaxFrameSize
	}
}

// Validate checks values ApplyDefaults cannot repair.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxMessageSize < 64 {
		return fmt.Errorf("invalid max_message_size %s: must be at least 64B", c.MaxMessageSize)
	}
	if c.MaxMessageSize > 1<<32-1 {
		return fmt.Errorf("invalid max_message_size %s: exceeds the 4-byte length prefix", c.MaxMessageSize)
	}
	return nil
}
