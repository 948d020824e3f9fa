// Package shell serves the dittosh protocol: one authenticated shell session
// per TLS connection.
package shell

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/pkg/adapter"
	"github.com/marmos91/dittosh/pkg/metrics"
	"github.com/marmos91/dittosh/pkg/session"
	"github.com/marmos91/dittosh/pkg/vfs"
)

// ProtocolName identifies the adapter in logs and metrics.
const ProtocolName = "SHELL"

// Deps are the shared resources every session uses.
type Deps struct {
	// Auth verifies and registers users. Usually a *credentials.Store.
	Auth session.Authenticator

	// Tree is the directory tree sessions navigate.
	Tree *vfs.Tree

	// TLS wraps the listener. Nil serves plain TCP, which tests use.
	TLS *tls.Config

	// MaxAttempts is the failed-login cap per connection.
	MaxAttempts int

	// Metrics is optional.
	Metrics metrics.ShellMetrics
}

// Adapter accepts connections and runs a Connection for each.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed and blocked reads interrupted [BaseAdapter]
//  3. Connections see ShutdownCtx cancelled and end their sessions
//  4. Remaining connections are force-closed after Timeouts.Shutdown [BaseAdapter]
type Adapter struct {
	*adapter.BaseAdapter

	config Config
	deps   Deps
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a stopped Adapter. Zero config values take their defaults.
func New(config Config, deps Deps) (*Adapter, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = session.DefaultMaxAttempts
	}

	base := adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:        config.BindAddress,
		Port:               config.Port,
		MaxConnections:     config.MaxConnections,
		ShutdownTimeout:    config.Timeouts.Shutdown,
		HandshakeTimeout:   config.Timeouts.Handshake,
		MetricsLogInterval: config.MetricsLogInterval,
		TLS:                deps.TLS,
	}, ProtocolName)

	// Assign only a non-nil recorder so the interface stays nil when disabled.
	if deps.Metrics != nil {
		base.Metrics = deps.Metrics
	}

	logger.Debug("Shell adapter configured",
		"idle_timeout", config.Timeouts.Idle,
		"write_timeout", config.Timeouts.Write,
		logger.KeyMaxSize, config.MaxMessageSize.String(),
		logger.KeyMaxTries, deps.MaxAttempts)

	return &Adapter{BaseAdapter: base, config: config, deps: deps}, nil
}

// Serve accepts connections until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	return a.ServeWithFactory(ctx, a, nil, nil)
}

// NewConnection implements adapter.ConnectionFactory.
func (a *Adapter) NewConnection(conn net.Conn) adapter.ConnectionHandler {
	return NewConnection(a, conn)
}

// ShellConfig returns the effective configuration.
func (a *Adapter) ShellConfig() Config {
	return a.config
}
