// Package adapter provides the shared TCP/TLS server lifecycle that protocol
// adapters build on.
package adapter

import "context"

// Adapter is a network server with a managed lifecycle.
//
// Lifecycle:
//  1. Creation: the adapter is built with its configuration and shared state
//  2. Startup: Serve() listens and blocks until shutdown
//  3. Shutdown: Stop() closes the listener and drains connections
//
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve starts the server and blocks until ctx is cancelled or the
	// listener fails. It returns nil after a graceful shutdown.
	Serve(ctx context.Context) error

	// Stop initiates shutdown and waits for active connections until ctx
	// expires.
	Stop(ctx context.Context) error

	// Protocol returns the name used in logs and metrics.
	Protocol() string

	// Port returns the bound TCP port, or the configured port before Serve.
	Port() int
}
