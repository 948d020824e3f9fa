package adapter

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittosh/internal/logger"
)

// DefaultHandshakeTimeout bounds the TLS handshake of a new connection.
const DefaultHandshakeTimeout = 10 * time.Second

// ConnectionHandler serves one accepted connection. Serve blocks until the
// connection is finished; the caller closes the underlying net.Conn afterwards.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates handlers for accepted connections.
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// BaseConfig holds configuration common to all adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is how long Serve waits for connections to drain
	// before force-closing them.
	ShutdownTimeout time.Duration

	// HandshakeTimeout bounds the TLS handshake. 0 selects
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// MetricsLogInterval logs the active connection count periodically.
	// 0 disables it.
	MetricsLogInterval time.Duration

	// TLS wraps the listener when set. Nil serves plain TCP.
	TLS *tls.Config
}

// MetricsRecorder records connection lifecycle metrics.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// OnConnectionClose is invoked with the remote address when a connection's
// goroutine finishes.
type OnConnectionClose func(addr string)

// BaseAdapter runs the accept loop, connection tracking and graceful shutdown
// for an adapter. Protocol behavior is injected through ConnectionFactory.
//
// All exported methods are safe for concurrent use.
type BaseAdapter struct {
	Config BaseConfig

	protocolName string

	// Metrics is optional.
	Metrics MetricsRecorder

	listener   net.Listener
	listenerMu sync.RWMutex
	serving    atomic.Bool

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once

	// Shutdown is closed when shutdown begins.
	Shutdown chan struct{}

	// ConnCount is the number of live connections.
	ConnCount atomic.Int32

	// connSemaphore is nil when MaxConnections is 0.
	connSemaphore chan struct{}

	// ShutdownCtx is handed to every connection and cancelled on shutdown.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc

	// ActiveConnections maps remote address to net.Conn for forced closure.
	ActiveConnections sync.Map

	// ListenerReady is closed once the listener is bound, or when Serve
	// fails before binding.
	ListenerReady chan struct{}
	readyOnce     sync.Once
}

// NewBaseAdapter creates a stopped BaseAdapter.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

// ServeWithFactory runs the accept loop until ctx is cancelled or Stop is
// called. preAccept may reject a connection before it is tracked; onClose
// runs when a connection goroutine exits. Both are optional.
func (b *BaseAdapter) ServeWithFactory(
	ctx context.Context,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	if !b.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	listenAddr := net.JoinHostPort(b.Config.BindAddress, strconv.Itoa(b.Config.Port))
	tcpListener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		b.readyOnce.Do(func() { close(b.ListenerReady) })
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, listenAddr, err)
	}

	var listener net.Listener = tcpListener
	if b.Config.TLS != nil {
		listener = tls.NewListener(tcpListener, b.Config.TLS)
	}

	b.listenerMu.Lock()
	b.listener = listener
	b.listenerMu.Unlock()
	b.readyOnce.Do(func() { close(b.ListenerReady) })

	logger.Info(b.protocolName+" server listening",
		logger.KeyListenAddr, tcpListener.Addr().String(),
		"tls", b.Config.TLS != nil)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", logger.KeyError, ctx.Err())
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	for {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
				logger.Debug("Error accepting "+b.protocolName+" connection", logger.KeyError, err)
				continue
			}
		}

		setNoDelay(conn)

		if preAccept != nil && !preAccept(conn) {
			_ = conn.Close()
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			continue
		}

		b.activeConns.Add(1)
		current := b.ConnCount.Add(1)

		connAddr := conn.RemoteAddr().String()
		b.ActiveConnections.Store(connAddr, conn)

		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(current)
		}
		logger.Debug(b.protocolName+" connection accepted",
			logger.KeyAddress, connAddr,
			logger.KeyActive, current)

		go b.serveConn(factory, conn, connAddr, onClose)
	}
}

func (b *BaseAdapter) serveConn(factory ConnectionFactory, conn net.Conn, addr string, onClose OnConnectionClose) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in "+b.protocolName+" connection handler",
				logger.KeyAddress, addr, logger.KeyError, r)
		}
		_ = conn.Close()

		if onClose != nil {
			onClose(addr)
		}
		b.ActiveConnections.Delete(addr)

		b.activeConns.Done()
		remaining := b.ConnCount.Add(-1)
		if b.connSemaphore != nil {
			<-b.connSemaphore
		}
		if b.Metrics != nil {
			b.Metrics.RecordConnectionClosed()
			b.Metrics.SetActiveConnections(remaining)
		}
		logger.Debug(b.protocolName+" connection closed",
			logger.KeyAddress, addr,
			logger.KeyActive, remaining)
	}()

	if tlsConn, ok := conn.(*tls.Conn); ok {
		hctx, cancel := context.WithTimeout(b.ShutdownCtx, b.Config.HandshakeTimeout)
		err := tlsConn.HandshakeContext(hctx)
		cancel()
		if err != nil {
			logger.Debug(b.protocolName+" TLS handshake failed", logger.KeyAddress, addr, logger.KeyError, err)
			return
		}
	}

	factory.NewConnection(conn).Serve(b.ShutdownCtx)
}

func setNoDelay(conn net.Conn) {
	if tlsConn, ok := conn.(*tls.Conn); ok {
		conn = tlsConn.NetConn()
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			logger.Debug("Failed to set TCP_NODELAY", logger.KeyError, err)
		}
	}
}

// initiateShutdown closes the listener, interrupts blocked reads and cancels
// ShutdownCtx. Safe to call repeatedly.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")

		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", logger.KeyError, err)
			}
		}
		b.listenerMu.Unlock()

		b.interruptBlockingReads()
		b.CancelRequests()
	})
}

func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline on connection",
					logger.KeyAddress, key, logger.KeyError, err)
			}
		}
		return true
	})
}

// gracefulShutdown waits up to ShutdownTimeout for connections to finish and
// force-closes whatever is left.
func (b *BaseAdapter) gracefulShutdown() error {
	active := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		logger.KeyActive, active, "timeout", b.Config.ShutdownTimeout)

	select {
	case <-b.drained():
		logger.Info(b.protocolName + " graceful shutdown complete")
		return nil

	case <-time.After(b.Config.ShutdownTimeout):
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded, forcing closure",
			logger.KeyActive, remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s: %d connections force-closed: %w", b.protocolName, remaining, ErrShutdownTimeout)
	}
}

func (b *BaseAdapter) drained() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

func (b *BaseAdapter) forceCloseConnections() {
	closed := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyAddress, key, logger.KeyError, err)
			return true
		}
		closed++
		if b.Metrics != nil {
			b.Metrics.RecordConnectionForceClosed()
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed "+b.protocolName+" connections", "count", closed)
	}
}

// Stop initiates shutdown and waits for active connections until ctx is done.
// A nil ctx waits up to ShutdownTimeout instead.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	select {
	case <-b.drained():
		return nil
	case <-ctx.Done():
		logger.Warn(b.protocolName+" shutdown context cancelled",
			logger.KeyActive, b.ConnCount.Load(), logger.KeyError, ctx.Err())
		b.forceCloseConnections()
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr blocks until the listener is bound and returns its address,
// or "" if Serve failed to bind.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the bound port once listening, otherwise the configured one.
func (b *BaseAdapter) Port() int {
	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener != nil {
		if addr, ok := b.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return b.Config.Port
}

// Protocol returns the protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
