// Package client is a Go client for the dittosh protocol.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/marmos91/dittosh/pkg/protocol"
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	// TLS secures the connection. Nil dials plain TCP.
	TLS *tls.Config

	// DialTimeout bounds connecting and the TLS handshake. Default 10s.
	DialTimeout time.Duration

	// RequestTimeout bounds each round trip when ctx has no deadline.
	// Default 30s.
	RequestTimeout time.Duration

	// MaxMessageSize bounds frames in both directions. Default 64KiB.
	MaxMessageSize int
}

func (o *Options) applyDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = protocol.DefaultMaxFrameSize
	}
}

// Client holds one session. Requests are serialized; the protocol has no
// request IDs so each call waits for its own response.
type Client struct {
	conn   net.Conn
	frames *protocol.FrameReader
	opts   Options

	closed atomic.Bool

	mu   sync.Mutex
	gone bool // server closed the session
}

// Dial connects to addr ("host:port").
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts.applyDefaults()

	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if opts.TLS != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: opts.TLS}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		conn:   conn,
		frames: protocol.NewFrameReader(conn, opts.MaxMessageSize),
		opts:   opts,
	}
}

// Authenticate sends one Auth and reports the server's verdict. A false
// verdict on the last allowed attempt is followed by the server closing the
// connection.
func (c *Client) Authenticate(ctx context.Context, method protocol.AuthMethod, username, secret string) (bool, error) {
	resp, err := c.roundTrip(ctx, protocol.Auth{Method: method, Username: username, Secret: secret})
	if err != nil {
		return false, err
	}
	return resp.(protocol.AuthResponse).Success, nil
}

// Login authenticates with a password and returns ErrAuthRejected on a
// false verdict.
func (c *Client) Login(ctx context.Context, username, password string) error {
	ok, err := c.Authenticate(ctx, protocol.MethodPassword, username, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthRejected
	}
	return nil
}

// Exec runs one command line. A failed command is reported through the
// response, not the error. After "exit" the server closes the session.
func (c *Client) Exec(ctx context.Context, line string) (protocol.CommandResponse, error) {
	resp, err := c.roundTrip(ctx, protocol.Command{Text: line})
	if err != nil {
		return protocol.CommandResponse{}, err
	}
	return resp.(protocol.CommandResponse), nil
}

// Complete returns completions for the last token of input.
func (c *Client) Complete(ctx context.Context, input string) ([]string, error) {
	resp, err := c.roundTrip(ctx, protocol.TabComplete{Input: input})
	if err != nil {
		return nil, err
	}
	return resp.(protocol.TabCompleteResponse).Candidates, nil
}

// Close closes the connection without sending exit. A request in flight
// fails with ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	// Closing first unblocks a roundTrip holding c.mu.
	err := c.conn.Close()

	c.mu.Lock()
	c.frames.Release()
	c.mu.Unlock()
	return err
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Client) roundTrip(ctx context.Context, req protocol.Message) (protocol.Message, error) {
	want, _ := protocol.ResponseTypeFor(req.Type())
	body, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed.Load():
		return nil, ErrClosed
	case c.gone:
		return nil, ErrConnectionClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.RequestTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := protocol.WriteFrame(c.conn, body, c.opts.MaxMessageSize); err != nil {
		return nil, c.transportError(ctx, "send", err)
	}

	resp, err := c.frames.ReadMessage()
	if err != nil {
		return nil, c.transportError(ctx, "receive", err)
	}
	if resp.Type() != want {
		return nil, &UnexpectedResponseError{Want: want, Got: resp.Type()}
	}
	return resp, nil
}

// transportError maps a failed read or write. Callers hold c.mu.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The conn deadline mirrors ctx's and can fire before ctx notices.
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		c.gone = true
		return ErrConnectionClosed
	}
	return fmt.Errorf("%s: %w", op, err)
}
