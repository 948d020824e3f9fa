package shell

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/internal/telemetry"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/session"
)

// Connection runs one session over one accepted connection. Requests are
// handled strictly in order; the connection owns its Session exclusively.
type Connection struct {
	server *Adapter
	conn   net.Conn
	frames *protocol.FrameReader
	maxMsg int
}

// NewConnection creates a handler for conn.
func NewConnection(server *Adapter, conn net.Conn) *Connection {
	maxMsg := server.config.MaxMessageSize.Int()
	return &Connection{
		server: server,
		conn:   conn,
		frames: protocol.NewFrameReader(conn, maxMsg),
		maxMsg: maxMsg,
	}
}

// Serve reads, handles and answers messages until the session ends. The
// connection is closed on return.
//
// The session ends when:
//   - the client sends exit or closes the stream
//   - the failed-login cap is reached
//   - the client violates the protocol or sends an oversized frame
//   - the connection is idle for Timeouts.Idle
//   - a read or write fails
//   - the server shuts down
func (c *Connection) Serve(ctx context.Context) {
	remote := c.conn.RemoteAddr().String()
	sess := session.New(c.server.deps.Auth, c.server.deps.Tree, session.Options{
		MaxAttempts: c.server.deps.MaxAttempts,
		Metrics:     c.server.deps.Metrics,
	})

	ctx, span := telemetry.StartSessionSpan(ctx, sess.ID(), remote)
	lc := logger.NewLogContext(sess.ID(), clientIP(remote)).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	reason := session.ReasonNone
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "Panic in shell session", logger.KeyError, r)
			reason = session.ReasonIOError
		}
		c.frames.Release()
		_ = c.conn.Close()

		elapsed := time.Since(sess.Started())
		if m := c.server.deps.Metrics; m != nil {
			m.RecordSessionClosed(string(reason), elapsed)
		}
		span.SetAttributes(telemetry.CloseReason(string(reason)))
		span.End()
		logger.InfoCtx(ctx, "Session closed",
			logger.KeyReason, string(reason),
			logger.KeyState, sess.State().String(),
			logger.KeyDurationMs, float64(elapsed.Microseconds())/1000)
	}()

	logger.InfoCtx(ctx, "Session opened")

	for {
		select {
		case <-ctx.Done():
			reason = session.ReasonShutdown
			return
		default:
		}

		if idle := c.server.config.Timeouts.Idle; idle > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
				logger.DebugCtx(ctx, "Failed to set read deadline", logger.KeyError, err)
			}
		}
		// Shutdown may have shortened the deadline just before it was reset.
		if c.shuttingDown() {
			reason = session.ReasonShutdown
			return
		}

		frame, err := c.frames.ReadFrame()
		if err != nil {
			reason = c.readFailure(ctx, err)
			return
		}
		c.recordBytes("in", protocol.HeaderSize+len(frame))

		msg, err := protocol.Decode(frame)
		if err != nil {
			// Decode errors are recoverable: the frame was consumed whole.
			if m := c.server.deps.Metrics; m != nil {
				m.RecordDecodeError()
			}
			logger.WarnCtx(ctx, "Dropping undecodable message",
				logger.KeyFrameSize, len(frame),
				logger.KeyError, err)
			continue
		}

		res, err := c.handle(ctx, lc, sess, msg)
		if err != nil {
			logger.WarnCtx(ctx, "Protocol violation, closing connection",
				logger.KeyMessageType, string(msg.Type()),
				logger.KeyState, sess.State().String(),
				logger.KeyError, err)
			reason = res.Reason
			return
		}

		if name := sess.Username(); name != "" && lc.Username != name {
			lc = lc.WithUsername(name)
			ctx = logger.WithContext(ctx, lc)
			span.SetAttributes(telemetry.Username(name))
		}

		if res.Response != nil {
			if err := c.write(res.Response); err != nil {
				logger.DebugCtx(ctx, "Write failed", logger.KeyError, err)
				reason = session.ReasonIOError
				return
			}
		}

		if res.Close {
			reason = res.Reason
			return
		}
	}
}

// handle runs one message through the session inside a request span.
func (c *Connection) handle(ctx context.Context, lc *logger.LogContext, sess *session.Session, msg protocol.Message) (session.Result, error) {
	var attrs []attribute.KeyValue
	switch m := msg.(type) {
	case protocol.Auth:
		attrs = append(attrs, telemetry.AuthMethod(string(m.Method)))
	case protocol.Command:
		if fields := strings.Fields(m.Text); len(fields) > 0 {
			attrs = append(attrs, telemetry.Command(fields[0]))
		}
	}
	ctx, span := telemetry.StartRequestSpan(ctx, string(msg.Type()), attrs...)
	defer span.End()
	ctx = logger.WithContext(ctx, lc.WithMessageType(string(msg.Type())).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	res, err := sess.Handle(ctx, msg)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return res, err
	}
	switch r := res.Response.(type) {
	case protocol.CommandResponse:
		span.SetAttributes(telemetry.Success(r.Success),
			telemetry.Path(c.server.deps.Tree.Pwd(sess.Cwd())))
	case protocol.AuthResponse:
		span.SetAttributes(telemetry.Success(r.Success), telemetry.AuthResult(authResult(r.Success)))
	case protocol.TabCompleteResponse:
		span.SetAttributes(telemetry.Candidates(len(r.Candidates)))
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (c *Connection) write(msg protocol.Message) error {
	if wt := c.server.config.Timeouts.Write; wt > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(wt)); err != nil {
			return err
		}
	}
	body, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := protocol.WriteFrame(c.conn, body, c.maxMsg); err != nil {
		return err
	}
	c.recordBytes("out", protocol.HeaderSize+len(body))
	return nil
}

// readFailure logs a fatal read error and maps it to a close reason.
func (c *Connection) readFailure(ctx context.Context, err error) session.CloseReason {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		logger.DebugCtx(ctx, "Connection closed by client")
		return session.ReasonEOF
	case errors.Is(err, protocol.ErrFrameTooLarge):
		logger.WarnCtx(ctx, "Oversized frame, closing connection",
			logger.KeyMaxSize, c.maxMsg,
			logger.KeyError, err)
		return session.ReasonFramingError
	case c.shuttingDown():
		logger.DebugCtx(ctx, "Connection closed for shutdown")
		return session.ReasonShutdown
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.InfoCtx(ctx, "Idle timeout, closing connection",
			"idle_timeout", c.server.config.Timeouts.Idle)
		return session.ReasonIdleTimeout
	default:
		logger.DebugCtx(ctx, "Read failed", logger.KeyError, err)
		return session.ReasonIOError
	}
}

func (c *Connection) shuttingDown() bool {
	select {
	case <-c.server.Shutdown:
		return true
	default:
		return false
	}
}

func (c *Connection) recordBytes(direction string, n int) {
	if m := c.server.deps.Metrics; m != nil {
		m.RecordBytes(direction, n)
	}
}

func authResult(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
