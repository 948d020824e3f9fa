package shell

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/dittosh/internal/telemetry"
	"github.com/marmos91/dittosh/pkg/credentials"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/session"
	"github.com/marmos91/dittosh/pkg/vfs"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeMetrics struct {
	mu           sync.Mutex
	decodeErrors int
	closed       []string
	bytesIn      int
	bytesOut     int
}

func (*fakeMetrics) RecordConnectionAccepted()                         {}
func (*fakeMetrics) RecordConnectionClosed()                           {}
func (*fakeMetrics) RecordConnectionForceClosed()                      {}
func (*fakeMetrics) SetActiveConnections(int32)                        {}
func (*fakeMetrics) RecordAuthAttempt(string, string)                  {}
func (*fakeMetrics) RecordRequest(string, string, time.Duration, bool) {}

func (m *fakeMetrics) RecordDecodeError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeErrors++
}

func (m *fakeMetrics) RecordSessionClosed(reason string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, reason)
}

func (m *fakeMetrics) RecordBytes(direction string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if direction == "in" {
		m.bytesIn += n
	} else {
		m.bytesOut += n
	}
}

func (m *fakeMetrics) closeReasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

func testDeps(t *testing.T, m *fakeMetrics) Deps {
	t.Helper()
	tree, err := vfs.DefaultSpec().Build()
	require.NoError(t, err)

	store := credentials.NewStore(credentials.Options{
		Hasher:       credentials.BcryptHasher{Cost: 4},
		AutoRegister: true,
	})
	require.NoError(t, store.Add(context.Background(), "alice", "secret"))

	deps := Deps{Auth: store, Tree: tree}
	if m != nil {
		deps.Metrics = m
	}
	return deps
}

type pipeClient struct {
	t      *testing.T
	conn   net.Conn
	frames *protocol.FrameReader
	done   chan struct{}
}

// startPipe serves one Connection over net.Pipe and returns the client end.
func startPipe(t *testing.T, cfg Config, deps Deps) *pipeClient {
	t.Helper()
	a, err := New(cfg, deps)
	require.NoError(t, err)

	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.NewConnection(server).Serve(context.Background())
	}()
	t.Cleanup(func() {
		_ = client.Close()
		<-done
	})

	return &pipeClient{t: t, conn: client, frames: protocol.NewFrameReader(client, 0), done: done}
}

func (p *pipeClient) send(msg protocol.Message) {
	p.t.Helper()
	require.NoError(p.t, protocol.WriteMessage(p.conn, msg, 0))
}

func (p *pipeClient) recv() protocol.Message {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msg, err := p.frames.ReadMessage()
	require.NoError(p.t, err)
	return msg
}

func (p *pipeClient) roundTrip(msg protocol.Message) protocol.Message {
	p.t.Helper()
	p.send(msg)
	return p.recv()
}

// expectClosed asserts the server closed without sending anything else.
func (p *pipeClient) expectClosed() {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := p.frames.ReadFrame()
	assert.ErrorIs(p.t, err, io.EOF)

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		p.t.Fatal("Serve did not return")
	}
}

func password(user, secret string) protocol.Auth {
	return protocol.Auth{Method: protocol.MethodPassword, Username: user, Secret: secret}
}

// =============================================================================
// Session Flow Tests
// =============================================================================

func TestConnection_ShellSession(t *testing.T) {
	m := &fakeMetrics{}
	p := startPipe(t, Config{}, testDeps(t, m))

	assert.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("alice", "secret")))
	assert.Equal(t, protocol.CommandResponse{Text: "/", Success: true}, p.roundTrip(protocol.Command{Text: "pwd"}))
	assert.Equal(t, protocol.CommandResponse{Text: "/dir1", Success: true}, p.roundTrip(protocol.Command{Text: "cd dir1"}))
	assert.Equal(t, protocol.CommandResponse{Text: "file1.txt\nfile2.txt", Success: true}, p.roundTrip(protocol.Command{Text: "ls"}))
	assert.Equal(t, protocol.TabCompleteResponse{Candidates: []string{"file1.txt", "file2.txt"}}, p.roundTrip(protocol.TabComplete{Input: "ls file"}))
	assert.Equal(t, protocol.CommandResponse{Text: "cd: no such directory: nofile", Success: false}, p.roundTrip(protocol.Command{Text: "cd nofile"}))
	assert.Equal(t, protocol.CommandResponse{Text: "Goodbye", Success: true}, p.roundTrip(protocol.Command{Text: "exit"}))
	p.expectClosed()

	assert.Equal(t, []string{string(session.ReasonExit)}, m.closeReasons())
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Positive(t, m.bytesIn)
	assert.Positive(t, m.bytesOut)
}

func TestConnection_AutoRegistersNewUser(t *testing.T) {
	deps := testDeps(t, nil)
	p := startPipe(t, Config{}, deps)

	assert.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("bob", "hunter2")))

	store := deps.Auth.(*credentials.Store)
	_, ok := store.Get("bob")
	assert.True(t, ok)
}

func TestConnection_RetryCap(t *testing.T) {
	m := &fakeMetrics{}
	p := startPipe(t, Config{}, testDeps(t, m))

	for i := 0; i < session.DefaultMaxAttempts; i++ {
		assert.Equal(t, protocol.AuthResponse{Success: false}, p.roundTrip(password("alice", "wrong")))
	}
	p.expectClosed()
	assert.Equal(t, []string{string(session.ReasonAuthExhausted)}, m.closeReasons())
}

func TestConnection_ConfiguredRetryCap(t *testing.T) {
	deps := testDeps(t, nil)
	deps.MaxAttempts = 1
	p := startPipe(t, Config{}, deps)

	assert.Equal(t, protocol.AuthResponse{Success: false}, p.roundTrip(password("alice", "wrong")))
	p.expectClosed()
}

func TestConnection_ViolationClosesSilently(t *testing.T) {
	tests := []struct {
		name  string
		login bool
		msg   protocol.Message
	}{
		{"CommandBeforeAuth", false, protocol.Command{Text: "ls"}},
		{"TabCompleteBeforeAuth", false, protocol.TabComplete{Input: ""}},
		{"AuthAfterLogin", true, password("alice", "secret")},
		{"ResponseFromClient", true, protocol.CommandResponse{Text: "hi", Success: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMetrics{}
			p := startPipe(t, Config{}, testDeps(t, m))
			if tt.login {
				require.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("alice", "secret")))
			}

			p.send(tt.msg)
			p.expectClosed()
			assert.Equal(t, []string{string(session.ReasonProtocolViolation)}, m.closeReasons())
		})
	}
}

func TestConnection_DecodeErrorIsRecoverable(t *testing.T) {
	m := &fakeMetrics{}
	p := startPipe(t, Config{}, testDeps(t, m))

	require.NoError(t, protocol.WriteFrame(p.conn, []byte("{not json"), 0))
	require.NoError(t, protocol.WriteFrame(p.conn, []byte(`{"type":"rm","payload":{}}`), 0))
	require.NoError(t, protocol.WriteFrame(p.conn, nil, 0))

	assert.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("alice", "secret")))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 3, m.decodeErrors)
}

func TestConnection_OversizedFrameCloses(t *testing.T) {
	m := &fakeMetrics{}
	p := startPipe(t, Config{MaxMessageSize: 128}, testDeps(t, m))

	var hdr [protocol.HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], 4096)
	_, err := p.conn.Write(hdr[:])
	require.NoError(t, err)

	p.expectClosed()
	assert.Equal(t, []string{string(session.ReasonFramingError)}, m.closeReasons())
}

func TestConnection_IdleTimeout(t *testing.T) {
	m := &fakeMetrics{}
	cfg := Config{Timeouts: TimeoutsConfig{Idle: 50 * time.Millisecond}}
	p := startPipe(t, cfg, testDeps(t, m))

	p.expectClosed()
	assert.Equal(t, []string{string(session.ReasonIdleTimeout)}, m.closeReasons())
}

func TestConnection_NegativeIdleDisablesTimeout(t *testing.T) {
	m := &fakeMetrics{}
	cfg := Config{Timeouts: TimeoutsConfig{Idle: -1, Write: -1}}
	p := startPipe(t, cfg, testDeps(t, m))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("alice", "secret")))
	assert.Empty(t, m.closeReasons())
}

func TestConnection_ShutdownBeforeFirstRead(t *testing.T) {
	m := &fakeMetrics{}
	a, err := New(Config{}, testDeps(t, m))
	require.NoError(t, err)
	close(a.Shutdown)

	server, client := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The request context is never cancelled; only the shutdown
		// signal can end this session before the idle timeout.
		a.NewConnection(server).Serve(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
	assert.Equal(t, []string{string(session.ReasonShutdown)}, m.closeReasons())
}

func TestConnection_RequestSpanAttributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	telemetry.UseProvider(provider)
	t.Cleanup(func() {
		telemetry.UseProvider(nil)
		_ = provider.Shutdown(context.Background())
	})

	p := startPipe(t, Config{}, testDeps(t, nil))
	require.Equal(t, protocol.AuthResponse{Success: false}, p.roundTrip(password("alice", "wrong")))
	require.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("alice", "secret")))
	require.Equal(t, protocol.CommandResponse{Text: "/dir2", Success: true}, p.roundTrip(protocol.Command{Text: "cd dir2"}))

	attrs := func(name string) []map[string]string {
		var out []map[string]string
		for _, span := range rec.Ended() {
			if span.Name() != name {
				continue
			}
			m := map[string]string{}
			for _, kv := range span.Attributes() {
				m[string(kv.Key)] = kv.Value.Emit()
			}
			out = append(out, m)
		}
		return out
	}

	auths := attrs(telemetry.SpanRequest + ".auth")
	require.Len(t, auths, 2)
	assert.Equal(t, "password", auths[0][telemetry.AttrAuthMethod])
	assert.Equal(t, "failure", auths[0][telemetry.AttrAuthResult])
	assert.Equal(t, "success", auths[1][telemetry.AttrAuthResult])

	cmds := attrs(telemetry.SpanRequest + ".command")
	require.Len(t, cmds, 1)
	assert.Equal(t, "cd", cmds[0][telemetry.AttrCommand])
	assert.Equal(t, "/dir2", cmds[0][telemetry.AttrPath])
	assert.Equal(t, "true", cmds[0][telemetry.AttrSuccess])
}

func TestConnection_ClientDisconnect(t *testing.T) {
	m := &fakeMetrics{}
	p := startPipe(t, Config{}, testDeps(t, m))

	require.Equal(t, protocol.AuthResponse{Success: true}, p.roundTrip(password("alice", "secret")))
	require.NoError(t, p.conn.Close())

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, []string{string(session.ReasonEOF)}, m.closeReasons())
}

func TestConnection_SessionsAreIsolated(t *testing.T) {
	deps := testDeps(t, nil)
	a := startPipe(t, Config{}, deps)
	b := startPipe(t, Config{}, deps)

	require.Equal(t, protocol.AuthResponse{Success: true}, a.roundTrip(password("alice", "secret")))
	require.Equal(t, protocol.AuthResponse{Success: true}, b.roundTrip(password("alice", "secret")))

	require.Equal(t, protocol.CommandResponse{Text: "/dir3", Success: true}, a.roundTrip(protocol.Command{Text: "cd dir3"}))
	assert.Equal(t, protocol.CommandResponse{Text: "/", Success: true}, b.roundTrip(protocol.Command{Text: "pwd"}))
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.1.2.3", clientIP("10.1.2.3:4000"))
	assert.Equal(t, "::1", clientIP("[::1]:4000"))
	assert.Equal(t, "pipe", clientIP("pipe"))
}
