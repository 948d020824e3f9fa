package telemetry

import (
	"context"
	"net"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Generic ones follow OpenTelemetry semantic conventions.
const (
	AttrClientIP   = "client.address"
	AttrClientPort = "client.port"
	AttrSessionID  = "session.id"
	AttrUsername   = "user.name"
	AttrAuthMethod = "auth.method"
	AttrAuthResult = "auth.result"

	AttrMessageType = "dittosh.message_type"
	AttrCommand     = "dittosh.command"
	AttrPath        = "dittosh.path"
	AttrSuccess     = "dittosh.success"
	AttrCandidates  = "dittosh.candidates"
	AttrCloseReason = "dittosh.close_reason"
)

// Span names.
const (
	SpanSession = "dittosh.session"
	SpanRequest = "dittosh.request"
	SpanPersist = "credentials.persist"
)

// ClientAddr splits a host:port remote address into client attributes.
func ClientAddr(addr string) []attribute.KeyValue {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return []attribute.KeyValue{attribute.String(AttrClientIP, addr)}
	}
	return []attribute.KeyValue{
		attribute.String(AttrClientIP, host),
		attribute.String(AttrClientPort, port),
	}
}

// Attribute constructors.

func SessionID(id string) attribute.KeyValue  { return attribute.String(AttrSessionID, id) }
func Username(name string) attribute.KeyValue { return attribute.String(AttrUsername, name) }
func AuthMethod(m string) attribute.KeyValue  { return attribute.String(AttrAuthMethod, m) }
func AuthResult(r string) attribute.KeyValue  { return attribute.String(AttrAuthResult, r) }
func MessageType(t string) attribute.KeyValue { return attribute.String(AttrMessageType, t) }
func Command(verb string) attribute.KeyValue  { return attribute.String(AttrCommand, verb) }
func Path(p string) attribute.KeyValue        { return attribute.String(AttrPath, p) }
func Success(ok bool) attribute.KeyValue      { return attribute.Bool(AttrSuccess, ok) }
func Candidates(n int) attribute.KeyValue     { return attribute.Int(AttrCandidates, n) }
func CloseReason(r string) attribute.KeyValue { return attribute.String(AttrCloseReason, r) }

// StartSessionSpan starts the span covering one connection.
func StartSessionSpan(ctx context.Context, sessionID, remoteAddr string) (context.Context, trace.Span) {
	attrs := append(ClientAddr(remoteAddr), SessionID(sessionID))
	return StartSpan(ctx, SpanSession,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...))
}

// StartRequestSpan starts a span for one decoded message.
func StartRequestSpan(ctx context.Context, messageType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{MessageType(messageType)}, attrs...)
	return StartSpan(ctx, SpanRequest+"."+messageType, trace.WithAttributes(all...))
}
