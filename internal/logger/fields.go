package logger

import (
	"log/slog"
)

// Standard field keys. Use these consistently so logs can be queried by key.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Session & connection
	KeySessionID  = "session_id"
	KeyClientIP   = "client_ip"
	KeyAddress    = "address"
	KeyActive     = "active"
	KeyState      = "state"
	KeyReason     = "reason"
	KeyListenAddr = "listen_addr"

	// Protocol
	KeyMessageType = "message_type"
	KeyFrameSize   = "frame_size"
	KeyMaxSize     = "max_size"

	// Authentication
	KeyUsername = "username"
	KeyMethod   = "method"
	KeyAttempt  = "attempt"
	KeyMaxTries = "max_attempts"
	KeyUsers    = "users"

	// Shell
	KeyCommand    = "command"
	KeyPath       = "path"
	KeyEntries    = "entries"
	KeyCandidates = "candidates"
	KeyNodes      = "nodes"

	// Persistence
	KeyStoreType = "store_type"
	KeyLocation  = "location"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeySuccess    = "success"
)

// SessionID returns a session_id attribute.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// ClientIP returns a client_ip attribute.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// Username returns a username attribute.
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

// Method returns an authentication method attribute.
func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }

// Attempt returns a 1-based authentication attempt attribute.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MessageType returns a message_type attribute.
func MessageType(t string) slog.Attr { return slog.String(KeyMessageType, t) }

// Command returns a command attribute (verb only, never arguments of auth).
func Command(c string) slog.Attr { return slog.String(KeyCommand, c) }

// Path returns a virtual path attribute.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Success returns a success attribute.
func Success(ok bool) slog.Attr { return slog.Bool(KeySuccess, ok) }

// StoreType returns a credential store type attribute.
func StoreType(t string) slog.Attr { return slog.String(KeyStoreType, t) }

// DurationMs returns a duration attribute in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns an error attribute; nil errors yield an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
