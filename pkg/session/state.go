package session

import "fmt"

// State is the closed set of session states.
type State interface {
	fmt.Stringer
	state()
}

// Authenticating waits for a successful Auth. Attempts counts failures so far.
type Authenticating struct {
	Attempts int
}

// Connected accepts commands and completions.
type Connected struct {
	Username string
}

func (Authenticating) state() {}
func (Connected) state()      {}

func (s Authenticating) String() string { return fmt.Sprintf("authenticating(%d)", s.Attempts) }
func (s Connected) String() string      { return "connected(" + s.Username + ")" }

// CloseReason says why a session ended.
type CloseReason string

const (
	ReasonNone              CloseReason = ""
	ReasonExit              CloseReason = "exit"
	ReasonAuthExhausted     CloseReason = "auth_exhausted"
	ReasonProtocolViolation CloseReason = "protocol_violation"

	// Set by the connection loop rather than Handle.
	ReasonEOF          CloseReason = "eof"
	ReasonIOError      CloseReason = "io_error"
	ReasonFramingError CloseReason = "framing_error"
	ReasonIdleTimeout  CloseReason = "idle_timeout"
	ReasonShutdown     CloseReason = "shutdown"
)
