// Package session implements the per-connection protocol state machine.
//
// A Session starts in Authenticating{0}. A successful Auth moves it to
// Connected; each failed Auth bumps the attempt count until the cap closes
// the connection. Once connected it runs shell commands and completions
// against the shared tree using its own working directory. Any message the
// current state does not allow is a protocol violation.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/pkg/credentials"
	"github.com/marmos91/dittosh/pkg/metrics"
	"github.com/marmos91/dittosh/pkg/protocol"
	"github.com/marmos91/dittosh/pkg/vfs"
)

// DefaultMaxAttempts is the failed-login cap per connection.
const DefaultMaxAttempts = 3

// Authenticator verifies logins. *credentials.Store implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, method credentials.Method, username, secret string) (credentials.Outcome, error)
}

// Options configures a Session.
type Options struct {
	MaxAttempts int                  // 0 selects DefaultMaxAttempts
	Metrics     metrics.ShellMetrics // optional
}

// Result is what the connection loop must do after a message.
type Result struct {
	Response protocol.Message // nil means send nothing
	Close    bool
	Reason   CloseReason
}

// Session is owned by exactly one connection goroutine and is not safe for
// concurrent use.
type Session struct {
	id          string
	state       State
	cwd         vfs.NodeID
	auth        Authenticator
	tree        *vfs.Tree
	maxAttempts int
	metrics     metrics.ShellMetrics
	started     time.Time
}

// New creates a session in Authenticating{0} positioned at the tree root.
func New(auth Authenticator, tree *vfs.Tree, opts Options) *Session {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Session{
		id:          uuid.NewString(),
		state:       Authenticating{},
		cwd:         vfs.Root,
		auth:        auth,
		tree:        tree,
		maxAttempts: opts.MaxAttempts,
		metrics:     opts.Metrics,
		started:     time.Now(),
	}
}

// ID is a random identifier for logs.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Cwd returns the working directory node.
func (s *Session) Cwd() vfs.NodeID { return s.cwd }

// Started returns when the session was created.
func (s *Session) Started() time.Time { return s.started }

// Username returns the authenticated user, or "" while authenticating.
func (s *Session) Username() string {
	if c, ok := s.state.(Connected); ok {
		return c.Username
	}
	return ""
}

// Handle advances the state machine with one decoded message. A non-nil error
// always wraps ErrProtocolViolation and comes with Close set.
func (s *Session) Handle(ctx context.Context, msg protocol.Message) (Result, error) {
	if msg == nil {
		return s.violate(violation("nil message"))
	}
	if protocol.IsResponse(msg.Type()) {
		return s.violate(violation("client sent response message %s", msg.Type()))
	}

	switch st := s.state.(type) {
	case Authenticating:
		return s.handleAuthenticating(ctx, st, msg)
	case Connected:
		return s.handleConnected(ctx, msg)
	default:
		return s.violate(violation("unknown state %T", st))
	}
}

func (s *Session) violate(err error) (Result, error) {
	return Result{Close: true, Reason: ReasonProtocolViolation}, err
}

func (s *Session) handleAuthenticating(ctx context.Context, st Authenticating, msg protocol.Message) (Result, error) {
	auth, ok := msg.(protocol.Auth)
	if !ok {
		return s.violate(violation("%s before authentication", msg.Type()))
	}

	attempt := st.Attempts + 1
	outcome, err := s.auth.Authenticate(ctx, credentials.Method(auth.Method), auth.Username, auth.Secret)
	if err == nil {
		s.state = Connected{Username: auth.Username}
		s.recordAuth(auth.Method, outcome.String())
		logger.InfoCtx(ctx, "Authentication succeeded",
			logger.KeyUsername, auth.Username,
			logger.KeyMethod, string(auth.Method),
			logger.KeyAttempt, attempt,
			"outcome", outcome.String())
		return Result{Response: protocol.AuthResponse{Success: true}}, nil
	}

	if credentials.IsAuthFailure(err) {
		s.recordAuth(auth.Method, "rejected")
		logger.WarnCtx(ctx, "Authentication failed",
			logger.KeyUsername, auth.Username,
			logger.KeyMethod, string(auth.Method),
			logger.KeyAttempt, attempt,
			logger.KeyMaxTries, s.maxAttempts,
			logger.KeyReason, err.Error())
	} else {
		s.recordAuth(auth.Method, "error")
		logger.ErrorCtx(ctx, "Authentication error",
			logger.KeyUsername, auth.Username,
			logger.KeyAttempt, attempt,
			logger.KeyError, err)
	}

	s.state = Authenticating{Attempts: attempt}
	res := Result{Response: protocol.AuthResponse{Success: false}}
	if attempt >= s.maxAttempts {
		res.Close = true
		res.Reason = ReasonAuthExhausted
	}
	return res, nil
}

func (s *Session) handleConnected(ctx context.Context, msg protocol.Message) (Result, error) {
	start := time.Now()

	switch m := msg.(type) {
	case protocol.Command:
		resp, verb := s.exec(ctx, m.Text)
		s.recordRequest(protocol.TypeCommand, verb, start, resp.Success)
		if verb == "exit" && resp.Success {
			return Result{Response: resp, Close: true, Reason: ReasonExit}, nil
		}
		return Result{Response: resp}, nil

	case protocol.TabComplete:
		candidates := s.tree.TabCompleteArg(s.cwd, m.Input)
		s.recordRequest(protocol.TypeTabComplete, "", start, true)
		logger.DebugCtx(ctx, "Tab completion",
			logger.KeyPath, s.tree.Pwd(s.cwd),
			logger.KeyCandidates, len(candidates))
		return Result{Response: protocol.TabCompleteResponse{Candidates: candidates}}, nil

	case protocol.Auth:
		return s.violate(violation("auth while already connected"))

	default:
		return s.violate(violation("unexpected %s", msg.Type()))
	}
}

func (s *Session) recordAuth(method protocol.AuthMethod, result string) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(string(method), result)
	}
}

func (s *Session) recordRequest(t protocol.Type, verb string, start time.Time, ok bool) {
	if s.metrics != nil {
		s.metrics.RecordRequest(string(t), verb, time.Since(start), ok)
	}
}

// IsViolation reports whether err came from a protocol violation.
func IsViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
