// Package protocol defines the DittoSH wire messages and their framing.
//
// Every message travels as a JSON envelope {"type": ..., "payload": {...}}
// inside a frame made of a 4-byte big-endian length followed by the envelope
// bytes. Requests flow client to server; each request has exactly one
// response variant.
package protocol

import "log/slog"

// Name and Version identify the protocol in banners and `dittosh version`.
const (
	Name    = "dittosh"
	Version = "1.0"
)

// Type is the envelope tag naming a message variant.
type Type string

const (
	TypeCommand             Type = "command"
	TypeCommandResponse     Type = "command_response"
	TypeTabComplete         Type = "tab_complete"
	TypeTabCompleteResponse Type = "tab_complete_response"
	TypeAuth                Type = "auth"
	TypeAuthResponse        Type = "auth_response"
)

// AuthMethod selects how an Auth request is verified.
type AuthMethod string

const (
	MethodPassword    AuthMethod = "password"
	MethodCertificate AuthMethod = "certificate"
)

// Valid reports whether m is a known method.
func (m AuthMethod) Valid() bool {
	return m == MethodPassword || m == MethodCertificate
}

// Message is the closed set of wire messages. Only types in this package
// implement it.
type Message interface {
	Type() Type
	message()
}

// Command is a shell line typed by the user.
type Command struct {
	Text string `json:"text"`
}

// CommandResponse carries the output of a Command.
type CommandResponse struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
}

// TabComplete asks for completions of the partial input line.
type TabComplete struct {
	Input string `json:"input"`
}

// TabCompleteResponse lists candidate names in tree order.
type TabCompleteResponse struct {
	Candidates []string `json:"candidates"`
}

// Auth is a login attempt.
type Auth struct {
	Method   AuthMethod `json:"method"`
	Username string     `json:"username"`
	Secret   string     `json:"secret"`
}

// AuthResponse reports the outcome of an Auth.
type AuthResponse struct {
	Success bool `json:"success"`
}

func (Command) Type() Type             { return TypeCommand }
func (CommandResponse) Type() Type     { return TypeCommandResponse }
func (TabComplete) Type() Type         { return TypeTabComplete }
func (TabCompleteResponse) Type() Type { return TypeTabCompleteResponse }
func (Auth) Type() Type                { return TypeAuth }
func (AuthResponse) Type() Type        { return TypeAuthResponse }

func (Command) message()             {}
func (CommandResponse) message()     {}
func (TabComplete) message()         {}
func (TabCompleteResponse) message() {}
func (Auth) message()                {}
func (AuthResponse) message()        {}

// LogValue keeps the secret out of logs.
func (a Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("method", string(a.Method)),
		slog.String("username", a.Username),
	)
}

// IsRequest reports whether t is sent by clients.
func IsRequest(t Type) bool {
	switch t {
	case TypeCommand, TypeTabComplete, TypeAuth:
		return true
	}
	return false
}

// IsResponse reports whether t is sent by servers.
func IsResponse(t Type) bool {
	switch t {
	case TypeCommandResponse, TypeTabCompleteResponse, TypeAuthResponse:
		return true
	}
	return false
}

// ResponseTypeFor returns the response variant paired with request type t.
func ResponseTypeFor(t Type) (Type, bool) {
	switch t {
	case TypeCommand:
		return TypeCommandResponse, true
	case TypeTabComplete:
		return TypeTabCompleteResponse, true
	case TypeAuth:
		return TypeAuthResponse, true
	}
	return "", false
}
