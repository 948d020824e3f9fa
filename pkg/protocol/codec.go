package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode renders msg as a JSON envelope.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}

	// A nil candidate list goes out as [] so peers never see null.
	if r, ok := msg.(TabCompleteResponse); ok && r.Candidates == nil {
		msg = TabCompleteResponse{Candidates: []string{}}
	}

	// JSON would silently replace invalid UTF-8 with U+FFFD.
	if field, ok := invalidText(msg); !ok {
		return nil, fmt.Errorf("encode %s: %s: %w", msg.Type(), field, ErrInvalidUTF8)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return json.Marshal(envelope{Type: msg.Type(), Payload: payload})
}

// invalidText returns the first string field of msg that is not valid UTF-8.
func invalidText(msg Message) (string, bool) {
	switch m := msg.(type) {
	case Command:
		return "text", utf8.ValidString(m.Text)
	case CommandResponse:
		return "text", utf8.ValidString(m.Text)
	case TabComplete:
		return "input", utf8.ValidString(m.Input)
	case TabCompleteResponse:
		for _, c := range m.Candidates {
			if !utf8.ValidString(c) {
				return "candidates", false
			}
		}
	case Auth:
		if !utf8.ValidString(string(m.Method)) {
			return "method", false
		}
		if !utf8.ValidString(m.Username) {
			return "username", false
		}
		return "secret", utf8.ValidString(m.Secret)
	}
	return "", true
}

// Decode parses a JSON envelope. Any failure is a *DecodeError.
func Decode(data []byte) (Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DecodeError{Reason: "empty frame"}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "malformed envelope", Err: err}
	}
	if env.Type == "" {
		return nil, &DecodeError{Reason: "missing type tag"}
	}
	if p := bytes.TrimSpace(env.Payload); len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return nil, &DecodeError{Type: env.Type, Reason: "missing payload"}
	}

	msg, err := decodePayload(env)
	if err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case TabCompleteResponse:
		if m.Candidates == nil {
			m.Candidates = []string{}
			msg = m
		}
	case Auth:
		if !m.Method.Valid() {
			return nil, &DecodeError{Type: env.Type, Reason: fmt.Sprintf("unknown auth method %q", m.Method)}
		}
	}
	return msg, nil
}

func decodePayload(env envelope) (Message, error) {
	switch env.Type {
	case TypeCommand:
		return decodeAs[Command](env)
	case TypeCommandResponse:
		return decodeAs[CommandResponse](env)
	case TypeTabComplete:
		return decodeAs[TabComplete](env)
	case TypeTabCompleteResponse:
		return decodeAs[TabCompleteResponse](env)
	case TypeAuth:
		return decodeAs[Auth](env)
	case TypeAuthResponse:
		return decodeAs[AuthResponse](env)
	}
	return nil, &DecodeError{Type: env.Type, Reason: "unknown message type"}
}

func decodeAs[T Message](env envelope) (Message, error) {
	var m T
	if err := json.Unmarshal(env.Payload, &m); err != nil {
		return nil, &DecodeError{Type: env.Type, Reason: "malformed payload", Err: err}
	}
	return m, nil
}
