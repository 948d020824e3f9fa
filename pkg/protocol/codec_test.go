package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Round Trip
// ============================================================================

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []Message{
		Command{Text: "cd dir1"},
		Command{Text: ""},
		CommandResponse{Text: "/dir1", Success: true},
		CommandResponse{Text: "Unknown command", Success: false},
		TabComplete{Input: "cd di"},
		TabCompleteResponse{Candidates: []string{"dir1", "dir2", "dir3"}},
		TabCompleteResponse{Candidates: []string{}},
		Auth{Method: MethodPassword, Username: "alice", Secret: "s3cr3t"},
		Auth{Method: MethodCertificate, Username: "bob"},
		AuthResponse{Success: true},
		AuthResponse{Success: false},
	}

	for _, msg := range messages {
		t.Run(fmt.Sprintf("%s/%v", msg.Type(), msg), func(t *testing.T) {
			data, err := Encode(msg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name  string
		msg   Message
		field string
	}{
		{"CommandText", Command{Text: "cd \xffdir"}, "text"},
		{"ResponseText", CommandResponse{Text: "\xc3(", Success: true}, "text"},
		{"CompleteInput", TabComplete{Input: "cd d\xfe"}, "input"},
		{"Candidate", TabCompleteResponse{Candidates: []string{"dir1", "d\x80"}}, "candidates"},
		{"Username", Auth{Method: MethodPassword, Username: "al\xffce", Secret: "pw"}, "username"},
		{"Secret", Auth{Method: MethodPassword, Username: "alice", Secret: "p\xc3(ss"}, "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.ErrorIs(t, err, ErrInvalidUTF8)
			assert.Contains(t, err.Error(), tt.field)
			assert.Nil(t, data)
		})
	}
}

func TestRoundTripPreservesMultibyteText(t *testing.T) {
	for _, msg := range []Message{
		Command{Text: "cd répertoire"},
		Auth{Method: MethodPassword, Username: "zoë", Secret: "пароль🔑"},
		TabCompleteResponse{Candidates: []string{"日本", "dir1"}},
	} {
		data, err := Encode(msg)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestEnvelopeShape(t *testing.T) {
	data, err := Encode(Auth{Method: MethodPassword, Username: "alice", Secret: "pw"})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"auth"`, string(raw["type"]))
	assert.JSONEq(t, `{"method":"password","username":"alice","secret":"pw"}`, string(raw["payload"]))
}

func TestNilCandidatesEncodeAsEmptyList(t *testing.T) {
	data, err := Encode(TabCompleteResponse{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"candidates":[]`)

	msg, err := Decode([]byte(`{"type":"tab_complete_response","payload":{}}`))
	require.NoError(t, err)
	assert.NotNil(t, msg.(TabCompleteResponse).Candidates)
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}

// ============================================================================
// Decode Failures
// ============================================================================

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Whitespace", "   "},
		{"Truncated", `{"type":"command","payload":{"text":"l`},
		{"NotJSON", "ls"},
		{"ArrayEnvelope", `[1,2]`},
		{"MissingType", `{"payload":{"text":"ls"}}`},
		{"UnknownType", `{"type":"shutdown","payload":{}}`},
		{"MissingPayload", `{"type":"command"}`},
		{"NullPayload", `{"type":"command","payload":null}`},
		{"WrongPayloadShape", `{"type":"command","payload":"ls"}`},
		{"WrongFieldType", `{"type":"auth_response","payload":{"success":"yes"}}`},
		{"UnknownAuthMethod", `{"type":"auth","payload":{"method":"otp","username":"a","secret":"b"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			var err error
			require.NotPanics(t, func() { msg, err = Decode([]byte(tt.input)) })

			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err), "want *DecodeError, got %T", err)
		})
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	_, err := Decode([]byte(`{"type":"shutdown","payload":{}}`))
	require.Error(t, err)
	assert.Equal(t, "decode shutdown: unknown message type", err.Error())

	_, err = Decode([]byte(`{`))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "decode: malformed envelope: "))
}

// ============================================================================
// Message Set
// ============================================================================

func TestRequestResponsePairs(t *testing.T) {
	pairs := map[Type]Type{
		TypeCommand:     TypeCommandResponse,
		TypeTabComplete: TypeTabCompleteResponse,
		TypeAuth:        TypeAuthResponse,
	}
	for req, resp := range pairs {
		got, ok := ResponseTypeFor(req)
		assert.True(t, ok)
		assert.Equal(t, resp, got)
		assert.True(t, IsRequest(req))
		assert.False(t, IsResponse(req))
		assert.True(t, IsResponse(resp))
		assert.False(t, IsRequest(resp))

		_, ok = ResponseTypeFor(resp)
		assert.False(t, ok)
	}
}

func TestAuthLogValueHidesSecret(t *testing.T) {
	v := Auth{Method: MethodPassword, Username: "alice", Secret: "hunter2"}.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())
	assert.NotContains(t, v.String(), "hunter2")
	assert.Contains(t, v.String(), "alice")
}
