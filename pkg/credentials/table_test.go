package credentials

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableEncoding(t *testing.T) {
	login := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := map[string]*Credential{
		"alice": {Username: "alice", SecretDigest: "$2a$04$x", CreatedAt: login.Add(-time.Hour), LastLogin: &login},
		"bob":   {Username: "bob", SecretDigest: "$2a$04$y"},
	}

	data, err := MarshalTable(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"alice": {`)
	assert.NotContains(t, string(data), "auxiliary_key")

	out, err := UnmarshalTable(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalTableEdgeCases(t *testing.T) {
	empty, err := UnmarshalTable(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	fixed, err := UnmarshalTable([]byte(`{"carol":{"secret_digest":"d"},"ghost":null}`))
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assert.Equal(t, "carol", fixed["carol"].Username)

	_, err = UnmarshalTable([]byte(`[]`))
	assert.Error(t, err)

	data, err := MarshalTable(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}
