package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "dittosh Configuration", doc.Title)
	for _, key := range []string{"logging", "telemetry", "server", "auth", "credentials", "tree", "metrics"} {
		assert.Contains(t, doc.Properties, key)
	}
	assert.Contains(t, string(data), "max_message_size")
	assert.NotContains(t, string(data), "ServiceVersion")
}
