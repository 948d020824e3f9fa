package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Username", "Created")

	assert.Equal(t, []string{"Username", "Created"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("alice", "today")
	table.AddRow("bob", "yesterday")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"alice", "today"}, rows[0])
	assert.Equal(t, []string{"bob", "yesterday"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Username", "Last login")
	table.AddRow("alice", "never")
	table.AddRow("bob", "Mon Jan 2 15:04:05 2006")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "LAST LOGIN")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "bob")
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, KeyValueTable(&buf, [][2]string{
		{"Listen", "127.0.0.1:7878"},
		{"Credentials", "json"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Listen")
	assert.Contains(t, out, "127.0.0.1:7878")
	assert.Contains(t, out, "Credentials")
	assert.Contains(t, out, "json")
}
