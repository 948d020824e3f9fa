package credentials

import (
	"encoding/json"
	"fmt"
)

// MarshalTable encodes a credential table as an indented JSON object keyed
// by username. File and object-store backends share this format.
func MarshalTable(creds map[string]*Credential) ([]byte, error) {
	if creds == nil {
		creds = map[string]*Credential{}
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode credential table: %w", err)
	}
	return append(data, '\n'), nil
}

// UnmarshalTable decodes MarshalTable output. Empty input is an empty table.
func UnmarshalTable(data []byte) (map[string]*Credential, error) {
	creds := map[string]*Credential{}
	if len(data) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credential table: %w", err)
	}
	for name, c := range creds {
		if c == nil {
			delete(creds, name)
			continue
		}
		c.Username = name
	}
	return creds, nil
}
