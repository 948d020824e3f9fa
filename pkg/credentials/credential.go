package credentials

import "time"

// Method is how a login proves identity.
type Method string

const (
	MethodPassword    Method = "password"
	MethodCertificate Method = "certificate"
)

// Credential is one registered user.
type Credential struct {
	Username     string     `json:"username"`
	SecretDigest string     `json:"secret_digest"`
	AuxiliaryKey string     `json:"auxiliary_key,omitempty"` // reserved
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.LastLogin != nil {
		t := *c.LastLogin
		out.LastLogin = &t
	}
	return &out
}

// CloneMap deep-copies a credential table.
func CloneMap(in map[string]*Credential) map[string]*Credential {
	out := make(map[string]*Credential, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
