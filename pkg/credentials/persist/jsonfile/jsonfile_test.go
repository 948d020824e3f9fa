package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosh/pkg/credentials"
)

func newPersister(t *testing.T) *Persister {
	t.Helper()
	p, err := New(Config{Path: filepath.Join(t.TempDir(), "nested", "users.json")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestMissingFileIsEmpty(t *testing.T) {
	p := newPersister(t)

	creds, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	p := newPersister(t)
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	in := map[string]*credentials.Credential{
		"alice": {Username: "alice", SecretDigest: "d1", CreatedAt: created},
		"bob":   {Username: "bob", SecretDigest: "d2", CreatedAt: created},
	}
	require.NoError(t, p.Save(ctx, in))

	out, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	info, err := os.Stat(p.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Run("SaveReplacesWholeTable", func(t *testing.T) {
		require.NoError(t, p.Save(ctx, map[string]*credentials.Credential{"bob": in["bob"]}))
		out, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Contains(t, out, "bob")
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(p.Path()))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})
}

func TestCorruptFile(t *testing.T) {
	p := newPersister(t)
	require.NoError(t, os.WriteFile(p.Path(), []byte("{not json"), 0o600))

	_, err := p.Load(context.Background())
	assert.Error(t, err)
}

func TestLockHonoursContext(t *testing.T) {
	p := newPersister(t)

	other, err := New(Config{Path: p.Path()})
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, other.lock.Lock())
	defer func() { _ = other.lock.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = p.Save(ctx, map[string]*credentials.Credential{})
	assert.Error(t, err)
}

func TestWorksWithStore(t *testing.T) {
	ctx := context.Background()
	p := newPersister(t)

	s := credentials.NewStore(credentials.Options{Persister: p, Hasher: credentials.BcryptHasher{Cost: 4}, AutoRegister: true})
	_, err := s.Authenticate(ctx, credentials.MethodPassword, "alice", "pw")
	require.NoError(t, err)

	reloaded := credentials.NewStore(credentials.Options{Persister: p, Hasher: credentials.BcryptHasher{Cost: 4}})
	require.NoError(t, reloaded.Load(ctx))
	outcome, err := reloaded.Authenticate(ctx, credentials.MethodPassword, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, credentials.OutcomeVerified, outcome)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
