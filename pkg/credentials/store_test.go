package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Helpers
// ============================================================================

var fastHasher = BcryptHasher{Cost: bcrypt.MinCost}

func newTestStore(t *testing.T, mutate ...func(*Options)) (*Store, *MemoryPersister) {
	t.Helper()
	p := NewMemoryPersister()
	opts := Options{Persister: p, Hasher: fastHasher, AutoRegister: true}
	for _, m := range mutate {
		m(&opts)
	}
	return NewStore(opts), p
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("entropy exhausted") }
func (failingHasher) Verify(string, string) bool  { return false }

// ============================================================================
// Password Authentication
// ============================================================================

func TestAuthenticateRegistersUnseenUser(t *testing.T) {
	ctx := context.Background()
	s, p := newTestStore(t)

	outcome, err := s.Authenticate(ctx, MethodPassword, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRegistered, outcome)
	assert.Equal(t, 1, p.Saves())

	t.Run("SameSecretSucceeds", func(t *testing.T) {
		outcome, err := s.Authenticate(ctx, MethodPassword, "alice", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, OutcomeVerified, outcome)
	})

	t.Run("OtherSecretFails", func(t *testing.T) {
		_, err := s.Authenticate(ctx, MethodPassword, "alice", "guess")
		assert.ErrorIs(t, err, ErrWrongSecret)
		assert.True(t, IsAuthFailure(err))
	})

	t.Run("DigestIsNotPlaintext", func(t *testing.T) {
		c, ok := s.Get("alice")
		require.True(t, ok)
		assert.NotEqual(t, "s3cret", c.SecretDigest)
		assert.True(t, strings.HasPrefix(c.SecretDigest, "$2"))
	})

	t.Run("PersistedAcrossStores", func(t *testing.T) {
		again := NewStore(Options{Persister: p, Hasher: fastHasher})
		require.NoError(t, again.Load(ctx))
		_, err := again.Authenticate(ctx, MethodPassword, "alice", "s3cret")
		assert.NoError(t, err)
	})
}

func TestLastLoginIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, p := newTestStore(t, func(o *Options) { o.Now = func() time.Time { return now } })

	_, err := s.Authenticate(ctx, MethodPassword, "bob", "pw")
	require.NoError(t, err)
	c, _ := s.Get("bob")
	assert.Nil(t, c.LastLogin)
	assert.Equal(t, now, c.CreatedAt)

	_, err = s.Authenticate(ctx, MethodPassword, "bob", "pw")
	require.NoError(t, err)

	c, _ = s.Get("bob")
	require.NotNil(t, c.LastLogin)
	assert.Equal(t, now, *c.LastLogin)
	assert.Equal(t, 1, p.Saves())
}

func TestAutoRegisterDisabled(t *testing.T) {
	s, p := newTestStore(t, func(o *Options) { o.AutoRegister = false })

	_, err := s.Authenticate(context.Background(), MethodPassword, "carol", "pw")
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Zero(t, s.Count())
	assert.Zero(t, p.Saves())
}

func TestAuthenticateInputValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Authenticate(ctx, MethodPassword, "", "pw")
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = s.Authenticate(ctx, MethodPassword, "dave", strings.Repeat("x", MaxSecretLen+1))
	assert.ErrorIs(t, err, ErrSecretTooLong)

	_, err = s.Authenticate(ctx, Method("otp"), "dave", "pw")
	assert.ErrorIs(t, err, ErrMethodNotSupported)

	assert.Zero(t, s.Count())
}

// ============================================================================
// Certificate Stub
// ============================================================================

func TestCertificateMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectedByDefault", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.Authenticate(ctx, MethodCertificate, "eve", "")
		assert.ErrorIs(t, err, ErrMethodNotSupported)
	})

	t.Run("StubAcceptsWhenEnabled", func(t *testing.T) {
		s, p := newTestStore(t, func(o *Options) { o.AllowCertificateStub = true })
		outcome, err := s.Authenticate(ctx, MethodCertificate, "eve", "")
		require.NoError(t, err)
		assert.Equal(t, OutcomeCertificate, outcome)
		assert.Zero(t, s.Count())
		assert.Zero(t, p.Saves())
	})
}

// ============================================================================
// Rollback
// ============================================================================

func TestFailedPersistRollsBackInsert(t *testing.T) {
	ctx := context.Background()
	s, p := newTestStore(t)
	p.SetFailSave(errors.New("disk full"))

	_, err := s.Authenticate(ctx, MethodPassword, "frank", "pw")
	require.Error(t, err)
	assert.False(t, IsAuthFailure(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, s.Count())

	p.SetFailSave(nil)
	outcome, err := s.Authenticate(ctx, MethodPassword, "frank", "other")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRegistered, outcome)
}

func TestFailedHashRollsBackInsert(t *testing.T) {
	s, p := newTestStore(t, func(o *Options) { o.Hasher = failingHasher{} })

	_, err := s.Authenticate(context.Background(), MethodPassword, "gina", "pw")
	require.Error(t, err)
	assert.Zero(t, s.Count())
	assert.Zero(t, p.Saves())
}

// ============================================================================
// Administration
// ============================================================================

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	s, p := newTestStore(t)

	require.NoError(t, s.Add(ctx, "zoe", "pw"))
	require.NoError(t, s.Add(ctx, "adam", "pw"))
	assert.ErrorIs(t, s.Add(ctx, "zoe", "pw"), ErrDuplicateUser)
	assert.ErrorIs(t, s.Add(ctx, "", "pw"), ErrInvalidUsername)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "adam", list[0].Username)
	assert.Equal(t, "zoe", list[1].Username)

	t.Run("ListReturnsCopies", func(t *testing.T) {
		list[0].SecretDigest = "tampered"
		c, _ := s.Get("adam")
		assert.NotEqual(t, "tampered", c.SecretDigest)
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		assert.ErrorIs(t, s.Remove(ctx, "nobody"), ErrUserNotFound)
	})

	t.Run("RemoveRestoresOnFailure", func(t *testing.T) {
		p.SetFailSave(errors.New("read-only"))
		assert.Error(t, s.Remove(ctx, "zoe"))
		assert.Equal(t, 2, s.Count())
		p.SetFailSave(nil)
	})

	t.Run("RemovePersists", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "zoe"))
		loaded, err := p.Load(ctx)
		require.NoError(t, err)
		assert.NotContains(t, loaded, "zoe")
		assert.Contains(t, loaded, "adam")
	})

	_, ok := s.Get("zoe")
	assert.False(t, ok)
}

func TestLoadNormalizesEntries(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	digest, err := fastHasher.Hash("pw")
	require.NoError(t, err)
	require.NoError(t, p.Save(ctx, map[string]*Credential{
		"henry": {Username: "wrong", SecretDigest: digest},
		"":      {Username: "", SecretDigest: digest},
		"ivy":   nil,
	}))

	s := NewStore(Options{Persister: p, Hasher: fastHasher})
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 1, s.Count())

	c, ok := s.Get("henry")
	require.True(t, ok)
	assert.Equal(t, "henry", c.Username)
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentFirstLoginRegistersOnce(t *testing.T) {
	ctx := context.Background()
	s, p := newTestStore(t)

	const workers = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		registered int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.Authenticate(ctx, MethodPassword, "race", "same")
			if !assert.NoError(t, err) {
				return
			}
			if outcome == OutcomeRegistered {
				mu.Lock()
				registered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, registered)
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 1, p.Saves())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "verified", OutcomeVerified.String())
	assert.Equal(t, "registered", OutcomeRegistered.String())
	assert.Equal(t, "certificate", OutcomeCertificate.String())
}
