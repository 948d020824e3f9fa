// Package credentials is the user registry behind authentication.
//
// A Store owns the username to Credential table. Every lookup and mutation
// runs under one mutex, and every mutation is written through to a Persister
// before the lock is released, so concurrent first logins for the same name
// register exactly one credential.
package credentials

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittosh/internal/logger"
)

// Outcome describes a successful authentication.
type Outcome int

const (
	OutcomeVerified   Outcome = iota // existing user, secret matched
	OutcomeRegistered                // unseen user, credential created
	OutcomeCertificate               // certificate stub accepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeCertificate:
		return "certificate"
	default:
		return "verified"
	}
}

// Options configures a Store.
type Options struct {
	Persister Persister // nil keeps credentials in memory only
	Hasher    Hasher    // nil selects BcryptHasher with the default cost

	// AutoRegister creates a credential on the first password login of an
	// unseen username.
	AutoRegister bool

	// AllowCertificateStub accepts every certificate login without checks.
	AllowCertificateStub bool

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store is the concurrency-safe credential table.
type Store struct {
	mu    sync.Mutex
	creds map[string]*Credential
	opts  Options
}

// NewStore returns an empty Store. Call Load to read persisted credentials.
func NewStore(opts Options) *Store {
	if opts.Hasher == nil {
		opts.Hasher = BcryptHasher{}
	}
	if opts.Persister == nil {
		opts.Persister = NewMemoryPersister()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{creds: map[string]*Credential{}, opts: opts}
}

// Load replaces the table with the persister's contents.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.opts.Persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	creds := make(map[string]*Credential, len(loaded))
	for name, c := range loaded {
		if c == nil || name == "" {
			continue
		}
		c = c.Clone()
		c.Username = name
		creds[name] = c
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	logger.Debug("Credentials loaded", logger.KeyUsers, len(creds))
	return nil
}

// Authenticate checks a login attempt, registering unseen password users
// when AutoRegister is on. A nil error means the login succeeded.
func (s *Store) Authenticate(ctx context.Context, method Method, username, secret string) (Outcome, error) {
	switch method {
	case MethodCertificate:
		if !s.opts.AllowCertificateStub {
			return 0, ErrMethodNotSupported
		}
		logger.WarnCtx(ctx, "Certificate login accepted without verification", logger.KeyUsername, username)
		return OutcomeCertificate, nil
	case MethodPassword:
	default:
		return 0, fmt.Errorf("%w: %q", ErrMethodNotSupported, method)
	}

	if username == "" {
		return 0, ErrInvalidUsername
	}
	if len(secret) > MaxSecretLen {
		return 0, ErrSecretTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[username]
	if !ok {
		if !s.opts.AutoRegister {
			return 0, ErrUnknownUser
		}
		if err := s.insertLocked(ctx, username, secret); err != nil {
			return 0, err
		}
		logger.InfoCtx(ctx, "Registered new user", logger.KeyUsername, username)
		return OutcomeRegistered, nil
	}

	if !s.opts.Hasher.Verify(secret, c.SecretDigest) {
		return 0, ErrWrongSecret
	}
	now := s.opts.Now()
	c.LastLogin = &now
	return OutcomeVerified, nil
}

// insertLocked hashes, inserts and persists a new credential, undoing the
// insert if anything fails. Callers hold s.mu.
func (s *Store) insertLocked(ctx context.Context, username, secret string) error {
	digest, err := s.opts.Hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	s.creds[username] = &Credential{
		Username:     username,
		SecretDigest: digest,
		CreatedAt:    s.opts.Now(),
	}
	if err := s.saveLocked(ctx); err != nil {
		delete(s.creds, username)
		return err
	}
	return nil
}

func (s *Store) saveLocked(ctx context.Context) error {
	if err := s.opts.Persister.Save(ctx, CloneMap(s.creds)); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

// Add pre-provisions a user.
func (s *Store) Add(ctx context.Context, username, secret string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	if len(secret) > MaxSecretLen {
		return ErrSecretTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[username]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateUser, username)
	}
	return s.insertLocked(ctx, username, secret)
}

// Remove deletes a user and persists the table. The entry is restored if
// persisting fails.
func (s *Store) Remove(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	delete(s.creds, username)
	if err := s.saveLocked(ctx); err != nil {
		s.creds[username] = c
		return err
	}
	return nil
}

// Get returns a copy of one credential.
func (s *Store) Get(username string) (*Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[username]
	return c.Clone(), ok
}

// List returns copies of all credentials sorted by username.
func (s *Store) List() []*Credential {
	s.mu.Lock()
	out := make([]*Credential, 0, len(s.creds))
	for _, c := range s.creds {
		out = append(out, c.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Count returns the number of registered users.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}
