package credentials

import (
	"context"
	"sync"
)

// Persister loads and saves the whole credential table at once.
//
// Save receives a private copy; implementations may keep it.
type Persister interface {
	Load(ctx context.Context) (map[string]*Credential, error)
	Save(ctx context.Context, creds map[string]*Credential) error
}

// MemoryPersister keeps the table in process memory. Saves survive only as
// long as the value does.
type MemoryPersister struct {
	mu    sync.Mutex
	data  map[string]*Credential
	saves int
	fail  error
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: map[string]*Credential{}}
}

func (m *MemoryPersister) Load(_ context.Context) (map[string]*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CloneMap(m.data), nil
}

func (m *MemoryPersister) Save(_ context.Context, creds map[string]*Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data = CloneMap(creds)
	m.saves++
	return nil
}

// SetFailSave makes every later Save return err. Pass nil to recover.
func (m *MemoryPersister) SetFailSave(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Saves counts successful Save calls.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op so MemoryPersister fits wherever a closable backend is
// expected.
func (m *MemoryPersister) Close() error { return nil }
