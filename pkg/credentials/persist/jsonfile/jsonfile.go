// Package jsonfile persists credentials as one JSON document on disk.
//
// Writes go to a temporary file in the same directory followed by a rename,
// so readers never see a partial table. A sibling ".lock" file taken with
// flock serialises dittosh processes sharing the file (server and admin
// commands).
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/marmos91/dittosh/pkg/credentials"
)

const lockRetryDelay = 25 * time.Millisecond

// Config locates the credential file.
type Config struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// Persister implements credentials.Persister on a JSON file.
type Persister struct {
	path string
	lock *flock.Flock
}

var _ credentials.Persister = (*Persister)(nil)

// New prepares a persister for cfg.Path, creating the parent directory.
func New(cfg Config) (*Persister, error) {
	if cfg.Path == "" {
		return nil, errors.New("jsonfile: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("jsonfile: create directory: %w", err)
	}
	return &Persister{
		path: cfg.Path,
		lock: flock.New(cfg.Path + ".lock"),
	}, nil
}

// Path returns the credential file location.
func (p *Persister) Path() string { return p.path }

// Load reads the table. A missing file is an empty table.
func (p *Persister) Load(ctx context.Context) (map[string]*credentials.Credential, error) {
	if _, err := p.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, fmt.Errorf("jsonfile: lock %s: %w", p.path, err)
	}
	defer func() { _ = p.lock.Unlock() }()

	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*credentials.Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read: %w", err)
	}
	return credentials.UnmarshalTable(data)
}

// Save atomically replaces the file with creds.
func (p *Persister) Save(ctx context.Context, creds map[string]*credentials.Credential) error {
	data, err := credentials.MarshalTable(creds)
	if err != nil {
		return err
	}

	if _, err := p.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("jsonfile: lock %s: %w", p.path, err)
	}
	defer func() { _ = p.lock.Unlock() }()

	return writeAtomic(p.path, data)
}

// Close releases the lock file handle.
func (p *Persister) Close() error {
	return p.lock.Close()
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("jsonfile: chmod: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}
