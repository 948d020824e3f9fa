// Package badger persists credentials in an embedded BadgerDB.
//
// Each credential is one JSON value under "cred/<username>". Save rewrites
// the whole key range inside one transaction.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dittosh/internal/logger"
	"github.com/marmos91/dittosh/pkg/credentials"
)

const keyPrefix = "cred/"

// Config selects the database directory.
type Config struct {
	Path     string `mapstructure:"path" yaml:"path" json:"path"`
	InMemory bool   `mapstructure:"in_memory" yaml:"in_memory" json:"in_memory"`
}

// Persister implements credentials.Persister on BadgerDB.
type Persister struct {
	db *badgerdb.DB
}

var _ credentials.Persister = (*Persister)(nil)

// Open opens (or creates) the database.
func Open(cfg Config) (*Persister, error) {
	var opts badgerdb.Options
	switch {
	case cfg.InMemory:
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	case cfg.Path != "":
		opts = badgerdb.DefaultOptions(cfg.Path)
	default:
		return nil, errors.New("badger: path is required")
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &Persister{db: db}, nil
}

func credKey(username string) []byte {
	return []byte(keyPrefix + username)
}

// Load reads every credential.
func (p *Persister) Load(ctx context.Context) (map[string]*credentials.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	creds := map[string]*credentials.Credential{}
	err := p.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(keyPrefix), PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), keyPrefix)
			err := item.Value(func(val []byte) error {
				var c credentials.Credential
				if err := json.Unmarshal(val, &c); err != nil {
					return fmt.Errorf("decode %q: %w", name, err)
				}
				c.Username = name
				creds[name] = &c
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: load: %w", err)
	}
	return creds, nil
}

// Save replaces the stored table with creds.
func (p *Persister) Save(ctx context.Context, creds map[string]*credentials.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := p.db.Update(func(txn *badgerdb.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: []byte(keyPrefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, keep := creds[strings.TrimPrefix(string(key), keyPrefix)]; !keep {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for name, c := range creds {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode %q: %w", name, err)
			}
			if err := txn.Set(credKey(name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger: save: %w", err)
	}
	return nil
}

// Close closes the database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// badgerLogger routes BadgerDB's internal logging to the process logger.
// Badger is chatty at info level, so info and debug both go to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, args ...any) {
	logger.Error("badger: "+strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (badgerLogger) Warningf(f string, args ...any) {
	logger.Warn("badger: "+strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (badgerLogger) Infof(f string, args ...any) {
	logger.Debug("badger: "+strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (badgerLogger) Debugf(f string, args ...any) {
	logger.Debug("badger: "+strings.TrimSpace(fmt.Sprintf(f, args...)))
}
