// Package persist opens the credential Persister selected by configuration.
package persist

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/dittosh/pkg/credentials"
	"github.com/marmos91/dittosh/pkg/credentials/persist/badger"
	"github.com/marmos91/dittosh/pkg/credentials/persist/jsonfile"
	"github.com/marmos91/dittosh/pkg/credentials/persist/s3store"
	"github.com/marmos91/dittosh/pkg/credentials/persist/sqlstore"
)

// Type names a persistence backend.
type Type string

const (
	TypeJSON     Type = "json"
	TypeBadger   Type = "badger"
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeS3       Type = "s3"
	TypeMemory   Type = "memory"
)

// Config is the `credentials` configuration section.
type Config struct {
	Type     Type                    `mapstructure:"type" yaml:"type" json:"type" validate:"oneof=json badger sqlite postgres s3 memory"`
	JSON     jsonfile.Config         `mapstructure:"json" yaml:"json,omitempty" json:"json,omitempty"`
	Badger   badger.Config           `mapstructure:"badger" yaml:"badger,omitempty" json:"badger,omitempty"`
	SQLite   sqlstore.SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	Postgres sqlstore.PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty" json:"postgres,omitempty"`
	S3       s3store.Config          `mapstructure:"s3" yaml:"s3,omitempty" json:"s3,omitempty"`
}

// Backend is a Persister owning resources that must be released.
type Backend interface {
	credentials.Persister
	io.Closer
}

// DataDir is where file-based backends live by default.
func DataDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dittosh")
}

// ApplyDefaults fills paths for the selected backend.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeJSON
	}
	switch c.Type {
	case TypeJSON:
		if c.JSON.Path == "" {
			c.JSON.Path = filepath.Join(DataDir(), "users.json")
		}
	case TypeBadger:
		if c.Badger.Path == "" && !c.Badger.InMemory {
			c.Badger.Path = filepath.Join(DataDir(), "users.badger")
		}
	case TypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = filepath.Join(DataDir(), "users.db")
		}
	case TypeS3:
		if c.S3.Key == "" {
			c.S3.Key = s3store.DefaultKey
		}
	}
}

// Location describes where credentials are stored, for logs.
func (c *Config) Location() string {
	switch c.Type {
	case TypeJSON:
		return c.JSON.Path
	case TypeBadger:
		if c.Badger.InMemory {
			return "in-memory"
		}
		return c.Badger.Path
	case TypeSQLite:
		return c.SQLite.Path
	case TypePostgres:
		return fmt.Sprintf("%s:%d/%s", c.Postgres.Host, c.Postgres.Port, c.Postgres.Database)
	case TypeS3:
		return "s3://" + c.S3.Bucket + "/" + c.S3.Key
	}
	return string(c.Type)
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	cfg.ApplyDefaults()

	var (
		b   Backend
		err error
	)
	switch cfg.Type {
	case TypeJSON:
		b, err = jsonfile.New(cfg.JSON)
	case TypeBadger:
		b, err = badger.Open(cfg.Badger)
	case TypeSQLite:
		b, err = sqlstore.Open(sqlstore.Config{Type: sqlstore.DatabaseTypeSQLite, SQLite: cfg.SQLite})
	case TypePostgres:
		b, err = sqlstore.Open(sqlstore.Config{Type: sqlstore.DatabaseTypePostgres, Postgres: cfg.Postgres})
	case TypeS3:
		b, err = s3store.NewFromConfig(ctx, cfg.S3)
	case TypeMemory:
		b = credentials.NewMemoryPersister()
	default:
		return nil, fmt.Errorf("unknown credentials type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s credentials: %w", cfg.Type, err)
	}
	return b, nil
}
