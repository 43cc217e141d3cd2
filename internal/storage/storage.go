// Package storage provides the key-value port that Cortex persists its
// archive, notes and access grant through.
//
// A Backend maps a string key to an opaque byte value. Three drivers are
// available:
//   - memory: process-local map, used by tests and ephemeral runs
//   - file: one file per key inside a directory
//   - sqlite: a single kv table in an embedded SQLite database
//
// Backends never interpret values. Decoding, corruption handling and
// defaults belong to the stores built on top (session.Archive, notes.Store).
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been written or
// has been deleted.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a minimal key-value store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// Validate checks that the driver is known and has the settings it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverFile, DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("storage path is required for driver %q", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q (want memory, file or sqlite)", c.Driver)
	}
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverFile:
		return NewFileBackend(cfg.Path)
	case DriverSQLite:
		return NewSQLiteBackend(ctx, cfg.Path)
	default:
		return NewMemoryBackend(), nil
	}
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("storage: key cannot be empty")
	}
	return nil
}
