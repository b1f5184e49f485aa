// Package sessionstore provides the keyed blob store that backs per-user
// token caches. Values are opaque bytes; string helpers are provided for
// auxiliary state.
package sessionstore

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/pslog"
)

// Store is a keyed byte-blob store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}

// GetString reads a string value.
func GetString(ctx context.Context, store Store, key string) (string, bool, error) {
	data, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(data), true, nil
}

// SetString writes a string value.
func SetString(ctx context.Context, store Store, key, value string) error {
	return store.Set(ctx, key, []byte(value))
}

const (
	// BackendMemory keeps values in process memory.
	BackendMemory = "memory"
	// BackendFile keeps one file per key under a directory.
	BackendFile = "file"
	// BackendSQLite keeps values in a SQLite database.
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Backend      string
	Path         string
	Encrypt      bool
	KeyStorePath string
}

// Open constructs the configured store, wrapping it with encryption when requested.
func Open(cfg Config, logger pslog.Logger) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	var store Store
	switch backend {
	case "", BackendMemory:
		store = NewMemory()
	case BackendFile:
		fs, err := NewFile(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		store = fs
	case BackendSQLite:
		db, err := OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		store = db
	default:
		return nil, fmt.Errorf("unsupported session store backend %q", cfg.Backend)
	}
	if logger != nil {
		logger.Info("session store open", "backend", backendName(backend), "encrypt", cfg.Encrypt)
	}
	if !cfg.Encrypt {
		return store, nil
	}
	sealed, err := NewSealed(store, cfg.KeyStorePath, logger)
	if err != nil {
		if closer, ok := store.(Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	return sealed, nil
}

func backendName(backend string) string {
	if backend == "" {
		return BackendMemory
	}
	return backend
}
