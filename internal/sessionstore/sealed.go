package sessionstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"
)

const sealedDescriptor = "todosync:sessionstore"

// Sealed encrypts values at rest before handing them to the inner store.
type Sealed struct {
	inner    Store
	root     keymgmt.RootKey
	material keymgmt.Material
	log      pslog.Logger
}

// NewSealed loads (or creates) the key store at keyStorePath and wraps inner.
func NewSealed(inner Store, keyStorePath string, logger pslog.Logger) (*Sealed, error) {
	if inner == nil {
		return nil, fmt.Errorf("sealed session store requires an inner store")
	}
	if strings.TrimSpace(keyStorePath) == "" {
		return nil, fmt.Errorf("session key store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(keyStorePath), 0o700); err != nil {
		return nil, err
	}
	store, err := keymgmt.LoadProto(keyStorePath)
	if err != nil {
		return nil, fmt.Errorf("load session key store: %w", err)
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return nil, fmt.Errorf("ensure session root key: %w", err)
	}
	material, err := store.EnsureDescriptor(sealedDescriptor, root, []byte(sealedDescriptor))
	if err != nil {
		return nil, fmt.Errorf("ensure session data key: %w", err)
	}
	if err := store.Commit(); err != nil {
		return nil, fmt.Errorf("commit session key store: %w", err)
	}
	if logger != nil {
		logger.Info("session key store ensure ok", "path", keyStorePath)
	}
	return &Sealed{
		inner:    inner,
		root:     root,
		material: material,
		log:      logger,
	}, nil
}

// Get implements Store. Values that fail to decrypt are reported as errors.
func (s *Sealed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	kg := kryptograf.New(s.root)
	reader, err := kg.DecryptReader(bytes.NewReader(data), s.material)
	if err != nil {
		return nil, false, fmt.Errorf("decrypt %s: %w", key, err)
	}
	defer func() { _ = reader.Close() }()
	plain, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, true, nil
}

// Set implements Store.
func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	var buf bytes.Buffer
	kg := kryptograf.New(s.root)
	writer, err := kg.EncryptWriter(&buf, s.material)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	if _, err := io.Copy(writer, bytes.NewReader(value)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, buf.Bytes())
}

// Delete implements Store.
func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the inner store when it holds resources.
func (s *Sealed) Close() error {
	if closer, ok := s.inner.(Closer); ok {
		return closer.Close()
	}
	return nil
}
