package sessionstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/pslog"
)

// File persists each key to its own file under a directory.
type File struct {
	dir string
	log pslog.Logger
}

// NewFile constructs a file store rooted at dir.
func NewFile(dir string, logger pslog.Logger) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("session store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("session_dir", dir)
	}
	return &File{dir: dir, log: logger}, nil
}

// Get implements Store.
func (s *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.pathForKey(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Trace("session load miss", "key", key)
			}
			return nil, false, nil
		}
		if s.log != nil {
			s.log.Warn("session load failed", "key", key, "err", err)
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set implements Store.
func (s *File) Set(_ context.Context, key string, value []byte) error {
	path := s.pathForKey(key)
	if err := writeFileAtomic(path, value); err != nil {
		if s.log != nil {
			s.log.Warn("session save failed", "key", key, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Trace("session save ok", "key", key, "bytes", len(value))
	}
	return nil
}

// Delete implements Store.
func (s *File) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.pathForKey(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		if s.log != nil {
			s.log.Warn("session delete failed", "key", key, "err", err)
		}
		return err
	}
	return nil
}

func (s *File) pathForKey(key string) string {
	name := sanitize(key)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".bin")
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "session-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
