package tokencache

import (
	"context"
	"errors"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

// Capture holds a serialized cache in memory. It backs the library while the
// signed-in identity is not known yet; once it is, the captured bytes are
// persisted with Cache.Persist.
type Capture struct {
	mu   sync.Mutex
	data []byte
}

var (
	_ cache.ExportReplace = (*Capture)(nil)
	_ cache.Marshaler     = (*Capture)(nil)
)

// Replace implements cache.ExportReplace.
func (c *Capture) Replace(_ context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if len(data) == 0 {
		data = emptyBlob
	}
	return u.Unmarshal(data)
}

// Export implements cache.ExportReplace.
func (c *Capture) Export(_ context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	return nil
}

// Marshal returns the captured bytes.
func (c *Capture) Marshal() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.data) == 0 {
		return nil, errors.New("no token cache captured")
	}
	return append([]byte(nil), c.data...), nil
}
