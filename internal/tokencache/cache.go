// Package tokencache keeps MSAL's in-memory token cache coherent with a
// per-identity blob in an external session store.
//
// Every access by the acquisition library is bracketed: the blob is reloaded
// before the access and written back after any access that changed it.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"

	"pkt.systems/pslog"
	"pkt.systems/todosync/internal/sessionstore"
	"pkt.systems/todosync/schema"
)

const (
	cacheKeySuffix = "_TokenCache"
	stateKeySuffix = "_state"
)

// emptyBlob is the serialized form of an empty MSAL cache.
var emptyBlob = []byte("{}")

// Cache mediates between the acquisition library's cache and the session store
// for a single identity.
type Cache struct {
	identity schema.Identity
	store    sessionstore.Store
	lock     *sync.RWMutex
	log      pslog.Logger

	mu    sync.Mutex
	dirty bool
}

var _ cache.ExportReplace = (*Cache)(nil)

// Option configures a Cache.
type Option func(*options)

type options struct {
	locks  *Locks
	logger pslog.Logger
}

// WithLocks overrides the process-wide lock registry.
func WithLocks(locks *Locks) Option {
	return func(o *options) { o.locks = locks }
}

// WithLogger attaches a logger.
func WithLogger(logger pslog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New binds a cache to identity.
func New(identity schema.Identity, store sessionstore.Store, opts ...Option) (*Cache, error) {
	if err := schema.ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	o := options{locks: processLocks}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locks == nil {
		o.locks = processLocks
	}
	logger := o.logger
	if logger != nil {
		logger = logger.With("user", identity)
	}
	return &Cache{
		identity: identity,
		store:    store,
		lock:     o.locks.For(identity),
		log:      logger,
	}, nil
}

// Identity returns the identity the cache is bound to.
func (c *Cache) Identity() schema.Identity {
	return c.identity
}

// Key is the session store key of the serialized cache.
func (c *Cache) Key() string {
	return string(c.identity) + cacheKeySuffix
}

// StateKey is the session store key of the auxiliary state value.
func (c *Cache) StateKey() string {
	return c.Key() + stateKeySuffix
}

// Dirty reports whether the library changed the cache since the last persist.
func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *Cache) setDirty(dirty bool) {
	c.mu.Lock()
	c.dirty = dirty
	c.mu.Unlock()
}

// Load deserializes the stored blob into u. It always reads the store, since
// another process may have written it. A missing or unreadable blob loads as
// an empty cache.
func (c *Cache) Load(ctx context.Context, u cache.Unmarshaler) error {
	c.lock.RLock()
	defer c.lock.RUnlock()
	data, ok, err := c.store.Get(ctx, c.Key())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if c.log != nil {
			c.log.Warn("token cache load failed", "err", err)
		}
		ok = false
	}
	if !ok || len(data) == 0 {
		data = emptyBlob
	}
	if err := u.Unmarshal(data); err != nil {
		if c.log != nil {
			c.log.Warn("token cache blob corrupt; starting empty", "err", err)
		}
		_ = u.Unmarshal(emptyBlob)
		return nil
	}
	if c.log != nil {
		c.log.Trace("token cache load ok", "bytes", len(data))
	}
	return nil
}

// Persist serializes m and writes it to the store. The dirty flag is cleared
// before the write so a change made while the write is in flight stays marked.
func (c *Cache) Persist(ctx context.Context, m cache.Marshaler) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.setDirty(false)
	data, err := m.Marshal()
	if err != nil {
		c.setDirty(true)
		if c.log != nil {
			c.log.Warn("token cache serialize failed", "err", err)
		}
		return fmt.Errorf("serialize token cache: %w", err)
	}
	if err := c.store.Set(ctx, c.Key(), data); err != nil {
		c.setDirty(true)
		if c.log != nil {
			c.log.Warn("token cache persist failed", "err", err)
		}
		return fmt.Errorf("persist token cache: %w", err)
	}
	if c.log != nil {
		c.log.Debug("token cache persist ok", "bytes", len(data))
	}
	return nil
}

// BeforeAccess runs before the library reads or writes its cache.
func (c *Cache) BeforeAccess(ctx context.Context, u cache.Unmarshaler) error {
	return c.Load(ctx, u)
}

// AfterAccess runs after the library touched its cache; changed reports
// whether it wrote to it.
func (c *Cache) AfterAccess(ctx context.Context, m cache.Marshaler, changed bool) error {
	if changed {
		c.setDirty(true)
	}
	if !c.Dirty() {
		return nil
	}
	return c.Persist(ctx, m)
}

// Replace implements cache.ExportReplace.
func (c *Cache) Replace(ctx context.Context, u cache.Unmarshaler, _ cache.ReplaceHints) error {
	return c.BeforeAccess(ctx, u)
}

// Export implements cache.ExportReplace. MSAL only exports after writing.
func (c *Cache) Export(ctx context.Context, m cache.Marshaler, _ cache.ExportHints) error {
	return c.AfterAccess(ctx, m, true)
}

// ReadState returns the auxiliary state value, or "" when unset.
func (c *Cache) ReadState(ctx context.Context) (string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	state, _, err := sessionstore.GetString(ctx, c.store, c.StateKey())
	return state, err
}

// SaveState writes the auxiliary state value.
func (c *Cache) SaveState(ctx context.Context, state string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return sessionstore.SetString(ctx, c.store, c.StateKey(), state)
}

// Clear removes the serialized cache and state for the identity.
func (c *Cache) Clear(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.setDirty(false)
	if err := c.store.Delete(ctx, c.Key()); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, c.StateKey()); err != nil {
		return err
	}
	if c.log != nil {
		c.log.Info("token cache cleared")
	}
	return nil
}
