package graph

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/todosync/core"
	"pkt.systems/todosync/schema"
)

// TokenProvider yields access tokens for an identity.
type TokenProvider interface {
	AccessToken(ctx context.Context, identity schema.Identity) (string, error)
}

// Registry caches one Client per identity. Clients are never shared across
// identities.
type Registry struct {
	cfg    Config
	tokens TokenProvider
	log    pslog.Logger

	mu      sync.Mutex
	clients map[schema.Identity]*Client
}

var _ core.RemoteProvider = (*Registry)(nil)

// NewRegistry constructs an empty registry.
func NewRegistry(cfg Config, tokens TokenProvider, logger pslog.Logger) (*Registry, error) {
	if tokens == nil {
		return nil, errors.New("graph token provider is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{
		cfg:     cfg,
		tokens:  tokens,
		log:     logger,
		clients: make(map[schema.Identity]*Client),
	}, nil
}

// Client returns the identity's client, creating it on first use.
func (r *Registry) Client(identity schema.Identity) (*Client, error) {
	if err := schema.ValidateIdentity(identity); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[identity]; ok {
		return client, nil
	}
	token := func(ctx context.Context) (string, error) {
		return r.tokens.AccessToken(ctx, identity)
	}
	client, err := New(r.cfg, token, r.log.With("user", identity))
	if err != nil {
		return nil, err
	}
	r.clients[identity] = client
	r.log.Debug("graph client created", "user", identity)
	return client, nil
}

// Remote implements core.RemoteProvider.
func (r *Registry) Remote(identity schema.Identity) (core.RemoteStore, error) {
	client, err := r.Client(identity)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Evict drops the identity's cached client.
func (r *Registry) Evict(identity schema.Identity) {
	r.mu.Lock()
	_, ok := r.clients[identity]
	delete(r.clients, identity)
	r.mu.Unlock()
	if ok {
		r.log.Debug("graph client evicted", "user", identity)
	}
}

// Len reports the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
