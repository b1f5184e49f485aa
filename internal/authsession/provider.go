// Package authsession yields access tokens for signed-in identities and owns
// the interactive authorization-code flow.
package authsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/todosync/internal/logx"
	"pkt.systems/todosync/internal/sessionstore"
	"pkt.systems/todosync/internal/tokencache"
	"pkt.systems/todosync/schema"
)

// Challenger starts re-authentication for an identity whose tokens are gone.
type Challenger interface {
	Challenge(ctx context.Context, identity schema.Identity)
}

// ChallengerFunc adapts a function to Challenger.
type ChallengerFunc func(ctx context.Context, identity schema.Identity)

// Challenge implements Challenger.
func (f ChallengerFunc) Challenge(ctx context.Context, identity schema.Identity) {
	f(ctx, identity)
}

// Provider acquires tokens silently from each identity's persisted cache.
type Provider struct {
	acquirer Acquirer
	store    sessionstore.Store
	locks    *tokencache.Locks
	log      pslog.Logger

	mu         sync.RWMutex
	challenger Challenger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithChallenger sets the re-authentication hook.
func WithChallenger(ch Challenger) ProviderOption {
	return func(p *Provider) { p.challenger = ch }
}

// WithLocks overrides the token cache lock registry.
func WithLocks(locks *tokencache.Locks) ProviderOption {
	return func(p *Provider) { p.locks = locks }
}

// WithLogger attaches a logger.
func WithLogger(logger pslog.Logger) ProviderOption {
	return func(p *Provider) { p.log = logger }
}

// NewProvider constructs a provider backed by store.
func NewProvider(acquirer Acquirer, store sessionstore.Store, opts ...ProviderOption) (*Provider, error) {
	if acquirer == nil {
		return nil, errors.New("token acquirer is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	p := &Provider{acquirer: acquirer, store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.locks == nil {
		p.locks = tokencache.NewLocks()
	}
	if p.log == nil {
		p.log = pslog.Ctx(context.Background())
	}
	return p, nil
}

// SetChallenger replaces the re-authentication hook.
func (p *Provider) SetChallenger(ch Challenger) {
	p.mu.Lock()
	p.challenger = ch
	p.mu.Unlock()
}

func (p *Provider) cache(identity schema.Identity) (*tokencache.Cache, error) {
	return tokencache.New(identity, p.store, tokencache.WithLocks(p.locks), tokencache.WithLogger(p.log))
}

// AccessToken returns a valid token for identity, refreshing it when needed.
// When no usable token exists the identity is challenged and the error wraps
// schema.ErrAuthenticationRequired.
func (p *Provider) AccessToken(ctx context.Context, identity schema.Identity) (string, error) {
	log := logx.WithUser(ctx, identity)
	cache, err := p.cache(identity)
	if err != nil {
		return "", err
	}
	token, err := p.acquirer.AcquireSilent(ctx, cache, identity)
	if err == nil && strings.TrimSpace(token.AccessToken) == "" {
		err = errors.New("empty access token")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Warn("auth silent acquire failed", "err", err)
		p.challenge(ctx, identity)
		return "", fmt.Errorf("%w: %v", schema.ErrAuthenticationRequired, err)
	}
	log.Trace("auth silent acquire ok")
	return token.AccessToken, nil
}

func (p *Provider) challenge(ctx context.Context, identity schema.Identity) {
	p.mu.RLock()
	ch := p.challenger
	p.mu.RUnlock()
	if ch == nil {
		logx.WithUser(ctx, identity).Warn("auth challenge skipped", "reason", "no challenger")
		return
	}
	ch.Challenge(ctx, identity)
}

// AuthCodeURL returns the identity provider's sign-in URL carrying state.
func (p *Provider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	return p.acquirer.AuthCodeURL(ctx, state)
}

// Redeem exchanges an authorization code for tokens and persists them under
// the signed-in identity.
func (p *Provider) Redeem(ctx context.Context, code string) (schema.Account, error) {
	log := pslog.Ctx(ctx)
	if strings.TrimSpace(code) == "" {
		return schema.Account{}, schema.ErrInvalidRequest
	}
	capture := &tokencache.Capture{}
	token, err := p.acquirer.RedeemCode(ctx, capture, code)
	if err != nil {
		log.Warn("auth code redeem failed", "err", err)
		return schema.Account{}, fmt.Errorf("%w: %v", schema.ErrAuthenticationRequired, err)
	}
	account := token.Account
	cache, err := p.cache(account.Identity)
	if err != nil {
		log.Warn("auth code redeem failed", "err", err)
		return schema.Account{}, err
	}
	if err := cache.Persist(ctx, capture); err != nil {
		log.Warn("auth token persist failed", "user", account.Identity, "err", err)
		return schema.Account{}, err
	}
	if err := cache.SaveState(ctx, account.Username); err != nil {
		log.Warn("auth state persist failed", "user", account.Identity, "err", err)
	}
	log.Info("auth sign-in ok", "user", account.Identity, "username", account.Username)
	return account, nil
}

// Account returns the identity and the username remembered at sign-in.
func (p *Provider) Account(ctx context.Context, identity schema.Identity) (schema.Account, error) {
	cache, err := p.cache(identity)
	if err != nil {
		return schema.Account{}, err
	}
	username, err := cache.ReadState(ctx)
	if err != nil {
		return schema.Account{}, err
	}
	return schema.Account{Identity: identity, Username: username}, nil
}

// SignOut drops the identity's persisted tokens.
func (p *Provider) SignOut(ctx context.Context, identity schema.Identity) error {
	cache, err := p.cache(identity)
	if err != nil {
		return err
	}
	if err := cache.Clear(ctx); err != nil {
		logx.WithUser(ctx, identity).Warn("auth sign-out failed", "err", err)
		return err
	}
	logx.WithUser(ctx, identity).Info("auth sign-out ok")
	return nil
}
