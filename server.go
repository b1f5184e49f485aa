package todosync

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/todosync/core"
	"pkt.systems/todosync/httpapi"
	"pkt.systems/todosync/internal/authsession"
	"pkt.systems/todosync/internal/graph"
	"pkt.systems/todosync/internal/sessionstore"
	"pkt.systems/todosync/schema"
)

// Server composes the token store, the OneNote clients and the HTTP server.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service schema.ServiceConfig
	HTTP    httpapi.Config
	Graph   graph.Config
	OAuth   authsession.ClientConfig
	Store   sessionstore.Config
}

// ServerDeps overrides components built from config. Nil fields are built.
type ServerDeps struct {
	Acquirer authsession.Acquirer
	Store    sessionstore.Store
	Logger   pslog.Logger
}

// New constructs a todosync server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	acquirer := deps.Acquirer
	if acquirer == nil {
		msal, err := authsession.NewMSAL(cfg.OAuth)
		if err != nil {
			return nil, err
		}
		acquirer = msal
	}

	store := deps.Store
	ownsStore := false
	if store == nil {
		opened, err := sessionstore.Open(cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		store = opened
		ownsStore = true
	}

	provider, err := authsession.NewProvider(acquirer, store, authsession.WithLogger(logger))
	if err != nil {
		closeStore(store, ownsStore)
		return nil, err
	}
	registry, err := graph.NewRegistry(cfg.Graph, provider, logger)
	if err != nil {
		closeStore(store, ownsStore)
		return nil, err
	}
	service, err := core.NewService(cfg.Service, core.ServiceDeps{Remotes: registry})
	if err != nil {
		closeStore(store, ownsStore)
		return nil, err
	}
	httpSrv := httpapi.NewServer(cfg.HTTP, service, provider, registry)
	provider.SetChallenger(httpSrv)

	srv := &compositeServer{
		cfg:      cfg,
		httpSrv:  httpSrv,
		registry: registry,
	}
	if ownsStore {
		if closer, ok := store.(sessionstore.Closer); ok {
			srv.closer = closer
		}
	}
	return srv, nil
}

func closeStore(store sessionstore.Store, owned bool) {
	if !owned {
		return
	}
	if closer, ok := store.(sessionstore.Closer); ok {
		_ = closer.Close()
	}
}

type compositeServer struct {
	cfg      ServerConfig
	httpSrv  *httpapi.Server
	registry *graph.Registry
	closer   sessionstore.Closer
	logger   pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	closed  bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"notebook", s.cfg.Service.NotebookTitle,
		"section", s.cfg.Service.SectionTitle,
		"page", s.cfg.Service.PageTitle,
	)
	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	closer := s.closer
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested", "clients", s.registry.Len())
	if cancel != nil {
		cancel()
	}
	if closer != nil && !alreadyClosed {
		if err := closer.Close(); err != nil {
			log.Warn("session store close failed", "err", err)
		} else {
			log.Info("session store closed")
		}
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
