package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pkt.systems/pslog"
	"pkt.systems/todosync/internal/logx"
	"pkt.systems/todosync/internal/pagecodec"
	"pkt.systems/todosync/schema"
)

// service implements the reconciliation engine.
type service struct {
	cfg      schema.ServiceConfig
	remotes  RemoteProvider
	creating singleflight.Group
	now      func() time.Time

	flightsMu sync.Mutex
	flights   map[schema.Identity]*flight
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Remotes == nil {
		return nil, errors.New("remote provider is required")
	}
	return &service{
		cfg:     normalized,
		remotes: deps.Remotes,
		now:     time.Now,
		flights: make(map[schema.Identity]*flight),
	}, nil
}

func (s *service) remote(ctx context.Context, identity schema.Identity) (RemoteStore, context.Context, pslog.Logger, error) {
	if ctx == nil {
		return nil, nil, nil, errors.New("missing context")
	}
	if err := schema.ValidateIdentity(identity); err != nil {
		return nil, ctx, nil, err
	}
	log := logx.WithUser(ctx, identity)
	ctx = logx.ContextWithUserLogger(ctx, log, identity)
	remote, err := s.remotes.Remote(identity)
	if err != nil {
		return nil, ctx, log, err
	}
	return remote, ctx, log, nil
}

func (s *service) FetchList(ctx context.Context, req schema.FetchListRequest) (schema.FetchListResponse, error) {
	remote, ctx, log, err := s.remote(ctx, req.Identity)
	if err != nil {
		return schema.FetchListResponse{}, err
	}
	log.Debug("sync fetch start")
	page, found, err := s.findPage(ctx, remote)
	if err != nil {
		log.Warn("sync fetch failed", "err", err)
		return schema.FetchListResponse{}, err
	}
	if !found {
		page, err = s.bootstrap(ctx, req.Identity, remote)
		if err != nil {
			log.Warn("sync bootstrap failed", "err", err)
			return schema.FetchListResponse{}, err
		}
	}
	log = logx.WithPage(log, page)
	content, err := remote.PageContent(ctx, page.ID, false)
	if err != nil {
		log.Warn("sync fetch failed", "err", err)
		return schema.FetchListResponse{}, fmt.Errorf("fetch page content: %w", err)
	}
	items, err := pagecodec.Decode(bytes.NewReader(content))
	if err != nil {
		log.Warn("sync decode failed", "err", err)
		return schema.FetchListResponse{}, err
	}
	log.Debug("sync fetch ok", "items", len(items))
	return schema.FetchListResponse{Items: items}, nil
}

func (s *service) SaveList(ctx context.Context, req schema.SaveListRequest) (schema.SaveListResponse, error) {
	remote, ctx, log, err := s.remote(ctx, req.Identity)
	if err != nil {
		return schema.SaveListResponse{}, err
	}
	page, found, err := s.findPage(ctx, remote)
	if err != nil {
		log.Warn("sync save failed", "err", err)
		return schema.SaveListResponse{}, err
	}
	if !found {
		log.Warn("sync save failed", "err", schema.ErrSyncTargetMissing)
		return schema.SaveListResponse{}, schema.ErrSyncTargetMissing
	}
	log = logx.WithPage(log, page)
	content, err := remote.PageContent(ctx, page.ID, true)
	if err != nil {
		log.Warn("sync save failed", "err", err)
		return schema.SaveListResponse{}, fmt.Errorf("fetch page content: %w", err)
	}
	anchor, err := pagecodec.Anchor(bytes.NewReader(content))
	if err != nil {
		log.Warn("sync save failed", "err", err)
		return schema.SaveListResponse{}, err
	}
	fragment, err := pagecodec.Encode(req.Items)
	if err != nil {
		return schema.SaveListResponse{}, err
	}
	commands := []schema.PatchCommand{{Action: schema.PatchReplace, Target: anchor, Content: fragment}}
	if err := remote.PatchPage(ctx, page.ID, commands); err != nil {
		var status remoteStatus
		if errors.As(err, &status) {
			updateErr := &schema.RemoteUpdateError{Status: status.StatusCode(), Message: status.RemoteMessage()}
			log.Warn("sync save rejected", "status", updateErr.Status, "err", updateErr)
			return schema.SaveListResponse{}, updateErr
		}
		log.Warn("sync save failed", "err", err)
		return schema.SaveListResponse{}, fmt.Errorf("patch page: %w", err)
	}
	log.Info("sync save ok", "items", len(req.Items), "anchor", anchor)
	return schema.SaveListResponse{Page: page}, nil
}

func (s *service) AddItem(ctx context.Context, req schema.AddItemRequest) (schema.ListResponse, error) {
	item, err := schema.NormalizeTodoItem(req.Item)
	if err != nil {
		return schema.ListResponse{}, err
	}
	return s.modify(ctx, req.Identity, func(items schema.TodoList) (schema.TodoList, error) {
		return append(items, item), nil
	})
}

func (s *service) UpdateItem(ctx context.Context, req schema.UpdateItemRequest) (schema.ListResponse, error) {
	item, err := schema.NormalizeTodoItem(req.Item)
	if err != nil {
		return schema.ListResponse{}, err
	}
	return s.modify(ctx, req.Identity, func(items schema.TodoList) (schema.TodoList, error) {
		for i := range items {
			if items[i].Task == item.Task {
				items[i].Done = item.Done
				return items, nil
			}
		}
		return nil, schema.ErrTodoNotFound
	})
}

func (s *service) DeleteItem(ctx context.Context, req schema.DeleteItemRequest) (schema.ListResponse, error) {
	item, err := schema.NormalizeTodoItem(req.Item)
	if err != nil {
		return schema.ListResponse{}, err
	}
	return s.modify(ctx, req.Identity, func(items schema.TodoList) (schema.TodoList, error) {
		for i := range items {
			if items[i] == item {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, schema.ErrTodoNotFound
	})
}

// modify runs fetch, change, save. It is not transactional: a concurrent
// writer between fetch and save is overwritten.
func (s *service) modify(ctx context.Context, identity schema.Identity, change func(schema.TodoList) (schema.TodoList, error)) (schema.ListResponse, error) {
	fetched, err := s.FetchList(ctx, schema.FetchListRequest{Identity: identity})
	if err != nil {
		return schema.ListResponse{}, err
	}
	items, err := change(fetched.Items)
	if err != nil {
		return schema.ListResponse{}, err
	}
	if _, err := s.SaveList(ctx, schema.SaveListRequest{Identity: identity, Items: items}); err != nil {
		return schema.ListResponse{}, err
	}
	return schema.ListResponse{Items: items}, nil
}
