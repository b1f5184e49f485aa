package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"pkt.systems/todosync/internal/logx"
	"pkt.systems/todosync/internal/pagecodec"
	"pkt.systems/todosync/schema"
)

// findPage resolves the synchronized page by exact title. The first match in
// listing order wins.
func (s *service) findPage(ctx context.Context, remote RemoteStore) (schema.Page, bool, error) {
	pages, err := remote.ListPages(ctx)
	if err != nil {
		return schema.Page{}, false, fmt.Errorf("list pages: %w", err)
	}
	for _, page := range pages {
		if page.Title == s.cfg.PageTitle {
			return page, true, nil
		}
	}
	return schema.Page{}, false, nil
}

func (s *service) ensureNotebook(ctx context.Context, remote RemoteStore) (schema.Notebook, error) {
	notebooks, err := remote.ListNotebooks(ctx)
	if err != nil {
		return schema.Notebook{}, fmt.Errorf("list notebooks: %w", err)
	}
	for _, nb := range notebooks {
		if nb.DisplayName == s.cfg.NotebookTitle {
			return nb, nil
		}
	}
	nb, err := remote.CreateNotebook(ctx, s.cfg.NotebookTitle)
	if err != nil {
		return schema.Notebook{}, fmt.Errorf("create notebook: %w", err)
	}
	logx.Ctx(ctx).Info("sync notebook created", "notebook", nb.ID)
	return nb, nil
}

func (s *service) ensureSection(ctx context.Context, remote RemoteStore) (schema.Section, error) {
	sections, err := remote.ListSections(ctx)
	if err != nil {
		return schema.Section{}, fmt.Errorf("list sections: %w", err)
	}
	for _, sec := range sections {
		if sec.DisplayName == s.cfg.SectionTitle {
			return sec, nil
		}
	}
	nb, err := s.ensureNotebook(ctx, remote)
	if err != nil {
		return schema.Section{}, err
	}
	sec, err := remote.CreateSection(ctx, nb.ID, s.cfg.SectionTitle)
	if err != nil {
		return schema.Section{}, fmt.Errorf("create section: %w", err)
	}
	logx.Ctx(ctx).Info("sync section created", "section", sec.ID)
	return sec, nil
}

var errFlightAbandoned = errors.New("page creation abandoned")

// flight is a page creation shared by every concurrent caller of one
// identity. It runs detached from any single caller and is cancelled once the
// last caller has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (s *service) joinFlight(ctx context.Context, identity schema.Identity) *flight {
	s.flightsMu.Lock()
	defer s.flightsMu.Unlock()
	f, ok := s.flights[identity]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[identity] = f
	}
	f.waiters++
	return f
}

func (s *service) leaveFlight(identity schema.Identity, f *flight) {
	s.flightsMu.Lock()
	defer s.flightsMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[identity] == f {
		delete(s.flights, identity)
	}
}

// bootstrap creates the synchronized page and waits for it to become
// visible. Concurrent calls for one identity share a single creation; each
// caller stops waiting when its own context ends.
func (s *service) bootstrap(ctx context.Context, identity schema.Identity, remote RemoteStore) (schema.Page, error) {
	log := logx.Ctx(ctx)
	for {
		f := s.joinFlight(ctx, identity)
		ch := s.creating.DoChan(string(identity), func() (any, error) {
			page, err := s.createPage(f.ctx, remote)
			if err != nil && f.ctx.Err() != nil {
				return nil, errFlightAbandoned
			}
			return page, err
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			s.leaveFlight(identity, f)
			return schema.Page{}, ctx.Err()
		case res = <-ch:
		}
		s.leaveFlight(identity, f)
		if res.Shared {
			log.Debug("sync bootstrap shared")
		}
		if res.Err != nil {
			// Joined a creation abandoned by its earlier callers.
			if errors.Is(res.Err, errFlightAbandoned) {
				if ctx.Err() != nil {
					return schema.Page{}, ctx.Err()
				}
				log.Debug("sync bootstrap restart")
				continue
			}
			return schema.Page{}, res.Err
		}
		return res.Val.(schema.Page), nil
	}
}

func (s *service) createPage(ctx context.Context, remote RemoteStore) (schema.Page, error) {
	log := logx.Ctx(ctx)
	// A flight that finished just before this one may already have created it.
	if page, found, err := s.findPage(ctx, remote); err != nil {
		return schema.Page{}, err
	} else if found {
		return page, nil
	}
	sec, err := s.ensureSection(ctx, remote)
	if err != nil {
		return schema.Page{}, err
	}
	created, err := remote.CreatePage(ctx, sec.ID, pagecodec.NewPage(s.cfg.PageTitle))
	if err != nil {
		return schema.Page{}, fmt.Errorf("create page: %w", err)
	}
	log.Info("sync page created", "page", created.ID, "section", sec.ID)
	return s.awaitPage(ctx, remote)
}

// awaitPage polls the page listing until the created page shows up or the
// poll budget runs out. Listing errors are retried, except a lost
// authorization which ends the poll.
func (s *service) awaitPage(ctx context.Context, remote RemoteStore) (schema.Page, error) {
	log := logx.Ctx(ctx)
	deadline := s.now().Add(s.cfg.PollTimeout)
	attempts := 0
	for {
		attempts++
		page, found, err := s.findPage(ctx, remote)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return schema.Page{}, ctxErr
		}
		switch {
		case errors.Is(err, schema.ErrAuthenticationRequired):
			log.Warn("sync page poll unauthorized", "attempt", attempts, "err", err)
			return schema.Page{}, err
		case err != nil:
			log.Debug("sync page poll failed", "attempt", attempts, "err", err)
		case found:
			log.Debug("sync page visible", "page", page.ID, "attempts", attempts)
			return page, nil
		}
		if !s.now().Before(deadline) {
			log.Warn("sync page poll timed out", "attempts", attempts, "timeout", s.cfg.PollTimeout)
			return schema.Page{}, schema.ErrSyncCreationTimeout
		}
		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return schema.Page{}, ctx.Err()
		case <-timer.C:
		}
	}
}
