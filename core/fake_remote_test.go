package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/todosync/schema"
)

type fakePage struct {
	page     schema.Page
	section  string
	anchor   string
	fragment string
	// hiddenFor counts page listings that still omit a freshly created page.
	hiddenFor int
}

// fakeRemote is an in-memory OneNote account.
type fakeRemote struct {
	mu        sync.Mutex
	notebooks []schema.Notebook
	sections  []schema.Section
	pages     []*fakePage
	nextID    int

	hideCreatedFor int
	listPagesErr   error
	patchErr       error

	listPagesCalls int
	created        map[string]int
	patches        [][]schema.PatchCommand
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{created: make(map[string]int)}
}

func (f *fakeRemote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRemote) seedPage(title, anchor, fragment string) schema.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := schema.Page{ID: f.id("page"), Title: title}
	f.pages = append(f.pages, &fakePage{page: page, anchor: anchor, fragment: fragment})
	return page
}

func (f *fakeRemote) createdCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[kind]
}

func (f *fakeRemote) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeRemote) ListNotebooks(context.Context) ([]schema.Notebook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Notebook(nil), f.notebooks...), nil
}

func (f *fakeRemote) CreateNotebook(_ context.Context, name string) (schema.Notebook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nb := schema.Notebook{ID: f.id("nb"), DisplayName: name}
	f.notebooks = append(f.notebooks, nb)
	f.created["notebook:"+name]++
	f.created["notebook"]++
	return nb, nil
}

func (f *fakeRemote) ListSections(context.Context) ([]schema.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Section(nil), f.sections...), nil
}

func (f *fakeRemote) CreateSection(_ context.Context, notebookID, name string) (schema.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, nb := range f.notebooks {
		if nb.ID == notebookID {
			found = true
		}
	}
	if !found {
		return schema.Section{}, errors.New("notebook not found")
	}
	sec := schema.Section{ID: f.id("sec"), DisplayName: name}
	f.sections = append(f.sections, sec)
	f.created["section:"+name]++
	f.created["section"]++
	return sec, nil
}

func (f *fakeRemote) ListPages(context.Context) ([]schema.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPagesCalls++
	if f.listPagesErr != nil {
		return nil, f.listPagesErr
	}
	var out []schema.Page
	for _, p := range f.pages {
		if p.hiddenFor > 0 {
			p.hiddenFor--
			continue
		}
		out = append(out, p.page)
	}
	return out, nil
}

func (f *fakeRemote) CreatePage(_ context.Context, sectionID, document string) (schema.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	title := between(document, "<title>", "</title>")
	fragment := between(document, "<div>", "</div>")
	page := schema.Page{ID: f.id("page"), Title: title}
	f.pages = append(f.pages, &fakePage{
		page:      page,
		section:   sectionID,
		anchor:    f.id("div"),
		fragment:  fragment,
		hiddenFor: f.hideCreatedFor,
	})
	f.created["page:"+title]++
	f.created["page"]++
	return page, nil
}

func (f *fakeRemote) PageContent(_ context.Context, pageID string, includeIDs bool) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pages {
		if p.page.ID != pageID {
			continue
		}
		div := "<div>"
		if includeIDs && p.anchor != "" {
			div = `<div id="` + p.anchor + `">`
		}
		doc := "<html><head><title>" + p.page.Title + "</title></head><body>" + div + p.fragment + "</div></body></html>"
		return []byte(doc), nil
	}
	return nil, errors.New("page not found")
}

func (f *fakeRemote) PatchPage(_ context.Context, pageID string, commands []schema.PatchCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, commands)
	if f.patchErr != nil {
		return f.patchErr
	}
	for _, p := range f.pages {
		if p.page.ID != pageID {
			continue
		}
		for _, cmd := range commands {
			if cmd.Action == schema.PatchReplace && cmd.Target == p.anchor {
				p.fragment = cmd.Content
			}
		}
		return nil
	}
	return errors.New("page not found")
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}

// fakeProvider hands out one fake remote per identity.
type fakeProvider struct {
	mu      sync.Mutex
	remotes map[schema.Identity]*fakeRemote
	err     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{remotes: make(map[schema.Identity]*fakeRemote)}
}

func (p *fakeProvider) forIdentity(identity schema.Identity) *fakeRemote {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.remotes[identity]
	if !ok {
		r = newFakeRemote()
		p.remotes[identity] = r
	}
	return r
}

func (p *fakeProvider) Remote(identity schema.Identity) (RemoteStore, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.forIdentity(identity), nil
}

type fakeStatusError struct {
	status  int
	message string
}

func (e *fakeStatusError) Error() string         { return fmt.Sprintf("status %d: %s", e.status, e.message) }
func (e *fakeStatusError) StatusCode() int       { return e.status }
func (e *fakeStatusError) RemoteMessage() string { return e.message }
