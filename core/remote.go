package core

import (
	"context"

	"pkt.systems/todosync/schema"
)

// RemoteStore is the OneNote surface the reconciliation engine needs.
type RemoteStore interface {
	ListNotebooks(ctx context.Context) ([]schema.Notebook, error)
	CreateNotebook(ctx context.Context, name string) (schema.Notebook, error)
	ListSections(ctx context.Context) ([]schema.Section, error)
	CreateSection(ctx context.Context, notebookID, name string) (schema.Section, error)
	ListPages(ctx context.Context) ([]schema.Page, error)
	CreatePage(ctx context.Context, sectionID, document string) (schema.Page, error)
	PageContent(ctx context.Context, pageID string, includeIDs bool) ([]byte, error)
	PatchPage(ctx context.Context, pageID string, commands []schema.PatchCommand) error
}

// RemoteProvider returns the remote store bound to an identity.
type RemoteProvider interface {
	Remote(identity schema.Identity) (RemoteStore, error)
}

// remoteStatus is implemented by remote errors that carry an HTTP status.
type remoteStatus interface {
	error
	StatusCode() int
	RemoteMessage() string
}
