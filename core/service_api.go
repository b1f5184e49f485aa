package core

import (
	"context"

	"pkt.systems/todosync/schema"
)

// Service is the transport-agnostic API for the synchronized todo list.
type Service interface {
	FetchList(ctx context.Context, req schema.FetchListRequest) (schema.FetchListResponse, error)
	SaveList(ctx context.Context, req schema.SaveListRequest) (schema.SaveListResponse, error)
	AddItem(ctx context.Context, req schema.AddItemRequest) (schema.ListResponse, error)
	UpdateItem(ctx context.Context, req schema.UpdateItemRequest) (schema.ListResponse, error)
	DeleteItem(ctx context.Context, req schema.DeleteItemRequest) (schema.ListResponse, error)
}
