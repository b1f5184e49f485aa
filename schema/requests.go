package schema

// FetchListRequest describes a request to read the synchronized list.
type FetchListRequest struct {
	Identity Identity
}

// FetchListResponse reports the synchronized list.
type FetchListResponse struct {
	Items TodoList
}

// SaveListRequest describes a request to replace the synchronized list.
type SaveListRequest struct {
	Identity Identity
	Items    TodoList
}

// SaveListResponse reports a successful save.
type SaveListResponse struct {
	Page Page
}

// AddItemRequest appends an item to the list.
type AddItemRequest struct {
	Identity Identity
	Item     TodoItem
}

// UpdateItemRequest sets the done state of the first item matching Item.Task.
type UpdateItemRequest struct {
	Identity Identity
	Item     TodoItem
}

// DeleteItemRequest removes the first item matching both Item.Task and Item.Done.
type DeleteItemRequest struct {
	Identity Identity
	Item     TodoItem
}

// ListResponse reports the list after a mutation.
type ListResponse struct {
	Items TodoList
}
