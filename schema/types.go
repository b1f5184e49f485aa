package schema

// Identity identifies the signed-in user a request acts for.
type Identity string

// TodoItem is a single entry on the synchronized todo list.
// Task text doubles as the item's identity for update and delete.
type TodoItem struct {
	Task string `json:"task"`
	Done bool   `json:"done"`
}

// TodoList is an ordered list of todo items, as last written.
type TodoList []TodoItem

// Notebook is a OneNote notebook reference.
type Notebook struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Section is a OneNote section reference.
type Section struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Page is a OneNote page reference.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PatchAction names a OneNote page content patch action.
type PatchAction string

// PatchReplace replaces the children of the target element.
const PatchReplace PatchAction = "replace"

// PatchCommand is one element of a page content PATCH body.
type PatchCommand struct {
	Action  PatchAction `json:"action"`
	Target  string      `json:"target"`
	Content string      `json:"content"`
}

// Account describes the signed-in account after a successful login.
type Account struct {
	Identity Identity
	Username string
}
