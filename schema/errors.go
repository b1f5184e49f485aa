package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidIdentity indicates an invalid identity.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrAuthenticationRequired indicates no usable token exists for the identity.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrSyncTargetMissing indicates the synchronized page does not exist yet.
	ErrSyncTargetMissing = errors.New("synchronized page not found")
	// ErrMalformedDocument indicates the page lacks the expected container structure.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrSyncCreationTimeout indicates a newly created page never became visible.
	ErrSyncCreationTimeout = errors.New("synchronized page creation timed out")
	// ErrRemoteUpdateFailed indicates the remote store rejected a partial update.
	ErrRemoteUpdateFailed = errors.New("remote update failed")
	// ErrTodoNotFound indicates no todo item matched the request.
	ErrTodoNotFound = errors.New("todo not found")
)

// RemoteUpdateError carries the remote status of a rejected partial update.
type RemoteUpdateError struct {
	Status  int
	Message string
}

func (e *RemoteUpdateError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("%s: status %d", ErrRemoteUpdateFailed, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrRemoteUpdateFailed, e.Status, msg)
}

// Is reports whether target is ErrRemoteUpdateFailed.
func (e *RemoteUpdateError) Is(target error) bool {
	return target == ErrRemoteUpdateFailed
}
