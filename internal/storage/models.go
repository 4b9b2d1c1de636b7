package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// WorkspaceDoc is one document of the workspaces collection. DocID is the
// store's own key; WorkspaceID is the join key shared with the backend.
type WorkspaceDoc struct {
	DocID       string
	WorkspaceID string
	OwnerID     string
	Name        string
	CreatedAt   time.Time
}
