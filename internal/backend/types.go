package backend

import (
	"fmt"
	"time"
)

// Workspace is one entry of the workspace.list response.
type Workspace struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at"`
}

// CreatedTime parses CreatedAt as ISO-8601. Unparseable or missing values
// yield the zero time.
func (w Workspace) CreatedTime() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, w.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

type listRequest struct {
	UserID string `json:"user_id"`
}

type listResponse struct {
	Workspaces []Workspace `json:"workspaces"`
}

type createRequest struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
}

type deleteRequest struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
}

// ChatRequest is the chat.send payload.
type ChatRequest struct {
	Message     string `json:"message"`
	WorkspaceID string `json:"workspace_id"`
	Domain      string `json:"domain"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorBody struct {
	Error string `json:"error"`
}

// APIError is returned for any non-2xx response. Message is only ever the
// body's "error" field; anything else the server sent (an HTML error page
// from a proxy, say) stays in Body for logs and is never shown to users.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, e.Message)
}
