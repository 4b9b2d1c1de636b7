// Package dashboard is the handler layer behind the workspace list view: it
// resolves the current user, drives the reconciler and turns outcomes into
// notifications.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kalambet/healthdesk/internal/backend"
	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/workspace"
)

// Notification texts shown to the user.
const (
	MsgLoadFailed   = "Failed to load workspaces"
	MsgNameRequired = "Please enter a workspace name"
	MsgCreated      = "Workspace created successfully!"
	MsgCreateFailed = "Failed to create workspace"
	MsgDeleted      = "Workspace deleted successfully"
	MsgDeleteFailed = "Failed to delete workspace"
)

// ErrUnknownWorkspace is returned by Delete when the id is in neither store.
var ErrUnknownWorkspace = errors.New("unknown workspace")

// Workspaces is the subset of *workspace.Reconciler the dashboard drives.
type Workspaces interface {
	List(ctx context.Context, ownerID string) ([]workspace.Record, error)
	Create(ctx context.Context, name, ownerID string) (workspace.Record, error)
	Delete(ctx context.Context, rec workspace.Record) error
}

type Dashboard struct {
	identity   identity.Source
	workspaces Workspaces
	notifier   notify.Notifier

	mu    sync.Mutex
	views map[string][]workspace.Record
}

func New(src identity.Source, ws Workspaces, notifier notify.Notifier) *Dashboard {
	return &Dashboard{
		identity:   src,
		workspaces: ws,
		notifier:   notifier,
		views:      make(map[string][]workspace.Record),
	}
}

func (d *Dashboard) user(ctx context.Context) (string, error) {
	uid, err := d.identity.UserID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving user: %w", err)
	}
	return uid, nil
}

// Load lists the current user's workspaces and remembers the result as the
// user's view.
func (d *Dashboard) Load(ctx context.Context) ([]workspace.Record, error) {
	uid, err := d.user(ctx)
	if err != nil {
		return nil, err
	}
	return d.load(ctx, uid)
}

func (d *Dashboard) load(ctx context.Context, uid string) ([]workspace.Record, error) {
	recs, err := d.workspaces.List(ctx, uid)
	if err != nil {
		notify.Error(ctx, d.notifier, uid, MsgLoadFailed)
		return nil, err
	}

	d.mu.Lock()
	d.views[uid] = recs
	d.mu.Unlock()
	return recs, nil
}

// Create makes a workspace for the current user and reloads the view.
func (d *Dashboard) Create(ctx context.Context, name string) (workspace.Record, error) {
	uid, err := d.user(ctx)
	if err != nil {
		return workspace.Record{}, err
	}
	if strings.TrimSpace(name) == "" {
		notify.Error(ctx, d.notifier, uid, MsgNameRequired)
		return workspace.Record{}, &workspace.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	// The write and the reload after it outlive the caller.
	ctx = context.WithoutCancel(ctx)
	rec, err := d.workspaces.Create(ctx, name, uid)
	if err != nil {
		notify.Error(ctx, d.notifier, uid, MsgCreateFailed)
		return rec, err
	}

	notify.Success(ctx, d.notifier, uid, MsgCreated)
	_, _ = d.load(ctx, uid) // failures raise their own notification
	return rec, nil
}

// Delete removes workspaceID from the current user's view. The record is
// taken from the last loaded view, reloading once when it is not there.
// Confirmation has already happened by the time this is called.
func (d *Dashboard) Delete(ctx context.Context, workspaceID string) error {
	uid, err := d.user(ctx)
	if err != nil {
		return err
	}

	rec, err := d.find(ctx, uid, workspaceID)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	if err := d.workspaces.Delete(ctx, rec); err != nil {
		notify.Error(ctx, d.notifier, uid, deleteFailureMessage(err))
		return err
	}

	notify.Success(ctx, d.notifier, uid, MsgDeleted)
	_, _ = d.load(ctx, uid) // failures raise their own notification
	return nil
}

// View returns the last loaded view for the current user without I/O.
func (d *Dashboard) View(ctx context.Context) ([]workspace.Record, error) {
	uid, err := d.user(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]workspace.Record(nil), d.views[uid]...), nil
}

// Find returns the current user's record for workspaceID, reloading the
// view once on a miss.
func (d *Dashboard) Find(ctx context.Context, workspaceID string) (workspace.Record, error) {
	uid, err := d.user(ctx)
	if err != nil {
		return workspace.Record{}, err
	}
	return d.find(ctx, uid, workspaceID)
}

func (d *Dashboard) find(ctx context.Context, uid, workspaceID string) (workspace.Record, error) {
	if rec, ok := d.lookup(uid, workspaceID); ok {
		return rec, nil
	}
	if _, err := d.load(ctx, uid); err != nil {
		return workspace.Record{}, err
	}
	if rec, ok := d.lookup(uid, workspaceID); ok {
		return rec, nil
	}
	return workspace.Record{}, fmt.Errorf("%w: %s", ErrUnknownWorkspace, workspaceID)
}

func (d *Dashboard) lookup(uid, workspaceID string) (workspace.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.views[uid] {
		if r.WorkspaceID == workspaceID {
			return r, true
		}
	}
	return workspace.Record{}, false
}

// deleteFailureMessage prefers what the backend said over a generic text.
func deleteFailureMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgDeleteFailed
}
