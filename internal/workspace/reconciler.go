// Package workspace merges the document-store and backend views of a user's
// workspaces and orchestrates create/delete across both.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/healthdesk/internal/backend"
	"github.com/kalambet/healthdesk/internal/storage"
)

// Record is one entry of the merged view. DocID is empty when the
// workspace has no document-store mirror.
type Record struct {
	WorkspaceID  string    `json:"workspace_id"`
	Name         string    `json:"name"`
	OwnerID      string    `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
	HasLocalCopy bool      `json:"has_local_copy"`
	DocID        string    `json:"doc_id,omitempty"`
}

// RecordStore is the document store the client writes directly.
// Implemented by storage.Store and storage.RedisStore.
type RecordStore interface {
	AddWorkspace(ctx context.Context, doc storage.WorkspaceDoc) (string, error)
	ListWorkspaces(ctx context.Context, ownerID string) ([]storage.WorkspaceDoc, error)
	DeleteWorkspace(ctx context.Context, docID string) error
}

// Service is the authoritative workspace backend. Implemented by
// backend.Client.
type Service interface {
	ListWorkspaces(ctx context.Context, ownerID string) ([]backend.Workspace, error)
	CreateWorkspace(ctx context.Context, workspaceID, ownerID, name string) error
	DeleteWorkspace(ctx context.Context, workspaceID, ownerID string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Reconciler holds no state between calls; every List reads both sources.
type Reconciler struct {
	store   RecordStore
	service Service
	clock   Clock
	logger  *slog.Logger
}

func NewReconciler(store RecordStore, service Service) *Reconciler {
	return &Reconciler{
		store:   store,
		service: service,
		clock:   realClock{},
		logger:  slog.Default(),
	}
}

// NewReconcilerWithClock creates a Reconciler with a custom clock (for testing).
func NewReconcilerWithClock(store RecordStore, service Service, clock Clock) *Reconciler {
	r := NewReconciler(store, service)
	r.clock = clock
	return r
}

// List reads both sources concurrently and returns their union keyed by
// workspace id. Document-store entries come first and win on conflict;
// backend-only entries follow with HasLocalCopy=false. The result is a
// best-effort view, not a snapshot.
func (r *Reconciler) List(ctx context.Context, ownerID string) ([]Record, error) {
	var (
		docs   []storage.WorkspaceDoc
		remote []backend.Workspace
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if docs, err = r.store.ListWorkspaces(gctx, ownerID); err != nil {
			return &ReadError{Source: "store", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if remote, err = r.service.ListWorkspaces(gctx, ownerID); err != nil {
			return &ReadError{Source: "backend", Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logger.Warn("workspace list failed", "owner_id", ownerID, "error", err)
		return nil, err
	}

	merged := Merge(ownerID, docs, remote)
	r.logger.Debug("workspaces listed",
		"owner_id", ownerID,
		"store", len(docs),
		"backend", len(remote),
		"merged", len(merged),
	)
	return merged, nil
}

// Merge is the pure union step of List.
func Merge(ownerID string, docs []storage.WorkspaceDoc, remote []backend.Workspace) []Record {
	seen := make(map[string]struct{}, len(docs)+len(remote))
	out := make([]Record, 0, len(docs)+len(remote))

	for _, d := range docs {
		if _, dup := seen[d.WorkspaceID]; dup {
			continue
		}
		seen[d.WorkspaceID] = struct{}{}
		out = append(out, Record{
			WorkspaceID:  d.WorkspaceID,
			Name:         d.Name,
			OwnerID:      d.OwnerID,
			CreatedAt:    d.CreatedAt,
			HasLocalCopy: true,
			DocID:        d.DocID,
		})
	}

	for _, w := range remote {
		if _, dup := seen[w.WorkspaceID]; dup {
			continue
		}
		seen[w.WorkspaceID] = struct{}{}
		out = append(out, Record{
			WorkspaceID: w.WorkspaceID,
			Name:        w.Name,
			OwnerID:     ownerID,
			CreatedAt:   w.CreatedTime(),
		})
	}

	return out
}

// Create writes the document first, then asks the backend to create the
// same id. A backend failure after the document write returns
// *PartialWriteError and leaves the document in place. Once validated, both
// steps run to completion even if ctx is cancelled.
func (r *Reconciler) Create(ctx context.Context, name, ownerID string) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return Record{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(ownerID) == "" {
		return Record{}, &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}

	ctx = context.WithoutCancel(ctx)
	now := r.clock.Now().UTC()
	id, err := NewID(now)
	if err != nil {
		return Record{}, fmt.Errorf("generating workspace id: %w", err)
	}

	rec := Record{
		WorkspaceID:  id,
		Name:         name,
		OwnerID:      ownerID,
		CreatedAt:    now,
		HasLocalCopy: true,
	}

	docID, err := r.store.AddWorkspace(ctx, storage.WorkspaceDoc{
		WorkspaceID: id,
		OwnerID:     ownerID,
		Name:        name,
		CreatedAt:   now,
	})
	if err != nil {
		r.logger.Warn("workspace document write failed", "workspace_id", id, "error", err)
		return Record{}, fmt.Errorf("writing workspace document: %w", err)
	}
	rec.DocID = docID

	if err := r.service.CreateWorkspace(ctx, id, ownerID, name); err != nil {
		r.logger.Warn("backend create failed after document write; leaving document in place",
			"workspace_id", id, "doc_id", docID, "error", err)
		return rec, &PartialWriteError{Op: "create", Stage: "backend", Record: rec, Err: err}
	}

	r.logger.Info("workspace created", "workspace_id", id, "owner_id", ownerID)
	return rec, nil
}

// Delete asks the backend first. Only after it agrees is the document copy
// removed, and only when the record has one. Confirmation is the caller's
// job. Like Create, it ignores cancellation of ctx.
func (r *Reconciler) Delete(ctx context.Context, rec Record) error {
	ctx = context.WithoutCancel(ctx)
	if err := r.service.DeleteWorkspace(ctx, rec.WorkspaceID, rec.OwnerID); err != nil {
		msg := err.Error()
		body := ""
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			body = apiErr.Body
			if apiErr.Message != "" {
				msg = apiErr.Message
			}
		}
		r.logger.Warn("backend rejected workspace delete", "workspace_id", rec.WorkspaceID, "error", err, "body", body)
		return &DeleteRejectedError{WorkspaceID: rec.WorkspaceID, Message: msg, Err: err}
	}

	if rec.HasLocalCopy && rec.DocID != "" {
		if err := r.store.DeleteWorkspace(ctx, rec.DocID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("document delete failed after backend delete",
				"workspace_id", rec.WorkspaceID, "doc_id", rec.DocID, "error", err)
			return &PartialWriteError{Op: "delete", Stage: "store", Record: rec, Err: err}
		}
	}

	r.logger.Info("workspace deleted", "workspace_id", rec.WorkspaceID, "owner_id", rec.OwnerID)
	return nil
}
