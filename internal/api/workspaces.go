package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/workspace"
)

type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

func handleListWorkspaces(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := deps.Dashboard.Load(r.Context())
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		if recs == nil {
			recs = []workspace.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleCreateWorkspace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CreateWorkspaceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		rec, err := deps.Dashboard.Create(r.Context(), req.Name)
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// handleDeleteWorkspace expects the caller to have confirmed already. Chat
// sessions open on the workspace are closed after a successful delete.
func handleDeleteWorkspace(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := deps.Dashboard.Delete(r.Context(), id); err != nil {
			writeWorkspaceError(w, err)
			return
		}

		if uid, err := identity.FromContext.UserID(r.Context()); err == nil {
			deps.Sessions.CloseWorkspace(uid, id)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
