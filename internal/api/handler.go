// Package api exposes the dashboard and chat sessions over HTTP (for a UI)
// and over MCP (for agents).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/dashboard"
	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/workspace"
)

const maxRequestBodySize = 1 << 20 // 1MB

type Deps struct {
	Dashboard *dashboard.Dashboard
	Sessions  *chat.Registry
	Inbox     *notify.Inbox
	Verifier  TokenVerifier
}

// NewHandler returns the HTTP API. Everything except /health requires a
// bearer id token. The dashboard must resolve users with
// identity.FromContext.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Verifier))

		r.Get("/workspaces", handleListWorkspaces(deps))
		r.Post("/workspaces", handleCreateWorkspace(deps))
		r.Delete("/workspaces/{id}", handleDeleteWorkspace(deps))
		r.Post("/workspaces/{id}/sessions", handleOpenSession(deps))

		r.Get("/sessions/{sid}", handleGetSession(deps))
		r.Delete("/sessions/{sid}", handleCloseSession(deps))
		r.Put("/sessions/{sid}/domain", handleSelectDomain(deps))
		r.Post("/sessions/{sid}/selector", handleOpenSelector(deps))
		r.Post("/sessions/{sid}/messages", handleSendMessage(deps))

		r.Get("/notifications", handleNotifications(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleNotifications(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := identity.FromContext.UserID(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no user")
			return
		}
		writeJSON(w, http.StatusOK, deps.Inbox.Drain(uid))
	}
}

// writeWorkspaceError maps reconciler and dashboard failures to statuses.
func writeWorkspaceError(w http.ResponseWriter, err error) {
	var (
		invalid  *workspace.ValidationError
		rejected *workspace.DeleteRejectedError
		partial  *workspace.PartialWriteError
		read     *workspace.ReadError
	)
	switch {
	case errors.Is(err, identity.ErrAbsent):
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
	case errors.As(err, &invalid):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", invalid)
	case errors.Is(err, dashboard.ErrUnknownWorkspace):
		httpError(w, http.StatusNotFound, "not_found", "workspace not found")
	case errors.As(err, &rejected):
		httpError(w, http.StatusConflict, "delete_rejected", "%s", rejected.Message)
	case errors.As(err, &partial):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": map[string]any{
				"message": partial.Error(),
				"type":    "partial_write",
				"stage":   partial.Stage,
			},
			"record": partial.Record,
		})
	case errors.As(err, &read):
		httpError(w, http.StatusBadGateway, "api_error", "%v", read)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
