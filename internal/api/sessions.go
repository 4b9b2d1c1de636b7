package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/identity"
)

// SessionView is a session snapshot plus its handle.
type SessionView struct {
	ID string `json:"id"`
	chat.Snapshot
}

type SelectDomainRequest struct {
	Domain string `json:"domain"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type SendMessageResponse struct {
	Accepted bool        `json:"accepted"`
	Session  SessionView `json:"session"`
}

func handleOpenSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Dashboard.Find(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		uid, err := identity.FromContext.UserID(r.Context())
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}

		sid, s := deps.Sessions.Open(uid, rec.WorkspaceID)
		writeJSON(w, http.StatusCreated, SessionView{ID: sid, Snapshot: s.Snapshot()})
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, s, ok := lookupSession(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, SessionView{ID: sid, Snapshot: s.Snapshot()})
	}
}

func handleCloseSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := identity.FromContext.UserID(r.Context())
		if err != nil {
			writeWorkspaceError(w, err)
			return
		}
		if err := deps.Sessions.Close(uid, chi.URLParam(r, "sid")); errors.Is(err, chat.ErrSessionNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	}
}

func handleSelectDomain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, s, ok := lookupSession(w, r, deps)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SelectDomainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		d, err := chat.ParseDomain(req.Domain)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		s.SelectDomain(d)
		writeJSON(w, http.StatusOK, SessionView{ID: sid, Snapshot: s.Snapshot()})
	}
}

func handleOpenSelector(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, s, ok := lookupSession(w, r, deps)
		if !ok {
			return
		}
		s.OpenSelector()
		writeJSON(w, http.StatusOK, SessionView{ID: sid, Snapshot: s.Snapshot()})
	}
}

// handleSendMessage blocks until the backend answers. A blank text or a
// request already in flight is reported as accepted=false, not as an error.
func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, s, ok := lookupSession(w, r, deps)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		accepted := s.Send(r.Context(), req.Text)
		writeJSON(w, http.StatusOK, SendMessageResponse{
			Accepted: accepted,
			Session:  SessionView{ID: sid, Snapshot: s.Snapshot()},
		})
	}
}

func lookupSession(w http.ResponseWriter, r *http.Request, deps Deps) (string, *chat.Session, bool) {
	uid, err := identity.FromContext.UserID(r.Context())
	if err != nil {
		writeWorkspaceError(w, err)
		return "", nil, false
	}
	sid := chi.URLParam(r, "sid")
	s, err := deps.Sessions.Get(uid, sid)
	if err != nil {
		httpError(w, http.StatusNotFound, "not_found", "session not found")
		return "", nil, false
	}
	return sid, s, true
}
