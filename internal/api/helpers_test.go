package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/healthdesk/internal/backend"
	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/dashboard"
	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/storage"
	"github.com/kalambet/healthdesk/internal/workspace"
)

// fakeBackend is an in-memory WorkspaceService speaking the backend's JSON
// protocol.
type fakeBackend struct {
	mu         sync.Mutex
	workspaces map[string][]backend.Workspace
	chats      []map[string]string
	deleteErr  string
	chatReply  string
	chatFail   bool
}

func newFakeBackend(t *testing.T) (*fakeBackend, *backend.Client) {
	t.Helper()
	fb := &fakeBackend{workspaces: make(map[string][]backend.Workspace), chatReply: "ok"}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)
	return fb, backend.NewClient(srv.URL, "", 5*time.Second)
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/workspace/list":
		list := fb.workspaces[body["user_id"]]
		if list == nil {
			list = []backend.Workspace{}
		}
		json.NewEncoder(w).Encode(map[string]any{"workspaces": list})
	case "/workspace/create":
		uid := body["user_id"]
		fb.workspaces[uid] = append(fb.workspaces[uid], backend.Workspace{
			WorkspaceID: body["workspace_id"],
			Name:        body["name"],
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		})
		w.Write([]byte(`{"status":"created"}`))
	case "/workspace/delete":
		if fb.deleteErr != "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": fb.deleteErr})
			return
		}
		uid := body["user_id"]
		kept := fb.workspaces[uid][:0]
		for _, ws := range fb.workspaces[uid] {
			if ws.WorkspaceID != body["workspace_id"] {
				kept = append(kept, ws)
			}
		}
		fb.workspaces[uid] = kept
		w.Write([]byte(`{"status":"deleted"}`))
	case "/chatbot":
		fb.chats = append(fb.chats, body)
		if fb.chatFail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"model crashed"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"reply": fb.chatReply})
	default:
		http.NotFound(w, r)
	}
}

func (fb *fakeBackend) chatRequests() []map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]map[string]string(nil), fb.chats...)
}

type testStack struct {
	handler  http.Handler
	backend  *fakeBackend
	verifier *identity.Verifier
	inbox    *notify.Inbox
	sessions *chat.Registry
	dash     *dashboard.Dashboard
}

func newTestStack(t *testing.T, src identity.Source) *testStack {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fb, client := newFakeBackend(t)
	verifier, err := identity.NewVerifier("test-signing-key", "healthdesk")
	if err != nil {
		t.Fatal(err)
	}
	inbox := notify.NewInbox(0)
	sessions := chat.NewRegistry(client, inbox)
	dash := dashboard.New(src, workspace.NewReconciler(store, client), inbox)

	return &testStack{
		handler: NewHandler(Deps{
			Dashboard: dash,
			Sessions:  sessions,
			Inbox:     inbox,
			Verifier:  verifier,
		}),
		backend:  fb,
		verifier: verifier,
		inbox:    inbox,
		sessions: sessions,
		dash:     dash,
	}
}

func (s *testStack) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := s.verifier.Issue(uid, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testStack) do(t *testing.T, method, url, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return v
}

// fixedUser is a Source that always resolves to the same user.
type fixedUser string

func (u fixedUser) UserID(context.Context) (string, error) { return string(u), nil }
