package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/dashboard"
	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/workspace"
)

func TestHealth(t *testing.T) {
	s := newTestStack(t, identity.FromContext)

	rr := s.do(t, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := decode[map[string]string](t, rr); body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuth_Required(t *testing.T) {
	s := newTestStack(t, identity.FromContext)

	for _, tok := range []string{"", "garbage"} {
		rr := s.do(t, http.MethodGet, "/workspaces", "", tok)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", tok, rr.Code)
		}
	}
}

func TestWorkspaces_CreateListDelete(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")

	rr := s.do(t, http.MethodPost, "/workspaces", `{"name":"Diabetes Study"}`, tok)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}
	created := decode[workspace.Record](t, rr)
	if created.Name != "Diabetes Study" || !created.HasLocalCopy {
		t.Errorf("created = %+v", created)
	}

	rr = s.do(t, http.MethodGet, "/workspaces", "", tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	list := decode[[]workspace.Record](t, rr)
	if len(list) != 1 || list[0].WorkspaceID != created.WorkspaceID || !list[0].HasLocalCopy {
		t.Errorf("list = %+v", list)
	}

	// Another user sees nothing.
	rr = s.do(t, http.MethodGet, "/workspaces", "", s.token(t, "u2"))
	if list := decode[[]workspace.Record](t, rr); len(list) != 0 {
		t.Errorf("u2 list = %+v", list)
	}

	rr = s.do(t, http.MethodDelete, "/workspaces/"+created.WorkspaceID, "", tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rr.Code, rr.Body.String())
	}
	rr = s.do(t, http.MethodGet, "/workspaces", "", tok)
	if list := decode[[]workspace.Record](t, rr); len(list) != 0 {
		t.Errorf("list after delete = %+v", list)
	}

	rr = s.do(t, http.MethodGet, "/notifications", "", tok)
	notes := decode[[]notify.Notification](t, rr)
	if len(notes) != 2 || notes[0].Message != dashboard.MsgCreated || notes[1].Message != dashboard.MsgDeleted {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestWorkspaces_BlankNameIs400(t *testing.T) {
	s := newTestStack(t, identity.FromContext)

	rr := s.do(t, http.MethodPost, "/workspaces", `{"name":"  "}`, s.token(t, "u1"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestWorkspaces_DeleteRejectedIs409(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")

	created := decode[workspace.Record](t, s.do(t, http.MethodPost, "/workspaces", `{"name":"Busy"}`, tok))
	s.inbox.Drain("u1")
	s.backend.deleteErr = "Workspace in use"

	rr := s.do(t, http.MethodDelete, "/workspaces/"+created.WorkspaceID, "", tok)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decode[map[string]map[string]string](t, rr)
	if body["error"]["message"] != "Workspace in use" {
		t.Errorf("error = %v", body["error"])
	}

	notes := decode[[]notify.Notification](t, s.do(t, http.MethodGet, "/notifications", "", tok))
	if len(notes) != 1 || notes[0].Message != "Workspace in use" {
		t.Errorf("notifications = %+v", notes)
	}

	list := decode[[]workspace.Record](t, s.do(t, http.MethodGet, "/workspaces", "", tok))
	if len(list) != 1 {
		t.Errorf("record should remain listed, got %+v", list)
	}
}

func TestWorkspaces_DeleteUnknownIs404(t *testing.T) {
	s := newTestStack(t, identity.FromContext)

	rr := s.do(t, http.MethodDelete, "/workspaces/ws_0_nothere00", "", s.token(t, "u1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func openSession(t *testing.T, s *testStack, tok string) SessionView {
	t.Helper()
	created := decode[workspace.Record](t, s.do(t, http.MethodPost, "/workspaces", `{"name":"Chat"}`, tok))
	rr := s.do(t, http.MethodPost, "/workspaces/"+created.WorkspaceID+"/sessions", "", tok)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open session status = %d, body = %s", rr.Code, rr.Body.String())
	}
	return decode[SessionView](t, rr)
}

func TestSessions_ChatFlow(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")
	s.backend.chatReply = "Possible condition: Common Cold"

	view := openSession(t, s, tok)
	if view.ID == "" || len(view.Messages) != 1 || view.Domain != chat.General || !view.SelectorOpen {
		t.Fatalf("opened session = %+v", view)
	}

	rr := s.do(t, http.MethodPost, "/sessions/"+view.ID+"/messages", `{"text":"headache and fever"}`, tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("send status = %d", rr.Code)
	}
	resp := decode[SendMessageResponse](t, rr)
	if !resp.Accepted {
		t.Fatal("accepted = false")
	}
	msgs := resp.Session.Messages
	if len(msgs) != 3 || msgs[1].Role != chat.User || msgs[2].Content != "Possible condition: Common Cold" {
		t.Errorf("messages = %+v", msgs)
	}

	reqs := s.backend.chatRequests()
	if len(reqs) != 1 || reqs[0]["domain"] != "general" || reqs[0]["workspace_id"] != view.WorkspaceID {
		t.Errorf("backend chat requests = %+v", reqs)
	}
}

func TestSessions_DomainAndSelector(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")
	view := openSession(t, s, tok)

	rr := s.do(t, http.MethodPut, "/sessions/"+view.ID+"/domain", `{"domain":"workout"}`, tok)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[SessionView](t, rr)
	if got.Domain != chat.Workout || got.SelectorOpen {
		t.Errorf("after select = %+v", got)
	}

	rr = s.do(t, http.MethodPut, "/sessions/"+view.ID+"/domain", `{"domain":"fitness"}`, tok)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown domain status = %d, want 400", rr.Code)
	}

	got = decode[SessionView](t, s.do(t, http.MethodPost, "/sessions/"+view.ID+"/selector", "", tok))
	if !got.SelectorOpen || got.Domain != chat.Workout {
		t.Errorf("after open selector = %+v", got)
	}

	s.do(t, http.MethodPost, "/sessions/"+view.ID+"/messages", `{"text":"safe workouts for arthritis"}`, tok)
	if reqs := s.backend.chatRequests(); reqs[0]["domain"] != "workout" {
		t.Errorf("domain sent = %q", reqs[0]["domain"])
	}
}

func TestSessions_BlankMessageNotAccepted(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")
	view := openSession(t, s, tok)

	resp := decode[SendMessageResponse](t, s.do(t, http.MethodPost, "/sessions/"+view.ID+"/messages", `{"text":"   "}`, tok))
	if resp.Accepted || len(resp.Session.Messages) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if n := len(s.backend.chatRequests()); n != 0 {
		t.Errorf("backend calls = %d", n)
	}
}

func TestSessions_ChatFailure(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")
	view := openSession(t, s, tok)
	s.inbox.Drain("u1")
	s.backend.chatFail = true

	resp := decode[SendMessageResponse](t, s.do(t, http.MethodPost, "/sessions/"+view.ID+"/messages", `{"text":"hello"}`, tok))
	last := resp.Session.Messages[len(resp.Session.Messages)-1]
	if last != chat.Apology() {
		t.Errorf("last message = %+v", last)
	}

	notes := decode[[]notify.Notification](t, s.do(t, http.MethodGet, "/notifications", "", tok))
	if len(notes) != 1 || notes[0].Message != chat.FailureNotice || notes[0].Level != notify.LevelError {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestSessions_OwnershipAndClose(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")
	view := openSession(t, s, tok)

	if rr := s.do(t, http.MethodGet, "/sessions/"+view.ID, "", s.token(t, "u2")); rr.Code != http.StatusNotFound {
		t.Errorf("foreign get status = %d, want 404", rr.Code)
	}
	if rr := s.do(t, http.MethodDelete, "/sessions/"+view.ID, "", tok); rr.Code != http.StatusOK {
		t.Errorf("close status = %d", rr.Code)
	}
	if rr := s.do(t, http.MethodGet, "/sessions/"+view.ID, "", tok); rr.Code != http.StatusNotFound {
		t.Errorf("get after close status = %d, want 404", rr.Code)
	}
}

func TestSessions_ClosedWhenWorkspaceDeleted(t *testing.T) {
	s := newTestStack(t, identity.FromContext)
	tok := s.token(t, "u1")
	view := openSession(t, s, tok)

	if rr := s.do(t, http.MethodDelete, "/workspaces/"+view.WorkspaceID, "", tok); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if s.sessions.Len() != 0 {
		t.Errorf("sessions left = %d", s.sessions.Len())
	}
}

func TestSessions_OpenUnknownWorkspace(t *testing.T) {
	s := newTestStack(t, identity.FromContext)

	rr := s.do(t, http.MethodPost, "/workspaces/ws_1_missing00/sessions", "", s.token(t, "u1"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_found") {
		t.Errorf("body = %s", rr.Body.String())
	}
}
