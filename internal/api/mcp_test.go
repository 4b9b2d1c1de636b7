package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/workspace"
)

// --- helpers ---

func newTestMCP(t *testing.T) (MCPDeps, *mcpChats, *testStack) {
	t.Helper()
	user := fixedUser("u1")
	s := newTestStack(t, user)
	deps := MCPDeps{
		Dashboard: s.dash,
		Sessions:  s.sessions,
		Identity:  user,
	}
	return deps, &mcpChats{deps: deps, handles: make(map[string]string)}, s
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	return result
}

func createViaMCP(t *testing.T, deps MCPDeps, name string) string {
	t.Helper()
	result := callTool(t, mcpCreateWorkspace(deps), "create_workspace", map[string]interface{}{"name": name})
	if result.IsError {
		t.Fatalf("create_workspace: %s", toolText(t, result))
	}
	text := toolText(t, result)
	start := strings.Index(text, "(ws_")
	if start < 0 {
		t.Fatalf("no id in %q", text)
	}
	return strings.TrimSuffix(text[start+1:], ")")
}

// --- tests ---

func TestMCPTool_CreateAndList(t *testing.T) {
	deps, _, _ := newTestMCP(t)

	id := createViaMCP(t, deps, "Diabetes Study")

	result := callTool(t, mcpListWorkspaces(deps), "list_workspaces", nil)
	if result.IsError {
		t.Fatalf("list_workspaces: %s", toolText(t, result))
	}
	var recs []workspace.Record
	if err := json.Unmarshal([]byte(toolText(t, result)), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 1 || recs[0].WorkspaceID != id || !recs[0].HasLocalCopy {
		t.Errorf("records = %+v", recs)
	}
}

func TestMCPTool_ListEmpty(t *testing.T) {
	deps, _, _ := newTestMCP(t)

	result := callTool(t, mcpListWorkspaces(deps), "list_workspaces", nil)
	if text := toolText(t, result); text != "[]" {
		t.Errorf("text = %q, want []", text)
	}
}

func TestMCPTool_CreateRequiresName(t *testing.T) {
	deps, _, _ := newTestMCP(t)

	result := callTool(t, mcpCreateWorkspace(deps), "create_workspace", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestMCPTool_DeleteRequiresConfirm(t *testing.T) {
	deps, chats, _ := newTestMCP(t)
	id := createViaMCP(t, deps, "Keep")

	result := callTool(t, mcpDeleteWorkspace(deps, chats), "delete_workspace", map[string]interface{}{
		"workspace_id": id,
	})
	if !result.IsError || !strings.Contains(toolText(t, result), "confirm") {
		t.Fatalf("result = %+v", result)
	}

	result = callTool(t, mcpDeleteWorkspace(deps, chats), "delete_workspace", map[string]interface{}{
		"workspace_id": id,
		"confirm":      true,
	})
	if result.IsError {
		t.Fatalf("delete_workspace: %s", toolText(t, result))
	}
}

func TestMCPTool_DeleteRejected(t *testing.T) {
	deps, chats, s := newTestMCP(t)
	id := createViaMCP(t, deps, "Busy")
	s.backend.deleteErr = "Workspace in use"

	result := callTool(t, mcpDeleteWorkspace(deps, chats), "delete_workspace", map[string]interface{}{
		"workspace_id": id,
		"confirm":      true,
	})
	if !result.IsError || !strings.Contains(toolText(t, result), "Workspace in use") {
		t.Errorf("result text = %q", toolText(t, result))
	}
}

func TestMCPTool_ChatKeepsOneSessionPerWorkspace(t *testing.T) {
	deps, chats, s := newTestMCP(t)
	id := createViaMCP(t, deps, "Chat")
	s.backend.chatReply = "Try a low-sodium diet"

	result := callTool(t, mcpSelectDomain(chats), "select_domain", map[string]interface{}{
		"workspace_id": id,
		"domain":       "diet",
	})
	if result.IsError {
		t.Fatalf("select_domain: %s", toolText(t, result))
	}

	result = callTool(t, mcpSendMessage(chats), "send_message", map[string]interface{}{
		"workspace_id": id,
		"text":         "diet for hypertension",
	})
	if result.IsError {
		t.Fatalf("send_message: %s", toolText(t, result))
	}
	if text := toolText(t, result); text != "Try a low-sodium diet" {
		t.Errorf("reply = %q", text)
	}

	reqs := s.backend.chatRequests()
	if len(reqs) != 1 || reqs[0]["domain"] != "diet" {
		t.Errorf("chat requests = %+v", reqs)
	}
	if s.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", s.sessions.Len())
	}

	sess, err := chats.session(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(sess.Messages()); n != 3 {
		t.Errorf("transcript length = %d, want 3", n)
	}
}

func TestMCPTool_SendFailureAndValidation(t *testing.T) {
	deps, chats, s := newTestMCP(t)
	id := createViaMCP(t, deps, "Chat")

	result := callTool(t, mcpSendMessage(chats), "send_message", map[string]interface{}{
		"workspace_id": id,
		"text":         "  ",
	})
	if !result.IsError {
		t.Error("blank text should be an error result")
	}

	s.backend.chatFail = true
	result = callTool(t, mcpSendMessage(chats), "send_message", map[string]interface{}{
		"workspace_id": id,
		"text":         "hello",
	})
	if !result.IsError || toolText(t, result) != chat.FailureNotice {
		t.Errorf("result = %q", toolText(t, result))
	}

	result = callTool(t, mcpSelectDomain(chats), "select_domain", map[string]interface{}{
		"workspace_id": id,
		"domain":       "cardio",
	})
	if !result.IsError {
		t.Error("unknown domain should be an error result")
	}

	result = callTool(t, mcpSendMessage(chats), "send_message", map[string]interface{}{
		"workspace_id": "ws_1_unknown00",
		"text":         "hi",
	})
	if !result.IsError {
		t.Error("unknown workspace should be an error result")
	}
}

func TestMCPResource_Workspaces(t *testing.T) {
	deps, _, _ := newTestMCP(t)
	createViaMCP(t, deps, "One")

	contents, err := mcpResourceWorkspaces(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "workspace://list"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "workspace://list" || !strings.Contains(tc.Text, `"name":"One"`) {
		t.Errorf("resource = %+v", tc)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _, _ := newTestMCP(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_SendReturnsBackendReplyVerbatim(t *testing.T) {
	deps, chats, s := newTestMCP(t)
	id := createViaMCP(t, deps, "Chat")
	s.backend.chatReply = chat.Apology().Content

	result := callTool(t, mcpSendMessage(chats), "send_message", map[string]interface{}{
		"workspace_id": id,
		"text":         "hello",
	})
	if result.IsError {
		t.Fatalf("a successful reply was reported as an error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != chat.Apology().Content {
		t.Errorf("text = %q", got)
	}
}
