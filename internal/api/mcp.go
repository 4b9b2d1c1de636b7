package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/dashboard"
	"github.com/kalambet/healthdesk/internal/identity"
)

// MCPDeps holds dependencies for the MCP server. The dashboard and
// Identity must agree on who the user is; over stdio that is the user of
// the configured id token.
type MCPDeps struct {
	Dashboard *dashboard.Dashboard
	Sessions  *chat.Registry
	Identity  identity.Source
}

// mcpChats keeps one chat session per workspace for the life of the process.
type mcpChats struct {
	deps MCPDeps

	mu      sync.Mutex
	handles map[string]string // workspace id -> session handle
}

func (c *mcpChats) session(ctx context.Context, workspaceID string) (*chat.Session, error) {
	if _, err := c.deps.Dashboard.Find(ctx, workspaceID); err != nil {
		return nil, err
	}
	uid, err := c.deps.Identity.UserID(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sid, ok := c.handles[workspaceID]; ok {
		if s, err := c.deps.Sessions.Get(uid, sid); err == nil {
			return s, nil
		}
	}
	sid, s := c.deps.Sessions.Open(uid, workspaceID)
	c.handles[workspaceID] = sid
	return s, nil
}

// NewMCPServer creates an MCP server with the workspace and chat tools
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"healthdesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("healthdesk: manage health workspaces and ask the domain-scoped health assistant."),
		server.WithRecovery(),
	)

	chats := &mcpChats{deps: deps, handles: make(map[string]string)}

	s.AddTool(
		mcp.NewTool("list_workspaces",
			mcp.WithDescription("List the user's workspaces from both the document store and the backend."),
		),
		mcpListWorkspaces(deps),
	)

	s.AddTool(
		mcp.NewTool("create_workspace",
			mcp.WithDescription("Create a new named workspace."),
			mcp.WithString("name", mcp.Description("Workspace name"), mcp.Required()),
		),
		mcpCreateWorkspace(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_workspace",
			mcp.WithDescription("Permanently delete a workspace. Requires confirm=true."),
			mcp.WithString("workspace_id", mcp.Description("Workspace id (ws_...)"), mcp.Required()),
			mcp.WithBoolean("confirm", mcp.Description("Must be true; deletion cannot be undone"), mcp.Required()),
		),
		mcpDeleteWorkspace(deps, chats),
	)

	s.AddTool(
		mcp.NewTool("select_domain",
			mcp.WithDescription("Set the chat domain for a workspace: general, diet, workout, medications or precautions."),
			mcp.WithString("workspace_id", mcp.Description("Workspace id"), mcp.Required()),
			mcp.WithString("domain", mcp.Description("Domain tag"), mcp.Required()),
		),
		mcpSelectDomain(chats),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Ask the health assistant a question in the workspace's active domain."),
			mcp.WithString("workspace_id", mcp.Description("Workspace id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The question"), mcp.Required()),
		),
		mcpSendMessage(chats),
	)

	s.AddResource(
		mcp.NewResource(
			"workspace://list",
			"Workspaces",
			mcp.WithResourceDescription("The user's workspaces as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceWorkspaces(deps),
	)

	return s
}

func mcpListWorkspaces(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		recs, err := deps.Dashboard.Load(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list workspaces: %v", err)), nil
		}
		if len(recs) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(recs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal workspaces: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateWorkspace(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		rec, err := deps.Dashboard.Create(ctx, name)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create workspace: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created workspace %s (%s)", rec.Name, rec.WorkspaceID)), nil
	}
}

func mcpDeleteWorkspace(deps MCPDeps, chats *mcpChats) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("workspace_id")
		if err != nil {
			return mcpError("workspace_id is required"), nil
		}
		if !req.GetBool("confirm", false) {
			return mcpError("deletion not confirmed: pass confirm=true"), nil
		}

		if err := deps.Dashboard.Delete(ctx, id); err != nil {
			return mcpError(fmt.Sprintf("failed to delete workspace: %v", err)), nil
		}

		chats.mu.Lock()
		delete(chats.handles, id)
		chats.mu.Unlock()
		if uid, err := deps.Identity.UserID(ctx); err == nil {
			deps.Sessions.CloseWorkspace(uid, id)
		}
		return mcpText(fmt.Sprintf("Deleted workspace %s", id)), nil
	}
}

func mcpSelectDomain(chats *mcpChats) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("workspace_id")
		if err != nil {
			return mcpError("workspace_id is required"), nil
		}
		tag, err := req.RequireString("domain")
		if err != nil {
			return mcpError("domain is required"), nil
		}
		d, err := chat.ParseDomain(tag)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		s, err := chats.session(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open chat: %v", err)), nil
		}
		s.SelectDomain(d)
		return mcpText(fmt.Sprintf("Domain set to %s", d.Title())), nil
	}
}

func mcpSendMessage(chats *mcpChats) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("workspace_id")
		if err != nil {
			return mcpError("workspace_id is required"), nil
		}
		text := req.GetString("text", "")

		s, err := chats.session(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to open chat: %v", err)), nil
		}
		res, ok := s.Ask(ctx, text)
		if !ok {
			return mcpError("message is empty or a request is already in flight"), nil
		}
		if res.Err != nil {
			return mcpError(chat.FailureNotice), nil
		}
		return mcpText(res.Reply.Content), nil
	}
}

func mcpResourceWorkspaces(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		recs, err := deps.Dashboard.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list workspaces: %w", err)
		}

		b, err := json.Marshal(recs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal workspaces: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
