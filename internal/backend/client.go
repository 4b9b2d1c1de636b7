package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 64 << 10
)

// Client talks to the workspace backend. It performs exactly one HTTP
// request per call; retries are left to the caller.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. A zero timeout selects the 30s default;
// apiKey may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListWorkspaces calls workspace.list for ownerID.
func (c *Client) ListWorkspaces(ctx context.Context, ownerID string) ([]Workspace, error) {
	var resp listResponse
	if err := c.post(ctx, "/workspace/list", listRequest{UserID: ownerID}, &resp); err != nil {
		return nil, err
	}
	if resp.Workspaces == nil {
		return []Workspace{}, nil
	}
	return resp.Workspaces, nil
}

// CreateWorkspace calls workspace.create with a client-generated id.
func (c *Client) CreateWorkspace(ctx context.Context, workspaceID, ownerID, name string) error {
	return c.post(ctx, "/workspace/create", createRequest{
		WorkspaceID: workspaceID,
		UserID:      ownerID,
		Name:        name,
	}, nil)
}

// DeleteWorkspace calls workspace.delete. A refusal surfaces as *APIError
// with the service's message.
func (c *Client) DeleteWorkspace(ctx context.Context, workspaceID, ownerID string) error {
	return c.post(ctx, "/workspace/delete", deleteRequest{
		WorkspaceID: workspaceID,
		UserID:      ownerID,
	}, nil)
}

// Chat calls chat.send and returns the reply text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var resp chatResponse
	if err := c.post(ctx, "/chatbot", req, &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		apiErr.Message = eb.Error
	}
	return apiErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
