package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/healthdesk/internal/api"
	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/config"
	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/workspace"
)

// --- workspaces ---

var workspacesCmd = &cobra.Command{
	Use:     "workspaces",
	Aliases: []string{"ws"},
	Short:   "List, create and delete workspaces",
}

var workspacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		recs, err := listWorkspaces(cmd.Context(), client)
		if err != nil {
			showNotifications(cmd.Context(), client)
			return err
		}
		renderWorkspaces(cmd.OutOrStdout(), recs)
		return nil
	},
}

var workspacesCreateCmd = &cobra.Command{
	Use:   "create <name...>",
	Short: "Create a workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		rec, err := createWorkspace(cmd.Context(), client, strings.Join(args, " "))
		showNotifications(cmd.Context(), client)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec.WorkspaceID)
		return nil
	},
}

var workspacesDeleteCmd = &cobra.Command{
	Use:   "delete <workspace-id>",
	Short: "Delete a workspace and its backend data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes workspace %s and all of its data. Re-run with --confirm to proceed.", args[0])
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		err = deleteWorkspace(cmd.Context(), client, args[0])
		showNotifications(cmd.Context(), client)
		return err
	},
}

func init() {
	workspacesDeleteCmd.Flags().Bool("confirm", false, "confirm the deletion")
	workspacesCmd.AddCommand(workspacesListCmd)
	workspacesCmd.AddCommand(workspacesCreateCmd)
	workspacesCmd.AddCommand(workspacesDeleteCmd)
}

func listWorkspaces(ctx context.Context, c *apiClient) ([]workspace.Record, error) {
	resp, err := c.get(ctx, "/workspaces")
	if err != nil {
		return nil, err
	}
	var recs []workspace.Record
	if err := decodeJSON(resp, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func createWorkspace(ctx context.Context, c *apiClient, name string) (workspace.Record, error) {
	resp, err := c.post(ctx, "/workspaces", api.CreateWorkspaceRequest{Name: name})
	if err != nil {
		return workspace.Record{}, err
	}
	var rec workspace.Record
	if err := decodeJSON(resp, &rec); err != nil {
		return workspace.Record{}, err
	}
	return rec, nil
}

func deleteWorkspace(ctx context.Context, c *apiClient, id string) error {
	resp, err := c.delete(ctx, "/workspaces/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

func fetchNotifications(ctx context.Context, c *apiClient) ([]notify.Notification, error) {
	resp, err := c.get(ctx, "/notifications")
	if err != nil {
		return nil, err
	}
	var notes []notify.Notification
	if err := decodeJSON(resp, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// showNotifications prints whatever the server queued for us. Failures are
// ignored; the command's own error is what matters.
func showNotifications(ctx context.Context, c *apiClient) {
	notes, err := fetchNotifications(ctx, c)
	if err != nil {
		return
	}
	printNotifications(notes)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <workspace-id>",
	Short: "Chat with the health assistant inside a workspace",
	Long: `Open a chat session on a workspace and talk to the assistant.

Commands inside the session:
  /domains          list domains and re-open the selector
  /domain <name>    switch domain (general, diet, workout, medications, precautions)
  /quit             close the session`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client, args[0], domain, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().String("domain", "", "domain to start in")
}

func runChat(ctx context.Context, c *apiClient, workspaceID, domain string, in io.Reader, out io.Writer) error {
	resp, err := c.post(ctx, "/workspaces/"+url.PathEscape(workspaceID)+"/sessions", nil)
	if err != nil {
		return err
	}
	var view api.SessionView
	if err := decodeJSON(resp, &view); err != nil {
		return err
	}
	sessionPath := "/sessions/" + url.PathEscape(view.ID)
	defer func() {
		// Best effort; the server drops sessions on restart anyway.
		if resp, err := c.delete(context.WithoutCancel(ctx), sessionPath); err == nil {
			resp.Body.Close()
		}
	}()

	for _, m := range view.Messages {
		renderMessage(out, m)
	}
	if domain != "" {
		if view, err = selectDomain(ctx, c, sessionPath, domain); err != nil {
			return err
		}
	}
	renderDomain(out, view.Domain)

	seen := len(view.Messages)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/domains":
			resp, err := c.post(ctx, sessionPath+"/selector", nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, nil); err != nil {
				return err
			}
			for _, d := range chat.Domains {
				fmt.Fprintf(out, "  %-12s %s\n", d.String(), d.Title())
			}
			continue
		case strings.HasPrefix(line, "/domain "):
			v, err := selectDomain(ctx, c, sessionPath, strings.TrimSpace(strings.TrimPrefix(line, "/domain ")))
			if err != nil {
				printError("%v", err)
				continue
			}
			renderDomain(out, v.Domain)
			continue
		}

		resp, err := c.post(ctx, sessionPath+"/messages", api.SendMessageRequest{Text: line})
		if err != nil {
			return err
		}
		var sent api.SendMessageResponse
		if err := decodeJSON(resp, &sent); err != nil {
			return err
		}
		if !sent.Accepted {
			printWarning("still waiting for the previous reply")
			continue
		}

		msgs := sent.Session.Messages
		// The user's line is already on screen.
		for _, m := range msgs[min(seen, len(msgs)):] {
			if m.Role == chat.Bot {
				renderMessage(out, m)
			}
		}
		seen = len(msgs)
		if n := len(msgs); n > 0 && msgs[n-1] == chat.Apology() {
			showNotifications(ctx, c)
		}
	}
	return scanner.Err()
}

func selectDomain(ctx context.Context, c *apiClient, sessionPath, domain string) (api.SessionView, error) {
	resp, err := c.put(ctx, sessionPath+"/domain", api.SelectDomainRequest{Domain: domain})
	if err != nil {
		return api.SessionView{}, err
	}
	var view api.SessionView
	if err := decodeJSON(resp, &view); err != nil {
		return api.SessionView{}, err
	}
	return view, nil
}

// --- notifications ---

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show and clear pending notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		notes, err := fetchNotifications(cmd.Context(), client)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
			return nil
		}
		printNotifications(notes)
		return nil
	},
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an id token signed with identity.signing_key",
	Long: `Mint an id token for local use. The token is printed to stdout; store it
with "healthdesk config set identity.token <token>".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		v, err := identity.NewVerifier(cfg.Identity.SigningKey, cfg.Identity.Issuer)
		if err != nil {
			return err
		}
		tok, err := v.Issue(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(labelStyle, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if config.IsSecret(key) {
			printSuccess("Stored %s in the keychain", key)
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
