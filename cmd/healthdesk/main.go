package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "healthdesk",
	Short: "Health workspaces and a domain-scoped health assistant",
	Long: `healthdesk serves the workspace dashboard and chat sessions over HTTP
(for a UI) and MCP (for agents), and talks to them from the terminal.

Quick start:
  healthdesk token alice                 # mint a dev id token
  healthdesk config set identity.token <token>
  healthdesk start                       # run the API server
  healthdesk workspaces create "Diabetes Study"
  healthdesk chat <workspace-id> --domain diet`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(workspacesCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)
}
