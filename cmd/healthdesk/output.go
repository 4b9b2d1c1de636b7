package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/workspace"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	domainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Italic(true)
)

func colorize(style lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return style.Render(text)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(successStyle, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(errorStyle, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(warningStyle, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(labelStyle, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(stepStyle, "→ "+msg))
}

// printNotifications shows drained toasts the way the dashboard would.
func printNotifications(notes []notify.Notification) {
	for _, n := range notes {
		if n.Level == notify.LevelError {
			printError("%s", n.Message)
		} else {
			printSuccess("%s", n.Message)
		}
	}
}

func renderWorkspaces(w io.Writer, recs []workspace.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No workspaces yet. Create one with: healthdesk workspaces create <name>")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, colorize(titleStyle, "ID")+"\t"+colorize(titleStyle, "Name")+"\t"+colorize(titleStyle, "Created")+"\t"+colorize(titleStyle, "Local")+"\t")
	for _, r := range recs {
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Local().Format(time.DateTime)
		}
		local := "no"
		if r.HasLocalCopy {
			local = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", colorize(idStyle, r.WorkspaceID), r.Name, created, local)
	}
	tw.Flush()
}

func renderMessage(w io.Writer, m chat.Message) {
	switch m.Role {
	case chat.Bot:
		fmt.Fprintf(w, "%s %s\n\n", colorize(botStyle, "bot>"), m.Content)
	default:
		fmt.Fprintf(w, "%s %s\n", colorize(labelStyle, "you>"), m.Content)
	}
}

func renderDomain(w io.Writer, d chat.Domain) {
	fmt.Fprintf(w, "%s %s\n", colorize(domainStyle, "["+d.Title()+"]"), d.Hint())
}
