package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/healthdesk/internal/api"
	"github.com/kalambet/healthdesk/internal/backend"
	"github.com/kalambet/healthdesk/internal/chat"
	"github.com/kalambet/healthdesk/internal/config"
	"github.com/kalambet/healthdesk/internal/dashboard"
	"github.com/kalambet/healthdesk/internal/identity"
	"github.com/kalambet/healthdesk/internal/notify"
	"github.com/kalambet/healthdesk/internal/storage"
	"github.com/kalambet/healthdesk/internal/workspace"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the healthdesk API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running healthdesk server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show healthdesk status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio as the user of identity.token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "healthdesk.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)})))
}

// core is everything both surfaces share.
type core struct {
	store   workspace.RecordStore
	backend *backend.Client
	close   func() error
}

func openCore(ctx context.Context, cfg config.Config) (*core, error) {
	c := &core{backend: backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)}

	switch cfg.Store.Driver {
	case "redis":
		rs, err := storage.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		c.store, c.close = rs, rs.Close
	default:
		st, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		c.store, c.close = st, st.Close
	}

	slog.Info("document store ready", "driver", cfg.Store.Driver)
	return c, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "healthdesk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("healthdesk is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("healthdesk is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier, err := identity.NewVerifier(cfg.Identity.SigningKey, cfg.Identity.Issuer)
	if err != nil {
		return err
	}

	c, err := openCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	inbox := notify.NewInbox(0)
	notifier := notify.Multi{inbox, notify.LogNotifier{}}
	sessions := chat.NewRegistry(c.backend, notifier)
	go sessions.Run(ctx, time.Minute, cfg.Chat.IdleTimeout)

	handler := api.NewHandler(api.Deps{
		Dashboard: dashboard.New(identity.FromContext, workspace.NewReconciler(c.store, c.backend), notifier),
		Sessions:  sessions,
		Inbox:     inbox,
		Verifier:  verifier,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("healthdesk listening", "addr", addr, "backend", cfg.Backend.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves one user over stdio. Stdout carries the protocol, so all
// human output goes to stderr and notifications go to the log.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	verifier, err := identity.NewVerifier(cfg.Identity.SigningKey, cfg.Identity.Issuer)
	if err != nil {
		return err
	}
	session := identity.NewSession(verifier)
	uid, err := session.Login(cfg.Identity.Token)
	if err != nil {
		return fmt.Errorf("logging in with identity.token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := openCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	notifier := notify.LogNotifier{}
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Dashboard: dashboard.New(session, workspace.NewReconciler(c.store, c.backend), notifier),
		Sessions:  chat.NewRegistry(c.backend, notifier),
		Identity:  session,
	})

	slog.Info("MCP server started (stdio transport)", "user_id", uid)
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("healthdesk is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop healthdesk (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to healthdesk (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Backend", "%s (timeout %s)", cfg.Backend.BaseURL, cfg.Backend.Timeout)
	switch cfg.Store.Driver {
	case "redis":
		printStatus("Store", "redis at %s (prefix %s)", cfg.Redis.Addr, cfg.Redis.Prefix)
	default:
		printStatus("Store", "sqlite in %s", cfg.Storage.DataDir)
	}

	if running && cfg.Identity.Token != "" {
		if ctx == nil {
			ctx = context.Background()
		}
		ac := &apiClient{baseURL: serverURL, token: cfg.Identity.Token, httpClient: client}
		if recs, err := listWorkspaces(ctx, ac); err == nil {
			printStatus("Workspaces", "%d", len(recs))
		}
	}
	return nil
}
