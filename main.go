// Command pathboard starts the pathboard server.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket
//     updates, Prometheus metrics and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API if
//     none is available
//
// Flags control host/port, the presets and sessions directories, debug
// logging, span export (--trace-exporter) and optional ngrok tunneling for
// external access during development.
// Every flag can also be set from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/pathboard/api"
	"github.com/wricardo/mcp-training/pathboard/game/config"
	"github.com/wricardo/mcp-training/pathboard/game/service"
	"github.com/wricardo/mcp-training/pathboard/game/session"
	"github.com/wricardo/mcp-training/pathboard/transport/mcp"
	"github.com/wricardo/mcp-training/pathboard/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Pathboard Server"
)

const (
	sessionMaxAge     = 24 * time.Hour
	cleanupInterval   = time.Hour
	saveInterval      = 30 * time.Second
	pruneInterval     = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	externalAPIAddr   = "http://localhost:8080"
	externalProbeWait = 2 * time.Second
)

// options holds the resolved command line and environment settings.
type options struct {
	port        int
	host        string
	presetsDir  string
	sessionsDir string
	maxSessions int
	debug       bool
	ngrok       bool
	ngrokAuth   string
	ngrokDomain string

	traceExporter string
	otlpEndpoint  string
	otlpInsecure  bool
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		port:        cmd.Int("port"),
		host:        cmd.String("host"),
		presetsDir:  cmd.String("presets-dir"),
		sessionsDir: cmd.String("sessions-dir"),
		maxSessions: cmd.Int("max-sessions"),
		debug:       cmd.Bool("debug"),
		ngrok:       cmd.Bool("ngrok"),
		ngrokAuth:   cmd.String("ngrok-auth"),
		ngrokDomain: cmd.String("ngrok-domain"),

		traceExporter: cmd.String("trace-exporter"),
		otlpEndpoint:  cmd.String("otlp-endpoint"),
		otlpInsecure:  cmd.Bool("otlp-insecure"),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "pathboard",
		Usage:   "A* pathfinding boards over REST, WebSocket and MCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "presets-dir", Value: "presets", Usage: "Directory containing board presets", Sources: cli.EnvVars("PRESETS_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory where sessions are persisted", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.IntFlag{Name: "max-sessions", Value: 1000, Usage: "Boards kept in memory before idle ones are evicted to disk (0 = no limit)", Sources: cli.EnvVars("MAX_SESSIONS")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
			&cli.StringFlag{Name: "trace-exporter", Value: traceExporterNone, Usage: "Span exporter: none, stdout (stderr) or otlp", Sources: cli.EnvVars("TRACE_EXPORTER")},
			&cli.StringFlag{Name: "otlp-endpoint", Value: "localhost:4317", Usage: "OTLP gRPC collector address", Sources: cli.EnvVars("OTEL_EXPORTER_OTLP_ENDPOINT")},
			&cli.BoolFlag{Name: "otlp-insecure", Usage: "Connect to the OTLP collector without TLS", Sources: cli.EnvVars("OTEL_EXPORTER_OTLP_INSECURE")},
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, metrics and MCP endpoint (default)",
				Action:  runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP API when none is running",
				Action:  runStdioCommand,
			},
		},
		Action: runServerCommand,
	}
}

// main loads .env, parses flags and runs the selected mode until a signal arrives.
func main() {
	// .env is optional
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		slog.Warn("error loading .env file", "error", envErr)
	}

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("pathboard failed", "error", err)
		os.Exit(1)
	}
}

// setupLogger installs a text slog logger as the default. Debug adds source
// locations and lowers the level. stdio mode must log to stderr.
func setupLogger(w io.Writer, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	logger := slog.New(slog.NewTextHandler(w, opts))
	slog.SetDefault(logger)
	return logger
}

// services bundles what both modes need.
type services struct {
	board    service.BoardService
	sessions *session.Manager
	store    session.SessionPersistence
	logger   *slog.Logger
}

// initializeServices wires the preset manager, session persistence and the
// board service, and loads sessions persisted by an earlier run.
func initializeServices(opts options, logger *slog.Logger) (*services, error) {
	configManager, err := config.NewManager(opts.presetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(opts.sessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence,
		session.WithLogger(logger),
		session.WithMaxSessions(opts.maxSessions),
	)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "error", err)
	}

	return &services{
		board:    service.NewBoardService(sessionManager, configManager, logger),
		sessions: sessionManager,
		store:    persistence,
		logger:   logger,
	}, nil
}

// runBackground starts the session maintenance routines on g.
func (s *services) runBackground(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		sessionCleanupRoutine(ctx, s.sessions, s.logger)
		return nil
	})
	g.Go(func() error {
		sessionSyncRoutine(ctx, s.board, s.logger)
		return nil
	})
	g.Go(func() error {
		filesystemSyncRoutine(ctx, s.sessions, s.store, s.logger)
		return nil
	})
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	logger := setupLogger(os.Stderr, opts.debug)
	logger.Info("starting", "app", AppName, "version", Version, "mode", "server")

	shutdownTracing, err := setupTracing(ctx, opts, os.Stderr)
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing, logger)

	svcs, err := initializeServices(opts, logger)
	if err != nil {
		return err
	}
	return runHTTPServer(ctx, opts, svcs)
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	// stdout carries the MCP protocol
	logger := setupLogger(os.Stderr, opts.debug)
	logger.Info("starting", "app", AppName, "version", Version, "mode", "stdio-mcp")

	shutdownTracing, err := setupTracing(ctx, opts, os.Stderr)
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing, logger)

	svcs, err := initializeServices(opts, logger)
	if err != nil {
		return err
	}
	return runStdioMCPWithInternalServer(ctx, svcs)
}

// flushTracing exports buffered spans before the process exits.
func flushTracing(shutdown func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}
}

// newMCPHandler serves MCP JSON-RPC messages posted to /mcp.
func newMCPHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// newHandler builds the root handler: the API server with /mcp mounted on
// its router.
func newHandler(svcs *services, hub *websocket.Hub, baseURL string) http.Handler {
	apiServer := api.NewServer(svcs.board, hub, svcs.logger)
	apiServer.Router().Handle("/mcp", newMCPHandler(mcp.NewClient(baseURL)))
	return apiServer
}

// runHTTPServer serves the REST API, WebSocket hub and /mcp until ctx is
// cancelled. With ngrok enabled it also serves through a public tunnel.
func runHTTPServer(ctx context.Context, opts options, svcs *services) error {
	logger := svcs.logger
	addr := opts.addr()

	hub := websocket.NewHub(logger)
	handler := newHandler(svcs, hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	svcs.runBackground(gctx, g)

	g.Go(func() error {
		logger.Info("HTTP server listening",
			"addr", addr,
			"api", "http://"+addr+"/api",
			"ws", "ws://"+addr+"/ws?session=<session_id>",
			"mcp", "http://"+addr+"/mcp",
			"metrics", "http://"+addr+"/metrics")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if opts.ngrok {
		g.Go(func() error {
			return runNgrokTunnel(gctx, opts, handler, logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := svcs.board.SaveAllSessions(shutdownCtx); err != nil {
			logger.Error("failed to save sessions on shutdown", "error", err)
		}
		return nil
	})

	err := g.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is done.
// A missing auth token only disables the tunnel.
func runNgrokTunnel(ctx context.Context, opts options, handler http.Handler, logger *slog.Logger) error {
	if opts.ngrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return nil
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
		logger.Info("using custom ngrok domain", "domain", opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.ngrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return nil
	}

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"ws", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		tunnelServer.Shutdown(shutdownCtx)
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// sessionCleanupRoutine periodically drops sessions that have not been
// accessed within sessionMaxAge from memory. Persisted copies stay on disk.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); len(removed) > 0 {
				logger.Info("cleaned up expired sessions", "sessions", removed)
			}
		}
	}
}

// sessionSyncRoutine periodically writes every session to disk so that
// last-accessed times survive a crash.
func sessionSyncRoutine(ctx context.Context, svc service.BoardService, logger *slog.Logger) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.SaveAllSessions(ctx); err != nil {
				logger.Warn("periodic session save failed", "error", err)
			}
		}
	}
}

// filesystemSyncRoutine removes sessions from memory when their files have
// been deleted from the sessions directory.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, logger *slog.Logger) {
	if persistence == nil {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneDeletedSessions(manager, persistence, logger); pruned > 0 {
				logger.Info("filesystem sync pruned orphaned sessions", "count", pruned)
			}
		}
	}
}

func pruneDeletedSessions(manager *session.Manager, persistence session.SessionPersistence, logger *slog.Logger) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logger.Debug("pruned session from memory (file deleted)", "session", sess.ID)
		}
	}
	return pruned
}

// externalAPIAvailable reports whether a pathboard server already answers
// on baseURL.
func externalAPIAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, externalProbeWait)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses an API
// already running on localhost:8080; otherwise it starts an internal HTTP API
// on a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, svcs *services) error {
	logger := svcs.logger
	baseURL := externalAPIAddr

	// Closing stdin ends the MCP server and everything started for it
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if externalAPIAvailable(ctx, externalAPIAddr) {
		logger.Info("external API server found, using it for MCP", "url", externalAPIAddr)
	} else {
		logger.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		hub := websocket.NewHub(logger)
		httpServer := &http.Server{Handler: newHandler(svcs, hub, baseURL)}

		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		svcs.runBackground(gctx, g)
		g.Go(func() error {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("internal HTTP server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
			return svcs.board.SaveAllSessions(shutdownCtx)
		})

		logger.Info("internal HTTP server started for MCP stdio", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)

	// ServeStdio blocks until stdin closes or a signal arrives.
	g.Go(func() error {
		defer cancel()
		if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
			return fmt.Errorf("MCP stdio server error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
