// Command escape-room starts the Escape Room Game session server.
//
// It supports two modes:
//  1. "server" (default): runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp": runs an MCP stdio server against an existing API, or an internal one if none answers
//
// Flags control host/port, the room catalog, team count, progress policy,
// roll seed, debug logging, and optional ngrok tunneling for easy external
// access during development. Every flag can also be set from the environment
// or a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/escape-room-game/api"
	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
	"github.com/wricardo/escape-room-game/game/service"
	"github.com/wricardo/escape-room-game/game/session"
	"github.com/wricardo/escape-room-game/observability"
	"github.com/wricardo/escape-room-game/transport/mcp"
	"github.com/wricardo/escape-room-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Escape Room Game Server"
)

// maxTeams keeps generated team names within single letters.
const maxTeams = 26

// config is the resolved command line and environment configuration.
type config struct {
	host        string
	port        int
	catalogPath string
	teams       int
	policy      string
	seed        int
	debug       bool
	ngrok       bool
	ngrokAuth   string
	ngrokDomain string
}

func (c config) addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// main loads .env, parses flags and runs the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	cmd := newCommand()
	cmd.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if envErr != nil && !os.IsNotExist(envErr) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
		}
		return ctx, nil
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "escape-room",
		Usage:   "Run the escape room game session server",
		Version: Version,
		Flags:   globalFlags(),
		Action:  runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP API when none is reachable",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:3000",
						Usage:   "REST API to proxy to when it is already running",
						Sources: cli.EnvVars("API_URL"),
					},
				},
				Action: runStdioMCP,
			},
		},
	}
}

// globalFlags are inherited by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
		&cli.IntFlag{Name: "port", Value: 3000, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "catalog", Value: "data/rooms.json", Usage: "Room catalog file (.json or .yaml)", Sources: cli.EnvVars("CATALOG_PATH")},
		&cli.IntFlag{Name: "teams", Value: 3, Usage: "Number of teams", Sources: cli.EnvVars("TEAM_COUNT")},
		&cli.StringFlag{
			Name:    "progress-policy",
			Value:   string(engine.PolicyLastWins),
			Usage:   "Ledger policy: last-wins or first-success-final",
			Sources: cli.EnvVars("PROGRESS_POLICY"),
		},
		&cli.IntFlag{Name: "seed", Usage: "Roll seed, 0 for random", Sources: cli.EnvVars("GAME_SEED")},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
		&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{
			Name:    "ngrok-auth",
			Usage:   "Ngrok auth token",
			Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
		},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

func configFrom(cmd *cli.Command) config {
	return config{
		host:        cmd.String("host"),
		port:        cmd.Int("port"),
		catalogPath: cmd.String("catalog"),
		teams:       cmd.Int("teams"),
		policy:      cmd.String("progress-policy"),
		seed:        cmd.Int("seed"),
		debug:       cmd.Bool("debug"),
		ngrok:       cmd.Bool("ngrok"),
		ngrokAuth:   cmd.String("ngrok-auth"),
		ngrokDomain: cmd.String("ngrok-domain"),
	}
}

// newLogger builds a production logger, or a development one with debug on.
// Both write to stderr so stdio mode keeps stdout for the protocol.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// teamSpecs generates team1..teamN named Team A, Team B, ... The built-in
// fallback catalog always plays with a single team.
func teamSpecs(n int, catalogLoaded bool) []engine.TeamSpec {
	if !catalogLoaded {
		return []engine.TeamSpec{{ID: "team1", Name: "Team A"}}
	}
	n = max(1, min(n, maxTeams))

	specs := make([]engine.TeamSpec, 0, n)
	for i := range n {
		specs = append(specs, engine.TeamSpec{
			ID:   fmt.Sprintf("team%d", i+1),
			Name: fmt.Sprintf("Team %c", 'A'+i),
		})
	}
	return specs
}

// initializeServices loads the catalog and wires engine, store and service.
func initializeServices(cfg config, logger *zap.Logger) (*session.Store, service.GameService, error) {
	cat, loaded := catalog.LoadOrMinimal(cfg.catalogPath, logger)

	policy, err := engine.ParseProgressPolicy(cfg.policy)
	if err != nil {
		return nil, nil, err
	}
	if cfg.seed < 0 {
		return nil, nil, fmt.Errorf("%w: seed must not be negative", engine.ErrInvalidArgument)
	}

	eng, err := engine.NewEngine(cat, engine.Options{
		Teams:  teamSpecs(cfg.teams, loaded),
		Roller: engine.NewRandRoller(uint64(cfg.seed)),
		Policy: policy,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	store := session.NewStore(eng, session.WithLogger(logger.Named("store")))
	logger.Info("session initialized",
		zap.Int("rooms", cat.Len()),
		zap.Int("teams", len(store.Snapshot().TeamOrder)),
		zap.String("progress_policy", string(policy)),
	)
	return store, service.NewGameService(store), nil
}

// newHandler wires the hub and the REST API around a store. mcpBaseURL is the
// address the /mcp endpoint proxies to, empty to leave /mcp unmounted.
func newHandler(ctx context.Context, store *session.Store, svc service.GameService, mcpBaseURL string, logger *zap.Logger) *api.Server {
	hub := websocket.NewHub(store.Snapshot, logger.Named("ws"))
	store.SetPublisher(observability.NewPublisher(hub))
	go hub.Run(ctx)

	opts := []api.Option{api.WithLogger(logger.Named("http"))}
	if mcpBaseURL != "" {
		opts = append(opts, api.WithMCPHandler(mcp.NewClient(mcpBaseURL, logger.Named("mcp"))))
	}
	return api.NewServer(svc, hub, opts...)
}

// runServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg := configFrom(cmd)
	logger, err := newLogger(cfg.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", "server"))

	store, svc, err := initializeServices(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.addr()
	handler := newHandler(ctx, store, svc, "http://"+addr, logger)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("ws", fmt.Sprintf("ws://%s/ws", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTunnel(ctx, cfg, handler, logger.Named("ngrok"))
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("HTTP server failed", zap.Error(err))
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(shutdownErr))
	}

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// runTunnel serves handler through an ngrok endpoint until ctx is done.
func runTunnel(ctx context.Context, cfg config, handler http.Handler, logger *zap.Logger) {
	if cfg.ngrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.ngrokDomain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.ngrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.ngrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("api", url+"/api"),
		zap.String("mcp", url+"/mcp"),
	)
	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses the API at --api-url when it
// answers its health check; otherwise it starts an internal HTTP API on a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg := configFrom(cmd)
	logger, err := newLogger(cfg.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cmd.String("api-url")
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err = mcp.NewClient(baseURL, logger).Ping(probeCtx)
	cancel()

	if err == nil {
		logger.Info("external API server found, using it for MCP", zap.String("url", baseURL))
	} else {
		logger.Info("no external API server found, starting internal HTTP server", zap.String("url", baseURL), zap.Error(err))

		store, svc, err := initializeServices(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		handler := newHandler(ctx, store, svc, "", logger)
		internal := &http.Server{Handler: handler}
		defer internal.Close()

		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		logger.Info("internal HTTP server started", zap.String("url", baseURL))
	}

	client := mcp.NewClient(baseURL, logger.Named("mcp"))
	logger.Info("MCP stdio server ready", zap.String("api", baseURL))

	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
