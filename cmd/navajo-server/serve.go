package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/mingodad/libnavajo/internal/config"
	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/metrics"
	"github.com/mingodad/libnavajo/internal/repository"
	"github.com/mingodad/libnavajo/internal/server"
	"github.com/mingodad/libnavajo/internal/version"
	"github.com/mingodad/libnavajo/internal/web"
	"github.com/mingodad/libnavajo/internal/websocket"
)

//go:embed www
var demoFiles embed.FS

var (
	serveHost      string
	servePort      int
	serveLogLevel  string
	serveLogFormat string
	serveDirs      []string
	serveDemo      bool
	serveCert      string
	serveKey       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the HTTP(S) and WebSocket server.

The server runs until interrupted (SIGINT or SIGTERM), then stops accepting
connections and waits up to 10 seconds for in-flight requests.`,
	Example: `  # Serve with the configuration file and environment
  navajo-server serve

  # Serve the current directory on port 8000
  navajo-server serve --port 8000 --dir .

  # Serve the embedded demo page over HTTPS
  navajo-server serve --demo --cert server.pem --key server.key

  # Serve /srv/docs under /docs
  navajo-server serve --dir docs=/srv/docs`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "", "Log format (console, json)")
	serveCmd.Flags().StringArrayVar(&serveDirs, "dir", nil, "Directory to serve, as DIR or ALIAS=DIR (repeatable)")
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "Serve the embedded demo page and /echo WebSocket")
	serveCmd.Flags().StringVar(&serveCert, "cert", "", "TLS certificate file (enables HTTPS)")
	serveCmd.Flags().StringVar(&serveKey, "key", "", "TLS private key file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	if err := logging.InitializeWithFormat(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	srvCfg := cfg.ServerConfig(promptKeyPassword)
	if srvCfg.ServerName == "" {
		srvCfg.ServerName = version.ServerName()
	}

	var opts []server.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(metrics.New()))
	}
	srv, err := server.New(srvCfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := addContent(srv, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Starting navajo-server",
		zap.String("version", version.Version),
		zap.String("scheme", cfg.Scheme()),
		zap.Int("port", cfg.Network.Port),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logging.Info("Server stopped")
	return nil
}

// applyServeFlags overrides the loaded configuration with the flags that
// were set explicitly.
func applyServeFlags(cmd *cobra.Command, cfg *config.File) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Network.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Network.Port = servePort
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = serveLogFormat
	}
	if serveCert != "" {
		cfg.TLS.Enabled = true
		cfg.TLS.CertFile = serveCert
		cfg.TLS.KeyFile = serveKey
	}
	for _, d := range serveDirs {
		repo := config.Repository{Dir: d}
		if alias, dir, ok := cutAlias(d); ok {
			repo = config.Repository{Alias: alias, Dir: dir}
		}
		cfg.Repositories = append(cfg.Repositories, repo)
	}
	if serveDemo {
		cfg.WebSockets = append(cfg.WebSockets, config.WebSocket{Path: "/echo", Handler: "echo", Deflate: true})
	}
	return cfg.Validate()
}

// cutAlias splits "alias=dir". A bare directory has no alias.
func cutAlias(s string) (alias, dir string, ok bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '=':
			return s[:i], s[i+1:], i > 0
		case '/', '\\':
			return "", s, false
		}
	}
	return "", s, false
}

// addContent registers repositories in configuration order, the demo page
// last so configured directories take precedence.
func addContent(srv *server.Server, cfg *config.File) error {
	for _, r := range cfg.Repositories {
		repo, err := repository.Dir(r.Alias, r.Dir)
		if err != nil {
			return fmt.Errorf("repository %q: %w", r.Dir, err)
		}
		srv.AddRepository(repo)
		logging.Info("Serving directory", zap.String("alias", "/"+r.Alias), zap.String("dir", r.Dir))
	}

	if serveDemo {
		status := repository.NewDynamic()
		status.AddFunc("status.json", func(req *web.Request) (*web.Response, bool) {
			return repository.FromString(fmt.Sprintf(
				`{"server":%q,"sessions":%d,"connections":%d,"websockets":%d}`,
				version.ServerName(), srv.Sessions().Len(), srv.ActiveConnections(), srv.ActiveWebSockets(),
			))
		})
		srv.AddRepository(status)

		sub, err := fs.Sub(demoFiles, "www")
		if err != nil {
			return fmt.Errorf("demo files: %w", err)
		}
		srv.AddRepository(repository.NewFS("", sub))
	}

	for _, ws := range cfg.WebSockets {
		srv.AddWebSocket(ws.Path, websocket.Echo(), websocket.WithDeflate(ws.Deflate))
		logging.Info("WebSocket endpoint", zap.String("path", ws.Path), zap.Bool("deflate", ws.Deflate))
	}
	return nil
}

// promptKeyPassword asks for the private key password on the terminal.
func promptKeyPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("private key is encrypted and no password is configured (set NAVAJO_TLS__KEY_PASSWORD)")
	}
	fmt.Fprint(os.Stderr, "Private key password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return password, err
}
