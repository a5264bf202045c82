// Command skillpath runs the SkillPath learning assistant backend.
//
// Usage:
//
//	skillpath [serve] [-config path]   HTTP API and websocket sessions
//	skillpath mcp [-config path]       MCP server on stdio
//	skillpath token -subject name      issue an API token
//	skillpath backup | restore         archive or restore the search log
//	skillpath version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/catalog"
	"github.com/HerbHall/skillpath/internal/live"
	"github.com/HerbHall/skillpath/internal/mcpserver"
	"github.com/HerbHall/skillpath/internal/server"
	"github.com/HerbHall/skillpath/internal/version"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "mcp":
		runMCP(args)
	case "token":
		runToken(args)
	case "backup":
		runBackup(args)
	case "restore":
		runRestore(args)
	case "version":
		fmt.Println(version.Info())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a, err := newApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	logger := a.logger

	logger.Info("SkillPath server starting", zap.String("version", version.Short()))

	liveHandler := live.NewHandler(a.settings.Live, a.sessions, a.dispatcher, logger.Named("live"))
	deps := server.Deps{
		Sessions: a.sessions,
		Live:     liveHandler,
		Auth:     a.auth,
		Gatherer: a.registry,
		Routes:   []server.RouteRegistrar{catalog.NewHandler(a.engine, logger.Named("catalog"))},
	}
	if a.searchLog != nil {
		deps.SearchLog = a.searchLog
	}
	addr := a.settings.Server.Addr()
	srv := server.New(addr, a.settings.Server.ReadHeaderTimeout, deps, logger.Named("server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("SkillPath server ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.settings.Server.ShutdownTimeout)
	defer shutdownCancel()

	a.sessions.CloseAll("server shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("SkillPath server stopped")
}

func runMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a, err := newApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(a.sessions, a.dispatcher, nil, a.logger.Named("mcp"), version.Short())
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		a.logger.Error("mcp server error", zap.Error(err))
	}
}

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	subject := fs.String("subject", "", "token subject (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "error: -subject is required")
		fs.Usage()
		os.Exit(1)
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	token, err := newAuthenticator(settings, zap.NewNop()).IssueToken(*subject, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
