package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/chalkline/internal/config"
	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/logging"
	chalkmcp "github.com/claude/chalkline/internal/mcp"
	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Runs an MCP server on stdio. With -server, data comes from a running
// Chalkline instance over its REST API; otherwise the database from -config
// is read directly as -user-id.
func main() {
	serverURL := flag.String("server", "", "remote Chalkline URL (e.g. https://chalkline.tail1234.ts.net)")
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	userID := flag.Int("user-id", 1, "user to serve in local mode")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	lvl, err := logging.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	var ds chalkmcp.DataSource
	if *serverURL != "" {
		ds = chalkmcp.NewHTTPClient(*serverURL)
		log.Info("remote mode", "server", *serverURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = dashboard.NewService(db, metrics.New(cfg.Metrics.EngineOptions()), cfg.Metrics.HistoryDays, log)
		log.Info("local mode", "user_id", *userID)
	}

	srv := chalkmcp.New(ds, Version, log)
	uid := *userID
	err = mcpserver.ServeStdio(srv, mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return chalkmcp.WithUserID(ctx, uid)
	}))
	if err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
