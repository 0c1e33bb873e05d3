package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/chalkline/internal/config"
	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/ingest/csvlog"
	"github.com/claude/chalkline/internal/logging"
	chalkmcp "github.com/claude/chalkline/internal/mcp"
	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/scheduler"
	"github.com/claude/chalkline/internal/server"
	"github.com/claude/chalkline/internal/storage"
	"github.com/claude/chalkline/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	log.Info("Chalkline starting", "version", Version)

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	engine := metrics.New(cfg.Metrics.EngineOptions())
	dash := dashboard.NewService(db, engine, cfg.Metrics.HistoryDays, log)
	csvProvider := csvlog.NewProvider(db, log, nil)

	srv := server.New(db, dash, csvProvider, cfg.Auth.APIKey, log)

	reg := telemetry.NewRegistry()
	tm := telemetry.NewManager("chalkline", "server", reg)
	srv.SetTelemetry(tm, reg)

	mcpSrv := chalkmcp.New(dash, Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return chalkmcp.WithUserID(ctx, server.RequestUserID(r))
		}),
	))

	var sched *scheduler.Scheduler
	if cfg.Snapshots.Enabled {
		sched = scheduler.New(ctx, dash, tm, log)
		if err := sched.Register(cfg.Snapshots.Cron); err != nil {
			log.Error("scheduling snapshots failed", "error", err)
			os.Exit(1)
		}
		sched.Start()
		log.Info("snapshot scheduler started", "cron", cfg.Snapshots.Cron)
	}

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	log.Info("server stopped")
}
