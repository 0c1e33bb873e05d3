package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/claude/chalkline/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "Chalkline server URL (e.g. https://chalkline.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("CHALKLINE_API_KEY"), "ingest API key (default $CHALKLINE_API_KEY)")
	user := flag.String("user", "", "login the logs belong to (default: server's local user)")
	dir := flag.String("dir", "", "directory containing .csv climbing logs")
	stateDir := flag.String("state-dir", "", "directory for the upload state database (default ~/.chalkline-upload)")
	dryRun := flag.Bool("dry-run", false, "list pending files but don't send them")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("chalkline-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *dir == "" {
		fmt.Fprintf(os.Stderr, "Usage: chalkline-upload -server <URL> -api-key <key> -dir <logs dir> [-user login] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if !*dryRun && (*serverURL == "" || *apiKey == "") {
		fmt.Fprintf(os.Stderr, "Error: -server and -api-key are required (or use -dry-run)\n")
		os.Exit(1)
	}

	info, err := os.Stat(*dir)
	if err != nil || !info.IsDir() {
		log.Error("log directory not found", "path", *dir)
		os.Exit(1)
	}

	if *stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		*stateDir = filepath.Join(homeDir, ".chalkline-upload")
	}

	state, err := upload.OpenStateDB(*stateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	var client upload.Sender
	if *dryRun {
		log.Info("DRY RUN mode: pending files are listed but not sent")
	} else {
		client = upload.NewClient(strings.TrimRight(*serverURL, "/"), *apiKey, *user)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := upload.New(client, state, *dir, *dryRun, log).Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("upload failed", "error", err)
		os.Exit(1)
	}
	if stats.FilesErrored > 0 {
		os.Exit(2)
	}
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files uploaded:   %d\n", stats.FilesUploaded)
	fmt.Printf("  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Sessions:         %d (%d replaced)\n", stats.SessionsInserted, stats.SessionsReplaced)
	fmt.Printf("  Climbs:           %d (%d rejected)\n", stats.ClimbsInserted, stats.ClimbsRejected)
	fmt.Println()
}
