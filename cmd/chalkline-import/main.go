package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/chalkline/internal/config"
	"github.com/claude/chalkline/internal/importer"
	"github.com/claude/chalkline/internal/ingest/csvlog"
	"github.com/claude/chalkline/internal/logging"
	"github.com/claude/chalkline/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	user := flag.String("user", "", "login to import for (default: local user 1)")
	tz := flag.String("tz", "UTC", "time zone of session times in the logs (IANA name)")
	dryRun := flag.Bool("dry-run", false, "report counts without inserting into database")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: chalkline-import -config config.yaml [-user login] [-tz Europe/Berlin] [-dry-run] <file.csv|dir>...\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -tz %q: %v\n", *tz, err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		log.Info("DRY RUN mode: no data will be written to the database")
		stats, err := importer.New(nil, nil, log, loc, true).Import(ctx, 0, flag.Args()...)
		finish(log, stats, err)
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.File = ""
	log, _, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	userID := 1
	if *user != "" {
		userID, err = db.GetOrCreateUser(ctx, *user, *user)
		if err != nil {
			log.Error("resolving user failed", "user", *user, "error", err)
			os.Exit(1)
		}
	}

	// Run import
	imp := importer.New(csvlog.NewProvider(db, log, loc), db, log, loc, false)
	stats, err := imp.Import(ctx, userID, flag.Args()...)
	finish(log, stats, err)
}

func finish(log *slog.Logger, stats *importer.Stats, err error) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_errored", stats.FilesErrored,
		"sessions_received", stats.SessionsReceived,
		"sessions_inserted", stats.SessionsInserted,
		"sessions_replaced", stats.SessionsReplaced,
		"sessions_skipped", stats.SessionsSkipped,
		"climbs_inserted", stats.ClimbsInserted,
		"climbs_rejected", stats.ClimbsRejected,
	)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("import complete")
}
