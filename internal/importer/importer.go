package importer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/claude/chalkline/internal/ingest"
	"github.com/claude/chalkline/internal/ingest/csvlog"
	"github.com/claude/chalkline/internal/storage"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesErrored   int

	SessionsReceived int
	SessionsInserted int
	SessionsReplaced int
	SessionsSkipped  int
	ClimbsInserted   int64
	ClimbsRejected   int
}

func (s *Stats) add(r *ingest.Result) {
	s.SessionsReceived += r.SessionsReceived
	s.SessionsInserted += r.SessionsInserted
	s.SessionsReplaced += r.SessionsReplaced
	s.SessionsSkipped += r.SessionsSkipped
	s.ClimbsInserted += r.ClimbsInserted
	s.ClimbsRejected += r.ClimbsRejected
}

// Ingester stores one parsed export; *csvlog.Provider satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error)
}

// ImportLogger records per-file outcomes. Each file gets a "running" entry
// that is finalized once the file is done.
type ImportLogger interface {
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	UpdateImportLog(ctx context.Context, id int64, log storage.ImportLog) error
}

// Importer reads CSV climbing logs from disk and writes them straight to the
// database, bypassing the HTTP API.
type Importer struct {
	ingester Ingester
	logs     ImportLogger
	log      *slog.Logger
	loc      *time.Location
	dryRun   bool
	stats    Stats
}

// New creates a new Importer. logs may be nil. loc is used to read session
// times in dry-run mode and should match the provider's zone.
func New(ingester Ingester, logs ImportLogger, log *slog.Logger, loc *time.Location, dryRun bool) *Importer {
	return &Importer{ingester: ingester, logs: logs, log: log, loc: loc, dryRun: dryRun}
}

// Import processes the given paths for userID. Directories are walked for
// .csv files. A file that fails to parse is counted and skipped.
func (imp *Importer) Import(ctx context.Context, userID int, paths ...string) (*Stats, error) {
	files, err := collect(paths)
	if err != nil {
		return &imp.stats, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, userID, f); err != nil {
			imp.log.Warn("import failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		imp.stats.FilesProcessed++
	}

	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, userID int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if imp.dryRun {
		result, err := dryRun(f, imp.loc)
		if err != nil {
			return err
		}
		imp.stats.add(result)
		imp.log.Info("parsed", "file", path, "sessions", result.SessionsInserted, "climbs", result.ClimbsInserted)
		return nil
	}

	logID := imp.begin(ctx, userID, path)
	start := time.Now()
	result, err := imp.ingester.Ingest(ctx, f, userID)
	imp.finish(logID, userID, path, result, err, time.Since(start))
	if err != nil {
		return err
	}
	imp.stats.add(result)
	return nil
}

const logSource = "csv-file"

// begin opens a "running" import log entry and returns its ID, or 0 when
// logging is off or fails.
func (imp *Importer) begin(ctx context.Context, userID int, path string) int64 {
	if imp.logs == nil {
		return 0
	}
	id, err := imp.logs.InsertImportLog(ctx, storage.ImportLog{
		UserID: userID,
		Source: logSource,
		Status: "running",
	})
	if err != nil {
		imp.log.Error("failed to log import", "file", path, "error", err)
		return 0
	}
	return id
}

func (imp *Importer) finish(id int64, userID int, path string, result *ingest.Result, importErr error, elapsed time.Duration) {
	if imp.logs == nil || id == 0 {
		return
	}
	ms := int(elapsed.Milliseconds())
	entry := storage.ImportLog{
		UserID:     userID,
		Source:     logSource,
		Status:     "success",
		DurationMs: &ms,
	}
	if importErr != nil {
		msg := fmt.Sprintf("%s: %v", filepath.Base(path), importErr)
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}
	if result != nil {
		entry.SessionsReceived = result.SessionsReceived
		entry.SessionsInserted = result.SessionsInserted
		entry.SessionsReplaced = result.SessionsReplaced
		entry.ClimbsInserted = result.ClimbsInserted
	}

	// The import context may already be cancelled; the entry should still close.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := imp.logs.UpdateImportLog(ctx, id, entry); err != nil {
		imp.log.Error("failed to update import log", "file", path, "error", err)
	}
}

// dryRun reports what Ingest would store without touching the database.
func dryRun(r io.Reader, loc *time.Location) (*ingest.Result, error) {
	parsed, err := csvlog.Parse(r, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	result := &ingest.Result{SessionsReceived: len(parsed)}
	for _, ps := range parsed {
		result.ClimbsReceived += len(ps.Climbs)
		s, rejected := ingest.Sanitize(ps.ToModel())
		result.ClimbsRejected += rejected
		if len(s.Climbs) == 0 {
			result.SessionsSkipped++
			continue
		}
		result.SessionsInserted++
		result.ClimbsInserted += int64(len(s.Climbs))
	}
	return result, nil
}

// collect expands paths into a sorted, de-duplicated list of CSV files.
func collect(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
