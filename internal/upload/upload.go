package upload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/chalkline/internal/ingest"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	SessionsInserted int
	SessionsReplaced int
	ClimbsInserted   int64
	ClimbsRejected   int
}

// Sender is the part of Client the uploader needs.
type Sender interface {
	UploadCSV(ctx context.Context, name string, data []byte) (*ingest.Result, error)
}

// Uploader walks a directory of CSV climbing logs and POSTs new or changed
// files to the Chalkline server.
type Uploader struct {
	client Sender
	state  *StateDB
	dir    string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode.
func New(client Sender, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dir:    dir,
		dryRun: dryRun,
		log:    log,
	}
}

// Run uploads every pending .csv file under the directory. Per-file failures
// are counted and logged; only walk and state errors abort the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := findLogs(u.dir)
	if err != nil {
		return &u.stats, fmt.Errorf("scanning %s: %w", u.dir, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		u.stats.FilesTotal++
		if err := u.processFile(ctx, f); err != nil {
			u.log.Warn("upload failed", "file", f, "error", err)
			u.stats.FilesErrored++
		}
	}

	return &u.stats, nil
}

func (u *Uploader) processFile(ctx context.Context, path string) error {
	relPath, err := filepath.Rel(u.dir, path)
	if err != nil {
		relPath = path
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}

	uploaded, err := u.state.IsUploaded(ctx, relPath, info.Size(), hash)
	if err != nil {
		return err
	}
	if uploaded {
		u.stats.FilesSkipped++
		u.log.Debug("already uploaded", "file", relPath)
		return nil
	}

	if u.dryRun {
		u.log.Info("would upload", "file", relPath, "bytes", info.Size())
		u.stats.FilesUploaded++
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	result, err := u.client.UploadCSV(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}

	u.stats.FilesUploaded++
	u.stats.SessionsInserted += result.SessionsInserted
	u.stats.SessionsReplaced += result.SessionsReplaced
	u.stats.ClimbsInserted += result.ClimbsInserted
	u.stats.ClimbsRejected += result.ClimbsRejected
	u.log.Info("uploaded", "file", relPath,
		"sessions", result.SessionsInserted,
		"climbs", result.ClimbsInserted,
		"rejected", result.ClimbsRejected,
	)

	return u.state.MarkUploaded(ctx, relPath, info.Size(), hash, result.SessionsInserted)
}

// findLogs returns all .csv files below dir in lexical order. Hidden
// directories are skipped.
func findLogs(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
