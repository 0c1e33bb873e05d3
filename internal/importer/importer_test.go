package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claude/chalkline/internal/ingest"
	"github.com/claude/chalkline/internal/storage"
)

const logCSV = `"Evening · The Arch";"2026-02-19 18:30";"1:45 hr"
#;GRADE;ANGLE;STYLE;RPE;ATTEMPTS
1;V4;overhang;powerful;7,5;3
2;V3;slab;technical;6;1
3;5c;slab;simple;5;1
`

type fakeIngester struct {
	calls int
	fail  bool
}

func (f *fakeIngester) Ingest(_ context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("db down")
	}
	io.Copy(io.Discard, r)
	return &ingest.Result{SessionsReceived: 1, SessionsInserted: 1, ClimbsInserted: 3}, nil
}

type fakeLogs struct {
	entries []storage.ImportLog
}

func (f *fakeLogs) InsertImportLog(_ context.Context, l storage.ImportLog) (int64, error) {
	f.entries = append(f.entries, l)
	return int64(len(f.entries)), nil
}

func (f *fakeLogs) UpdateImportLog(_ context.Context, id int64, l storage.ImportLog) error {
	if id < 1 || int(id) > len(f.entries) {
		return errors.New("unknown import log")
	}
	if f.entries[id-1].Status != "running" {
		return errors.New("import log already closed")
	}
	f.entries[id-1] = l
	return nil
}

func writeLogs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(logCSV), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// TestImportDirectory verifies directories are walked and every file is logged.
func TestImportDirectory(t *testing.T) {
	dir := writeLogs(t, "a.csv", "sub/b.CSV", "readme.md")
	ing := &fakeIngester{}
	logs := &fakeLogs{}

	stats, err := New(ing, logs, quiet(), nil, false).Import(context.Background(), 4, dir)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if ing.calls != 2 || stats.FilesProcessed != 2 {
		t.Errorf("calls = %d, processed = %d, want 2", ing.calls, stats.FilesProcessed)
	}
	if stats.SessionsInserted != 2 || stats.ClimbsInserted != 6 {
		t.Errorf("stats = %+v", stats)
	}
	if len(logs.entries) != 2 || logs.entries[0].UserID != 4 || logs.entries[0].Status != "success" {
		t.Errorf("import logs = %+v", logs.entries)
	}
}

// TestImportFailureLogged verifies failed files are counted and logged as errors.
func TestImportFailureLogged(t *testing.T) {
	dir := writeLogs(t, "a.csv")
	logs := &fakeLogs{}

	stats, err := New(&fakeIngester{fail: true}, logs, quiet(), nil, false).Import(context.Background(), 1, dir)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.FilesErrored != 1 || stats.FilesProcessed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(logs.entries) != 1 || logs.entries[0].Status != "error" {
		t.Fatalf("import logs = %+v", logs.entries)
	}
	if msg := logs.entries[0].ErrorMessage; msg == nil || !strings.Contains(*msg, "a.csv") {
		t.Errorf("error message = %v", msg)
	}
}

// TestImportDryRun verifies dry runs parse and count without storing.
func TestImportDryRun(t *testing.T) {
	dir := writeLogs(t, "a.csv")
	ing := &fakeIngester{}

	stats, err := New(ing, nil, quiet(), nil, true).Import(context.Background(), 1, filepath.Join(dir, "a.csv"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if ing.calls != 0 {
		t.Errorf("ingester called %d times in dry run", ing.calls)
	}
	if stats.SessionsInserted != 1 || stats.ClimbsInserted != 2 || stats.ClimbsRejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// TestImportMissingPath verifies unknown paths abort before any work.
func TestImportMissingPath(t *testing.T) {
	_, err := New(&fakeIngester{}, nil, quiet(), nil, false).Import(context.Background(), 1, "/does/not/exist")
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}
