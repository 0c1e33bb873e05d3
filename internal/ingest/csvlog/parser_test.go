package csvlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
)

const sampleCSV = `
"Evening session · The Arch";"2026-02-19 18:30";"1:45 hr"
#;GRADE;ANGLE;STYLE;RPE;ATTEMPTS
1;V4;overhang;powerful;7,5;3
2;V3;slab;technical;6;1
3;V5+;vertical;simple;8,5;6
Felt strong on the roof problems.

"Lunch burn";"2026-02-17 12:05";"50 min"
#;GRADE;ANGLE;STYLE;RPE;ATTEMPTS
1;VB;slab;simple;3;1
2;v2;;;4,5;2
`

// TestParseCompleteSessions verifies parsing a multi-session log with climbs.
func TestParseCompleteSessions(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV), nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	s1 := sessions[0]
	if s1.Name != "Evening session" || s1.Location != "The Arch" {
		t.Errorf("name/location = %q/%q", s1.Name, s1.Location)
	}
	wantStart := time.Date(2026, 2, 19, 18, 30, 0, 0, time.UTC)
	if !s1.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", s1.Start, wantStart)
	}
	if s1.Duration != 105*time.Minute {
		t.Errorf("duration = %v, want 1h45m", s1.Duration)
	}
	if len(s1.Climbs) != 3 {
		t.Fatalf("climbs = %d, want 3", len(s1.Climbs))
	}
	c := s1.Climbs[0]
	if c.Grade != "V4" || c.WallAngle != models.WallOverhang || c.Style != models.StylePowerful || c.RPE != 7.5 || c.Attempts != 3 {
		t.Errorf("first climb = %+v", c)
	}
	if s1.Climbs[2].Grade != "V5+" || s1.Climbs[2].RPE != 8.5 {
		t.Errorf("third climb = %+v", s1.Climbs[2])
	}

	s2 := sessions[1]
	if s2.Location != "" {
		t.Errorf("location = %q, want empty", s2.Location)
	}
	if s2.Duration != 50*time.Minute {
		t.Errorf("duration = %v, want 50m", s2.Duration)
	}
	if s2.Climbs[1].WallAngle != "" || s2.Climbs[1].RPE != 4.5 {
		t.Errorf("second climb = %+v", s2.Climbs[1])
	}
}

// TestParseInLocation verifies session times are read in the given zone.
func TestParseInLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	sessions, err := Parse(strings.NewReader(sampleCSV), loc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := time.Date(2026, 2, 19, 17, 30, 0, 0, time.UTC)
	if !sessions[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", sessions[0].Start.UTC(), want)
	}
}

// TestParseClimbWithoutSession verifies rows before any header are an error.
func TestParseClimbWithoutSession(t *testing.T) {
	_, err := Parse(strings.NewReader("1;V4;slab;simple;5;1\n"), nil)
	if err == nil {
		t.Fatal("expected error for climb without session")
	}
}

// TestParseDuration verifies the supported duration notations.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1:45 hr", 105 * time.Minute},
		{"0:50 hr", 50 * time.Minute},
		{"2:00 h", 2 * time.Hour},
		{"75 min", 75 * time.Minute},
		{"", 0},
		{"--", 0},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestToModel verifies the end time is derived from the duration.
func TestToModel(t *testing.T) {
	start := time.Date(2026, 2, 19, 18, 30, 0, 0, time.UTC)
	m := Session{Name: "x", Start: start, Duration: time.Hour}.ToModel()
	if !m.EndTime.Equal(start.Add(time.Hour)) {
		t.Errorf("EndTime = %v", m.EndTime)
	}
	m = Session{Start: start}.ToModel()
	if !m.EndTime.IsZero() {
		t.Errorf("EndTime = %v, want zero", m.EndTime)
	}
}

type fakeStore struct {
	calls    int
	inserted []models.Session
	existing int64
	err      error
}

func (f *fakeStore) ReplaceSessions(_ context.Context, _ int, sessions []models.Session, source string) (storage.ReplaceResult, error) {
	f.calls++
	if f.err != nil {
		return storage.ReplaceResult{}, f.err
	}
	if source != Source {
		return storage.ReplaceResult{}, io.ErrUnexpectedEOF
	}
	res := storage.ReplaceResult{Replaced: f.existing}
	for _, s := range sessions {
		f.inserted = append(f.inserted, s)
		res.Inserted++
		res.ClimbsInserted += int64(len(s.Climbs))
	}
	return res, nil
}

// TestProviderIngest verifies replace-then-insert and malformed climb counts.
func TestProviderIngest(t *testing.T) {
	input := sampleCSV + `
"Broken";"2026-02-15 10:00";"1:00 hr"
#;GRADE;ANGLE;STYLE;RPE;ATTEMPTS
1;5c;slab;simple;5;1
`
	store := &fakeStore{existing: 1}
	var logBuf bytes.Buffer
	p := NewProvider(store, slog.New(slog.NewTextHandler(&logBuf, nil)), nil)

	res, err := p.Ingest(context.Background(), strings.NewReader(input), 7)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SessionsReceived != 3 || res.SessionsInserted != 2 || res.SessionsSkipped != 1 {
		t.Errorf("sessions received/inserted/skipped = %d/%d/%d, want 3/2/1",
			res.SessionsReceived, res.SessionsInserted, res.SessionsSkipped)
	}
	if res.SessionsReplaced != 1 {
		t.Errorf("SessionsReplaced = %d, want 1", res.SessionsReplaced)
	}
	if res.ClimbsReceived != 6 || res.ClimbsInserted != 5 || res.ClimbsRejected != 1 {
		t.Errorf("climbs received/inserted/rejected = %d/%d/%d, want 6/5/1",
			res.ClimbsReceived, res.ClimbsInserted, res.ClimbsRejected)
	}
	if store.calls != 1 || len(store.inserted) != 2 {
		t.Errorf("replace calls = %d with %d sessions, want 1 with 2", store.calls, len(store.inserted))
	}
	for _, s := range store.inserted {
		if s.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("inserted session without ID")
		}
	}
	if !strings.Contains(logBuf.String(), "skipping session") {
		t.Errorf("expected skip warning in log, got %q", logBuf.String())
	}
}

// TestProviderIngestStoreFailure verifies a failed replace surfaces as an
// error with no partial counts reported.
func TestProviderIngestStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	p := NewProvider(store, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	res, err := p.Ingest(context.Background(), strings.NewReader(sampleCSV), 7)
	if err == nil {
		t.Fatal("expected error")
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("error = %v, want wrapped store error", err)
	}
	if store.calls != 1 {
		t.Errorf("replace calls = %d, want 1", store.calls)
	}
}
