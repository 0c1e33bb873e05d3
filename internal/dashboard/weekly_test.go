package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// TestWeekStart verifies the Monday of the ISO week.
func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := weekStart(tt.in); !got.Equal(tt.want) {
			t.Errorf("weekStart(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestBucketWeeks verifies totals, empty weeks and ISO labels.
func TestBucketWeeks(t *testing.T) {
	from := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		{StartTime: from.Add(26 * time.Hour), Climbs: []models.Climb{
			{Grade: "V2", RPE: 5, Attempts: 1},
			{Grade: "V6", RPE: 9, Attempts: 4},
			{Grade: "V4", RPE: 7, Attempts: 2},
		}},
		{StartTime: from.AddDate(0, 0, 15), Climbs: []models.Climb{
			{Grade: "V3", RPE: 6, Attempts: 1},
		}},
		{StartTime: from.AddDate(0, 0, -1), Climbs: []models.Climb{
			{Grade: "V9", RPE: 10, Attempts: 1},
		}},
		{StartTime: from.AddDate(0, 0, 2), Climbs: []models.Climb{
			{Grade: "bogus", RPE: 6, Attempts: 1},
		}},
	}

	got := bucketWeeks(sessions, from, 3)

	if len(got) != 3 {
		t.Fatalf("weeks = %d, want 3", len(got))
	}
	if got[0].Week != "2026-W08" || got[2].Week != "2026-W10" {
		t.Errorf("labels = %q..%q", got[0].Week, got[2].Week)
	}
	w := got[0]
	if w.Sessions != 1 || w.Climbs != 3 || w.Flashes != 1 || w.RPEVolume != 21 {
		t.Errorf("week 0 = %+v", w)
	}
	if w.AvgRPE != 7 || w.MaxGrade != "V6" || w.MedianGrade != "V4" {
		t.Errorf("week 0 grades = %+v", w)
	}
	if got[1].Sessions != 0 || got[1].MaxGrade != "" {
		t.Errorf("week 1 = %+v, want empty", got[1])
	}
	if got[2].Sessions != 1 || got[2].MedianGrade != "V3" {
		t.Errorf("week 2 = %+v", got[2])
	}
}

// TestWeeklySummaryRange verifies the loaded range and week count clamping.
func TestWeeklySummaryRange(t *testing.T) {
	store := &fakeStore{sessions: map[int][]models.Session{1: weekly(3)}}
	svc := newTestService(store, 90)

	weeks, err := svc.WeeklySummary(context.Background(), 1, 4)
	if err != nil {
		t.Fatalf("WeeklySummary: %v", err)
	}
	if len(weeks) != 4 {
		t.Fatalf("weeks = %d, want 4", len(weeks))
	}
	wantFrom := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	if !store.lastStart.Equal(wantFrom) {
		t.Errorf("loaded from %v, want %v", store.lastStart, wantFrom)
	}
	total := 0
	for _, w := range weeks {
		total += w.Sessions
	}
	if total != 3 {
		t.Errorf("sessions = %d, want 3", total)
	}

	weeks, err = svc.WeeklySummary(context.Background(), 1, 500)
	if err != nil {
		t.Fatalf("WeeklySummary: %v", err)
	}
	if len(weeks) != MaxWeeks {
		t.Errorf("weeks = %d, want %d", len(weeks), MaxWeeks)
	}
}
