package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestCompute verifies the dashboard bundle round-trips through the REST API.
func TestCompute(t *testing.T) {
	score := 64
	ratio := 2.91
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/dashboard": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, metrics.Bundle{
				Readiness:      metrics.ReadinessResult{Score: &score, Zone: metrics.ZoneBalanced, Status: metrics.StatusCalibrated},
				LoadRatio:      metrics.LoadRatioResult{Ratio: &ratio, Zone: metrics.LoadHigh, Available: true},
				Recommendation: metrics.Recommendation{Type: metrics.RecommendReduce},
			})
		},
	})
	defer ts.Close()

	bundle, err := NewHTTPClient(ts.URL).Compute(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Readiness.Score == nil || *bundle.Readiness.Score != 64 {
		t.Errorf("score = %v, want 64", bundle.Readiness.Score)
	}
	if bundle.LoadRatio.Ratio == nil || *bundle.LoadRatio.Ratio != 2.91 || bundle.LoadRatio.Zone != metrics.LoadHigh {
		t.Errorf("load ratio = %+v", bundle.LoadRatio)
	}
	if bundle.Recommendation.Type != metrics.RecommendReduce {
		t.Errorf("recommendation = %q, want %q", bundle.Recommendation.Type, metrics.RecommendReduce)
	}
}

// TestListSessions verifies the time range and limit parameters.
func TestListSessions(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("start"); got != "2026-01-01T00:00:00Z" {
				t.Errorf("start=%q", got)
			}
			if got := r.URL.Query().Get("limit"); got != "25" {
				t.Errorf("limit=%q, want 25", got)
			}
			writeTestJSON(t, w, []storage.SessionInfo{{Name: "Evening", ClimbCount: 12}})
		},
	})
	defer ts.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	sessions, err := NewHTTPClient(ts.URL).ListSessions(context.Background(), start, end, 1, 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ClimbCount != 12 {
		t.Errorf("sessions = %+v", sessions)
	}
}

// TestHistoryAndWeekly verifies the snapshot history and weekly endpoints.
func TestHistoryAndWeekly(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/dashboard/history": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, []models.ScoreSnapshotRow{{Status: "CALIBRATED", LoadZone: "optimal"}})
		},
		"/api/v1/dashboard/weekly": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("weeks"); got != "4" {
				t.Errorf("weeks=%q, want 4", got)
			}
			writeTestJSON(t, w, []dashboard.WeekSummary{{Week: "2026-W09", Sessions: 2}})
		},
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	rows, err := c.History(context.Background(), time.Now().AddDate(0, 0, -90), time.Now(), 1, 90)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != "CALIBRATED" {
		t.Errorf("rows = %+v", rows)
	}

	weeks, err := c.WeeklySummary(context.Background(), 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(weeks) != 1 || weeks[0].Week != "2026-W09" {
		t.Errorf("weeks = %+v", weeks)
	}
}

// TestBucketToAgg verifies the bucket-to-agg mapping used for summary requests.
func TestBucketToAgg(t *testing.T) {
	cases := []struct {
		bucket string
		want   string
	}{
		{"week", "weekly"},
		{"1 week", "weekly"},
		{"month", "monthly"},
		{"1 month", "monthly"},
		{"", "weekly"},
	}
	for _, tc := range cases {
		if got := bucketToAgg(tc.bucket); got != tc.want {
			t.Errorf("bucketToAgg(%q) = %q, want %q", tc.bucket, got, tc.want)
		}
	}
}

// TestHTTPClientServerError verifies the client returns an error on non-200 responses.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/dashboard": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database down"}`))
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	_, err := client.Compute(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

// TestGetTrainingSummary verifies the training/summary endpoint.
func TestGetTrainingSummary(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/training/summary": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("agg"); got != "monthly" {
				t.Errorf("agg=%q, want monthly", got)
			}
			writeTestJSON(t, w, []storage.TrainingSummaryPeriod{
				{Period: "2026-01"},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	periods, err := client.GetTrainingSummary(context.Background(), start, end, "month", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(periods) != 1 {
		t.Fatalf("got %d periods, want 1", len(periods))
	}
}

// TestGetTrainingIntensity verifies the training/intensity endpoint.
func TestGetTrainingIntensity(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/training/intensity": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("angle"); got != "overhang" {
				t.Errorf("angle=%q, want overhang", got)
			}
			writeTestJSON(t, w, storage.TrainingIntensityResult{
				TotalClimbs:    100,
				LimitEffortPct: 12.5,
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	result, err := client.GetTrainingIntensity(context.Background(), start, end, 1, "overhang")
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalClimbs != 100 {
		t.Errorf("total_climbs=%d, want 100", result.TotalClimbs)
	}
}
