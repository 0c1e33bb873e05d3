package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRequestMetricsCountsStatus verifies requests are counted by route
// pattern, method and status.
func TestRequestMetricsCountsStatus(t *testing.T) {
	m, _ := NewTestManager()
	r := chi.NewRouter()
	r.Use(m.RequestMetrics)
	r.Get("/api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sessions/abc", nil))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("/api/v1/sessions/{id}", "GET", "404")); got != 3 {
		t.Errorf("requests{/api/v1/sessions/{id},GET,404} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("/health", "GET", "200")); got != 1 {
		t.Errorf("requests{/health,GET,200} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.CounterRequests); n != 2 {
		t.Errorf("request series = %d, want 2", n)
	}
	if n := testutil.CollectAndCount(m.HistogramRequestDuration); n != 2 {
		t.Errorf("duration series = %d, want 2 (one per route pattern)", n)
	}
}

// TestManagerRegistersOnOwnRegistry verifies two managers do not collide.
func TestManagerRegistersOnOwnRegistry(t *testing.T) {
	a, regA := NewTestManager()
	b, _ := NewTestManager()
	a.CounterSnapshots.WithLabelValues("ok").Inc()
	b.CounterSnapshots.WithLabelValues("ok").Add(2)

	if got := testutil.ToFloat64(a.CounterSnapshots.WithLabelValues("ok")); got != 1 {
		t.Errorf("manager a snapshots = %v, want 1", got)
	}
	mfs, err := regA.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Error("registry gathered no metric families")
	}
}
