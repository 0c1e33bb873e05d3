package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/chalkline/internal/ingest"
)

func noBackoff(int) time.Duration { return 0 }

// TestUploadCSV verifies headers, body and result decoding.
func TestUploadCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ingest/csv" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("api key = %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get(UserHeader) != "alice" {
			t.Errorf("user = %q", r.Header.Get(UserHeader))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "csv-data" {
			t.Errorf("body = %q", body)
		}
		json.NewEncoder(w).Encode(ingest.Result{SessionsInserted: 2, ClimbsInserted: 11})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "alice")
	res, err := c.UploadCSV(context.Background(), "log.csv", []byte("csv-data"))
	if err != nil {
		t.Fatalf("UploadCSV: %v", err)
	}
	if res.SessionsInserted != 2 || res.ClimbsInserted != 11 {
		t.Errorf("result = %+v", res)
	}
}

// TestUploadCSVRetries verifies server errors are retried and client errors are not.
func TestUploadCSVRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
	}{
		{"recovers", []int{500, 502, 200}, false, 3},
		{"gives up", []int{500, 500, 500}, true, 3},
		{"no retry on 4xx", []int{400, 200}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[n-1]
				w.WriteHeader(status)
				if status == http.StatusOK {
					w.Write([]byte(`{"sessions_inserted":1}`))
				} else {
					w.Write([]byte(`{"error":"nope"}`))
				}
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "k", "")
			c.backoff = noBackoff
			_, err := c.UploadCSV(context.Background(), "log.csv", []byte("x"))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if err != nil && !strings.Contains(err.Error(), "log.csv") {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}
