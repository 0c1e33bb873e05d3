package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics counts requests and observes their latency. Routes are
// labelled by their chi pattern so path parameters do not explode the
// label set.
func (m *Manager) RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		resp := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(resp, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(resp.statusCode)
		m.CounterRequests.With(prometheus.Labels{
			"route":  route,
			"method": r.Method,
			"status": status,
		}).Inc()
		m.HistogramRequestDuration.WithLabelValues(route, r.Method, status).
			Observe(time.Since(begin).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseWriter) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush passes through so streamed MCP responses keep working.
func (r *responseWriter) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
