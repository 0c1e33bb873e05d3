// Package telemetry exposes Prometheus instruments for the server and the
// snapshot job.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests         *prometheus.CounterVec
	CounterSnapshots        *prometheus.CounterVec
	CounterSessionsIngested *prometheus.CounterVec
	CounterClimbsRejected   prometheus.Counter

	// gauges
	GaugeLastSnapshotRun prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
	HistSnapshotRunDuration  prometheus.Histogram
}

// NewRegistry returns a registry carrying build info, Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewTestManager() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("chalkline", "server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "The total number of incoming requests, by chi route pattern",
	}, []string{"route", "method", "status"})
	counterSnapshots := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "readiness_snapshots_total",
		Help:      "Readiness snapshots computed, by result",
	}, []string{"result"})
	counterSessionsIngested := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_ingested_total",
		Help:      "Sessions stored, by ingest source",
	}, []string{"source"})
	counterClimbsRejected := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "climbs_rejected_total",
		Help:      "Climbs dropped as malformed during ingest",
	})

	gaugeLastSnapshotRun := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "last_snapshot_run_timestamp_seconds",
		Help:      "Unix time of the last completed snapshot run",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})
	histSnapshotRunDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "snapshot_run_duration_seconds",
		Help:      "Duration of a full snapshot run over all users",
		Buckets:   []float64{.01, .1, .5, 1, 5, 10, 30, 60, 120, 300},
	})

	return &Manager{
		CounterRequests:          counterRequests,
		CounterSnapshots:         counterSnapshots,
		CounterSessionsIngested:  counterSessionsIngested,
		CounterClimbsRejected:    counterClimbsRejected,
		GaugeLastSnapshotRun:     gaugeLastSnapshotRun,
		HistogramRequestDuration: histogramRequestDuration,
		HistSnapshotRunDuration:  histSnapshotRunDuration,
	}
}
