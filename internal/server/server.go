package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/ingest/csvlog"
	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
	"github.com/claude/chalkline/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the part of the database the handlers use directly.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	InsertSession(ctx context.Context, s models.Session, userID int, source string) (bool, error)
	GetSession(ctx context.Context, id uuid.UUID, userID int) (*models.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID, userID int) error
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

var _ Store = (*storage.DB)(nil)

// Dashboard serves computed metrics and aggregated views.
type Dashboard interface {
	Compute(ctx context.Context, userID int) (metrics.Bundle, error)
	History(ctx context.Context, start, end time.Time, userID, limit int) ([]models.ScoreSnapshotRow, error)
	WeeklySummary(ctx context.Context, userID, weeks int) ([]dashboard.WeekSummary, error)
	ListSessions(ctx context.Context, start, end time.Time, userID, limit int) ([]storage.SessionInfo, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	GetTrainingIntensity(ctx context.Context, start, end time.Time, userID int, angleFilter string) (*storage.TrainingIntensityResult, error)
}

var _ Dashboard = (*dashboard.Service)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db      Store
	dash    Dashboard
	csv     *csvlog.Provider
	log     *slog.Logger
	apiKey  string
	router  chi.Router
	ts      WhoIsClient
	metrics *telemetry.Manager
}

// New creates a new Server with all routes configured.
func New(db Store, dash Dashboard, csvProvider *csvlog.Provider, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:     db,
		dash:   dash,
		csv:    csvProvider,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(s.requestMetrics)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Ingest endpoints (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Use(s.uploaderIdentity)
		r.Post("/csv", s.handleCSVIngest)
	})

	// Dashboard API endpoints (no API key, tsnet handles access)
	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/api/v1/me", s.handleMe)

		r.Post("/api/v1/sessions", s.handleCreateSession)
		r.Get("/api/v1/sessions", s.handleListSessions)
		r.Get("/api/v1/sessions/{id}", s.handleGetSession)
		r.Delete("/api/v1/sessions/{id}", s.handleDeleteSession)

		r.Get("/api/v1/dashboard", s.handleDashboard)
		r.Get("/api/v1/dashboard/history", s.handleScoreHistory)
		r.Get("/api/v1/dashboard/weekly", s.handleWeeklySummary)
		r.Get("/api/v1/training/summary", s.handleTrainingSummary)
		r.Get("/api/v1/training/intensity", s.handleTrainingIntensity)

		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/import-logs", s.handleImportLogs)
	})
}

// SetTelemetry enables request metrics and exposes the registry on /metrics.
func (s *Server) SetTelemetry(m *telemetry.Manager, g prometheus.Gatherer) {
	s.metrics = m
	s.router.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// SetMCP mounts an MCP transport on /mcp behind the identity middleware, so
// RequestUserID works inside the transport's context hook.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(s.identity).Handle("/mcp", h)
}

func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		s.metrics.RequestMetrics(next).ServeHTTP(w, r)
	})
}
