// Package dashboard loads a user's data, runs the metrics engine on one
// consistent snapshot and persists the results.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
)

// Store is the subset of storage the service reads and writes.
type Store interface {
	QuerySessions(ctx context.Context, start, end time.Time, userID int) ([]models.Session, error)
	ListSessions(ctx context.Context, start, end time.Time, userID, limit int) ([]storage.SessionInfo, error)
	LoadSnapshot(ctx context.Context, start, end time.Time, userID int) ([]models.Session, models.UserAggregateCounts, error)
	ListUserIDs(ctx context.Context) ([]int, error)
	InsertScoreSnapshot(ctx context.Context, row models.ScoreSnapshotRow) error
	QueryScoreSnapshots(ctx context.Context, start, end time.Time, userID, limit int) ([]models.ScoreSnapshotRow, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	GetTrainingIntensity(ctx context.Context, start, end time.Time, userID int, angleFilter string) (*storage.TrainingIntensityResult, error)
}

var _ Store = (*storage.DB)(nil)

// MinHistory is the shortest history the service loads: the baseline window.
const MinHistory = 28 * 24 * time.Hour

// Service computes dashboards. It is safe for concurrent use.
type Service struct {
	store   Store
	engine  *metrics.Engine
	history time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a service that loads historyDays of sessions per
// computation. Values below the baseline window are raised to it.
func NewService(store Store, engine *metrics.Engine, historyDays int, log *slog.Logger) *Service {
	history := time.Duration(historyDays) * 24 * time.Hour
	if history < MinHistory {
		history = MinHistory
	}
	return &Service{store: store, engine: engine, history: history, log: log, now: time.Now}
}

// Compute loads one snapshot of the user's data and runs the engine on it.
func (s *Service) Compute(ctx context.Context, userID int) (metrics.Bundle, error) {
	return s.computeAt(ctx, userID, s.now().UTC())
}

func (s *Service) computeAt(ctx context.Context, userID int, now time.Time) (metrics.Bundle, error) {
	sessions, counts, err := s.store.LoadSnapshot(ctx, now.Add(-s.history), now, userID)
	if err != nil {
		return metrics.Bundle{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return s.engine.Compute(metrics.Snapshot{Sessions: sessions, Counts: counts}, now), nil
}

// Snapshot computes the dashboard and stores it as a score snapshot.
func (s *Service) Snapshot(ctx context.Context, userID int) (metrics.Bundle, error) {
	b, err := s.Compute(ctx, userID)
	if err != nil {
		return b, err
	}
	row, err := SnapshotRow(userID, b)
	if err != nil {
		return b, err
	}
	if err := s.store.InsertScoreSnapshot(ctx, row); err != nil {
		return b, fmt.Errorf("storing snapshot: %w", err)
	}
	return b, nil
}

// SnapshotAll stores a snapshot for every user with sessions. Users are
// processed one at a time; a failure for one user does not stop the rest.
// Returns the number of snapshots stored.
func (s *Service) SnapshotAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}
	stored := 0
	var firstErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		b, err := s.Snapshot(ctx, id)
		if err != nil {
			s.log.Error("snapshot failed", "user_id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("user %d: %w", id, err)
			}
			continue
		}
		stored++
		s.log.Debug("snapshot stored", "user_id", id, "status", b.Readiness.Status, "load_zone", b.LoadRatio.Zone)
	}
	return stored, firstErr
}

// History returns stored snapshots in [start, end), newest first.
func (s *Service) History(ctx context.Context, start, end time.Time, userID, limit int) ([]models.ScoreSnapshotRow, error) {
	return s.store.QueryScoreSnapshots(ctx, start, end, userID, limit)
}

// ListSessions returns session headers in [start, end), newest first.
func (s *Service) ListSessions(ctx context.Context, start, end time.Time, userID, limit int) ([]storage.SessionInfo, error) {
	return s.store.ListSessions(ctx, start, end, userID, limit)
}

// GetTrainingSummary returns per-period totals.
func (s *Service) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error) {
	return s.store.GetTrainingSummary(ctx, start, end, bucket, userID)
}

// GetTrainingIntensity returns the RPE distribution and grade pyramid.
func (s *Service) GetTrainingIntensity(ctx context.Context, start, end time.Time, userID int, angleFilter string) (*storage.TrainingIntensityResult, error) {
	return s.store.GetTrainingIntensity(ctx, start, end, userID, angleFilter)
}

// SnapshotRow flattens a bundle into its stored form.
func SnapshotRow(userID int, b metrics.Bundle) (models.ScoreSnapshotRow, error) {
	rec, err := json.Marshal(b.Recommendation)
	if err != nil {
		return models.ScoreSnapshotRow{}, fmt.Errorf("encoding recommendation: %w", err)
	}
	return models.ScoreSnapshotRow{
		UserID:         userID,
		ComputedAt:     b.ComputedAt,
		Status:         string(b.Readiness.Status),
		Score:          b.Readiness.Score,
		Zone:           string(b.Readiness.Zone),
		Confidence:     b.Readiness.Confidence,
		LoadRatio:      b.LoadRatio.Ratio,
		LoadZone:       string(b.LoadRatio.Zone),
		LoadAvailable:  b.LoadRatio.Available,
		Recommendation: rec,
	}, nil
}
