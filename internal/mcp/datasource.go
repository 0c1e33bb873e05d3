package mcp

import (
	"context"
	"time"

	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *dashboard.Service
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Compute(ctx context.Context, userID int) (metrics.Bundle, error)
	History(ctx context.Context, start, end time.Time, userID, limit int) ([]models.ScoreSnapshotRow, error)
	WeeklySummary(ctx context.Context, userID, weeks int) ([]dashboard.WeekSummary, error)
	ListSessions(ctx context.Context, start, end time.Time, userID, limit int) ([]storage.SessionInfo, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
	GetTrainingIntensity(ctx context.Context, start, end time.Time, userID int, angleFilter string) (*storage.TrainingIntensityResult, error)
}

// Compile-time check: *dashboard.Service satisfies DataSource.
var _ DataSource = (*dashboard.Service)(nil)
