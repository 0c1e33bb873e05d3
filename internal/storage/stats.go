package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// DataStats holds aggregate statistics about all stored data.
type DataStats struct {
	TotalSessions  int64           `json:"total_sessions"`
	TotalClimbs    int64           `json:"total_climbs"`
	TotalSnapshots int64           `json:"total_snapshots"`
	EarliestData   *time.Time      `json:"earliest_data"`
	LatestData     *time.Time      `json:"latest_data"`
	ClimbsByGrade  []GradeStat     `json:"climbs_by_grade"`
	ClimbsByAngle  []WallAngleStat `json:"climbs_by_angle"`
	Locations      []LocationStat  `json:"locations"`
}

// GradeStat holds totals for one grade.
type GradeStat struct {
	Grade   string `json:"grade"`
	Count   int64  `json:"count"`
	Flashes int64  `json:"flashes"`
}

// WallAngleStat holds totals for one wall angle.
type WallAngleStat struct {
	WallAngle string  `json:"wall_angle"`
	Count     int64   `json:"count"`
	AvgRPE    float64 `json:"avg_rpe"`
}

// LocationStat counts sessions per location.
type LocationStat struct {
	Location string `json:"location"`
	Sessions int64  `json:"sessions"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM climb_sessions WHERE user_id = $1),
			(SELECT COUNT(*) FROM climbs WHERE user_id = $1),
			(SELECT COUNT(*) FROM readiness_snapshots WHERE user_id = $1)`, userID,
	).Scan(&stats.TotalSessions, &stats.TotalClimbs, &stats.TotalSnapshots)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT MIN(start_time), MAX(start_time) FROM climb_sessions WHERE user_id = $1`, userID,
	).Scan(&stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("querying date range: %w", err)
	}

	gradeRows, err := db.Pool.Query(ctx,
		`SELECT difficulty, COUNT(*), COUNT(*) FILTER (WHERE attempts = 1)
		 FROM climbs
		 WHERE user_id = $1
		 GROUP BY difficulty
		 ORDER BY difficulty`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying climbs by grade: %w", err)
	}
	defer gradeRows.Close()

	for gradeRows.Next() {
		var d int
		var s GradeStat
		if err := gradeRows.Scan(&d, &s.Count, &s.Flashes); err != nil {
			return nil, fmt.Errorf("scanning grade stat: %w", err)
		}
		s.Grade = models.FormatGrade(d)
		stats.ClimbsByGrade = append(stats.ClimbsByGrade, s)
	}
	if err := gradeRows.Err(); err != nil {
		return nil, err
	}

	angleRows, err := db.Pool.Query(ctx,
		`SELECT wall_angle, COUNT(*), AVG(rpe)::float8
		 FROM climbs
		 WHERE user_id = $1
		 GROUP BY wall_angle
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying climbs by angle: %w", err)
	}
	defer angleRows.Close()

	for angleRows.Next() {
		var s WallAngleStat
		if err := angleRows.Scan(&s.WallAngle, &s.Count, &s.AvgRPE); err != nil {
			return nil, fmt.Errorf("scanning angle stat: %w", err)
		}
		stats.ClimbsByAngle = append(stats.ClimbsByAngle, s)
	}
	if err := angleRows.Err(); err != nil {
		return nil, err
	}

	locRows, err := db.Pool.Query(ctx,
		`SELECT location, COUNT(*)
		 FROM climb_sessions
		 WHERE user_id = $1 AND location <> ''
		 GROUP BY location
		 ORDER BY COUNT(*) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer locRows.Close()

	for locRows.Next() {
		var s LocationStat
		if err := locRows.Scan(&s.Location, &s.Sessions); err != nil {
			return nil, fmt.Errorf("scanning location stat: %w", err)
		}
		stats.Locations = append(stats.Locations, s)
	}
	if err := locRows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
