package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// AngleSummary holds aggregated climb stats for one wall angle within a period.
type AngleSummary struct {
	WallAngle string  `json:"wall_angle"`
	Climbs    int     `json:"climbs"`
	AvgRPE    float64 `json:"avg_rpe"`
	MaxGrade  string  `json:"max_grade"`
}

// TrainingSummaryPeriod holds session and climb totals for one time period.
type TrainingSummaryPeriod struct {
	Period    string         `json:"period"`
	Sessions  int            `json:"sessions"`
	Climbs    int            `json:"climbs"`
	Flashes   int            `json:"flashes"`
	RPEVolume float64        `json:"rpe_volume"`
	AvgRPE    float64        `json:"avg_rpe"`
	MaxGrade  string         `json:"max_grade"`
	Angles    []AngleSummary `json:"angles,omitempty"`
}

// GetTrainingSummary returns session and climb totals per period, newest first.
func (db *DB) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingSummaryPeriod, error) {
	periodRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, s.start_time)::date AS period,
		        COUNT(DISTINCT s.id)::int,
		        COUNT(c.seq)::int,
		        COUNT(c.seq) FILTER (WHERE c.attempts = 1)::int,
		        COALESCE(SUM(c.rpe), 0)::float8,
		        COALESCE(AVG(c.rpe), 0)::float8,
		        COALESCE(MAX(c.difficulty), 0)::int
		 FROM climb_sessions s
		 LEFT JOIN climbs c ON c.session_id = s.id
		 WHERE s.start_time >= $2 AND s.start_time < $3 AND s.user_id = $4
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer periodRows.Close()

	periodMap := make(map[string]*TrainingSummaryPeriod)
	var periodOrder []string

	for periodRows.Next() {
		var periodTime time.Time
		var p TrainingSummaryPeriod
		var maxDiff int
		if err := periodRows.Scan(&periodTime, &p.Sessions, &p.Climbs, &p.Flashes, &p.RPEVolume, &p.AvgRPE, &maxDiff); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = periodTime.Format("2006-01-02")
		p.MaxGrade = models.FormatGrade(maxDiff)
		periodMap[p.Period] = &p
		periodOrder = append(periodOrder, p.Period)
	}
	if err := periodRows.Err(); err != nil {
		return nil, err
	}

	angleRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, s.start_time)::date AS period,
		        c.wall_angle,
		        COUNT(*)::int,
		        AVG(c.rpe)::float8,
		        MAX(c.difficulty)::int
		 FROM climbs c
		 JOIN climb_sessions s ON s.id = c.session_id
		 WHERE s.start_time >= $2 AND s.start_time < $3 AND s.user_id = $4
		 GROUP BY period, c.wall_angle
		 ORDER BY period DESC, COUNT(*) DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying angle summary: %w", err)
	}
	defer angleRows.Close()

	for angleRows.Next() {
		var periodTime time.Time
		var a AngleSummary
		var maxDiff int
		if err := angleRows.Scan(&periodTime, &a.WallAngle, &a.Climbs, &a.AvgRPE, &maxDiff); err != nil {
			return nil, fmt.Errorf("scanning angle summary: %w", err)
		}
		a.MaxGrade = models.FormatGrade(maxDiff)
		if p, ok := periodMap[periodTime.Format("2006-01-02")]; ok {
			p.Angles = append(p.Angles, a)
		}
	}
	if err := angleRows.Err(); err != nil {
		return nil, err
	}

	result := make([]TrainingSummaryPeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 week", "week":
		return "week"
	case "1 month", "month":
		return "month"
	default:
		return "week"
	}
}
