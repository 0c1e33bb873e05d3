package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// RPEBand holds the count and percentage of climbs in a specific RPE range.
type RPEBand struct {
	Band     string  `json:"band"`
	RPERange string  `json:"rpe_range"`
	Climbs   int     `json:"climbs"`
	Pct      float64 `json:"pct"`
}

// GradeSummary holds aggregated stats for a single grade.
type GradeSummary struct {
	Grade     string  `json:"grade"`
	Climbs    int     `json:"climbs"`
	Attempts  int     `json:"attempts"`
	Flashes   int     `json:"flashes"`
	FlashRate float64 `json:"flash_rate_pct"`
	AvgRPE    float64 `json:"avg_rpe"`
}

// GradeProgression holds one session's data for the filtered wall angle.
type GradeProgression struct {
	Date     string  `json:"date"`
	MaxGrade string  `json:"max_grade"`
	Climbs   int     `json:"climbs"`
	AvgRPE   float64 `json:"avg_rpe"`
}

// TrainingIntensityResult holds the complete intensity analysis.
type TrainingIntensityResult struct {
	RPEDistribution []RPEBand          `json:"rpe_distribution"`
	LimitEffortPct  float64            `json:"limit_effort_pct"`
	TotalClimbs     int                `json:"total_climbs"`
	Grades          []GradeSummary     `json:"grades"`
	Progression     []GradeProgression `json:"progression,omitempty"`
}

// GetTrainingIntensity returns the RPE distribution, per-grade pyramid and,
// when angleFilter is set, the per-session max grade on that wall angle.
func (db *DB) GetTrainingIntensity(ctx context.Context, start, end time.Time, userID int, angleFilter string) (*TrainingIntensityResult, error) {
	result := &TrainingIntensityResult{}

	bandRows, err := db.Pool.Query(ctx,
		`SELECT band, rpe_range, climbs FROM (
			SELECT
				CASE
					WHEN rpe >= 9.5 THEN 'limit'
					WHEN rpe >= 8 THEN 'hard'
					WHEN rpe >= 6 THEN 'moderate'
					WHEN rpe >= 4 THEN 'easy'
					ELSE 'very_easy'
				END AS band,
				CASE
					WHEN rpe >= 9.5 THEN '9.5-10'
					WHEN rpe >= 8 THEN '8-9'
					WHEN rpe >= 6 THEN '6-7.5'
					WHEN rpe >= 4 THEN '4-5.5'
					ELSE '<4'
				END AS rpe_range,
				COUNT(*)::int AS climbs
			FROM climbs
			WHERE climbed_at >= $1 AND climbed_at < $2 AND user_id = $3
			GROUP BY band, rpe_range
		) sub
		ORDER BY CASE band
			WHEN 'limit' THEN 1
			WHEN 'hard' THEN 2
			WHEN 'moderate' THEN 3
			WHEN 'easy' THEN 4
			WHEN 'very_easy' THEN 5
		END`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying RPE distribution: %w", err)
	}
	defer bandRows.Close()

	var total, hard int
	for bandRows.Next() {
		var b RPEBand
		if err := bandRows.Scan(&b.Band, &b.RPERange, &b.Climbs); err != nil {
			return nil, fmt.Errorf("scanning RPE band: %w", err)
		}
		total += b.Climbs
		if b.Band == "limit" || b.Band == "hard" {
			hard += b.Climbs
		}
		result.RPEDistribution = append(result.RPEDistribution, b)
	}
	if err := bandRows.Err(); err != nil {
		return nil, err
	}

	result.TotalClimbs = total
	for i := range result.RPEDistribution {
		if total > 0 {
			result.RPEDistribution[i].Pct = float64(result.RPEDistribution[i].Climbs) / float64(total) * 100
		}
	}
	if total > 0 {
		result.LimitEffortPct = float64(hard) / float64(total) * 100
	}

	gradeRows, err := db.Pool.Query(ctx,
		`SELECT difficulty,
		        COUNT(*)::int,
		        COALESCE(SUM(attempts), 0)::int,
		        COUNT(*) FILTER (WHERE attempts = 1)::int,
		        AVG(rpe)::float8
		 FROM climbs
		 WHERE climbed_at >= $1 AND climbed_at < $2 AND user_id = $3
		 GROUP BY difficulty
		 ORDER BY difficulty DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying grade summary: %w", err)
	}
	defer gradeRows.Close()

	for gradeRows.Next() {
		var d int
		var g GradeSummary
		if err := gradeRows.Scan(&d, &g.Climbs, &g.Attempts, &g.Flashes, &g.AvgRPE); err != nil {
			return nil, fmt.Errorf("scanning grade summary: %w", err)
		}
		g.Grade = models.FormatGrade(d)
		if g.Climbs > 0 {
			g.FlashRate = float64(g.Flashes) / float64(g.Climbs) * 100
		}
		result.Grades = append(result.Grades, g)
	}
	if err := gradeRows.Err(); err != nil {
		return nil, err
	}

	if angleFilter != "" {
		progRows, err := db.Pool.Query(ctx,
			`SELECT s.start_time::date,
			        MAX(c.difficulty)::int,
			        COUNT(*)::int,
			        AVG(c.rpe)::float8
			 FROM climbs c
			 JOIN climb_sessions s ON s.id = c.session_id
			 WHERE s.start_time >= $1 AND s.start_time < $2
			   AND c.user_id = $3
			   AND c.wall_angle = $4
			 GROUP BY s.start_time::date
			 ORDER BY s.start_time::date ASC`,
			start, end, userID, angleFilter)
		if err != nil {
			return nil, fmt.Errorf("querying grade progression: %w", err)
		}
		defer progRows.Close()

		for progRows.Next() {
			var p GradeProgression
			var d time.Time
			var maxDiff int
			if err := progRows.Scan(&d, &maxDiff, &p.Climbs, &p.AvgRPE); err != nil {
				return nil, fmt.Errorf("scanning grade progression: %w", err)
			}
			p.Date = d.Format("2006-01-02")
			p.MaxGrade = models.FormatGrade(maxDiff)
			result.Progression = append(result.Progression, p)
		}
		if err := progRows.Err(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
