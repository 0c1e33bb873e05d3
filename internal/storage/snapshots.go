package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// InsertScoreSnapshot stores an engine result. A second snapshot for the same
// user and instant overwrites the first.
func (db *DB) InsertScoreSnapshot(ctx context.Context, row models.ScoreSnapshotRow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO readiness_snapshots (user_id, computed_at, status, score, zone, confidence,
		 load_ratio, load_zone, load_available, recommendation)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (user_id, computed_at) DO UPDATE SET
		 status = EXCLUDED.status, score = EXCLUDED.score, zone = EXCLUDED.zone,
		 confidence = EXCLUDED.confidence, load_ratio = EXCLUDED.load_ratio,
		 load_zone = EXCLUDED.load_zone, load_available = EXCLUDED.load_available,
		 recommendation = EXCLUDED.recommendation`,
		row.UserID, row.ComputedAt, row.Status, row.Score, row.Zone, row.Confidence,
		row.LoadRatio, row.LoadZone, row.LoadAvailable, row.Recommendation)
	if err != nil {
		return fmt.Errorf("inserting score snapshot: %w", err)
	}
	return nil
}

// QueryScoreSnapshots returns snapshots computed in [start, end), newest first.
func (db *DB) QueryScoreSnapshots(ctx context.Context, start, end time.Time, userID, limit int) ([]models.ScoreSnapshotRow, error) {
	if limit <= 0 {
		limit = 90
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT user_id, computed_at, status, score, zone, confidence,
		 load_ratio, load_zone, load_available, recommendation
		 FROM readiness_snapshots
		 WHERE computed_at >= $1 AND computed_at < $2 AND user_id = $3
		 ORDER BY computed_at DESC
		 LIMIT $4`,
		start, end, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying score snapshots: %w", err)
	}
	defer rows.Close()

	var result []models.ScoreSnapshotRow
	for rows.Next() {
		var r models.ScoreSnapshotRow
		if err := rows.Scan(&r.UserID, &r.ComputedAt, &r.Status, &r.Score, &r.Zone, &r.Confidence,
			&r.LoadRatio, &r.LoadZone, &r.LoadAvailable, &r.Recommendation); err != nil {
			return nil, fmt.Errorf("scanning score snapshot: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
