package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// GetOrCreateUser finds or creates a user by Tailscale login name.
// Returns the user ID. Updates last_seen and display_name on each call.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
		RETURNING id
	`, login, displayName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", login, err)
	}
	return id, nil
}

// ListUserIDs returns the IDs of all users that have logged at least one session.
func (db *DB) ListUserIDs(ctx context.Context) ([]int, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT DISTINCT user_id FROM climb_sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// userCounts returns lifetime totals for a user. ValidSessions counts the
// sessions started before end that hold at least one climb. Every write path
// sanitizes climbs, so a stored climb is a valid one.
func userCounts(ctx context.Context, q querier, userID int, end time.Time) (models.UserAggregateCounts, error) {
	var c models.UserAggregateCounts
	err := q.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM climb_sessions WHERE user_id = $1)::int,
			(SELECT COUNT(*) FROM climbs WHERE user_id = $1)::int,
			(SELECT COUNT(*) FROM climb_sessions s
			  WHERE s.user_id = $1 AND s.start_time < $2
			    AND EXISTS (SELECT 1 FROM climbs c WHERE c.session_id = s.id))::int`,
		userID, end).Scan(&c.TotalSessions, &c.TotalClimbs, &c.ValidSessions)
	if err != nil {
		return c, fmt.Errorf("counting user data: %w", err)
	}
	return c, nil
}
