package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claude/chalkline/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionInfo is a session header without its climbs, as listed by the API.
type SessionInfo struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	Source     string    `json:"source"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ClimbCount int       `json:"climb_count"`
	FlashCount int       `json:"flash_count"`
	AvgRPE     float64   `json:"avg_rpe"`
	MaxGrade   *string   `json:"max_grade,omitempty"`
}

// InsertSession stores a session and its climbs in one transaction.
// Returns false without touching the climbs if the session ID already exists.
func (db *DB) InsertSession(ctx context.Context, s models.Session, userID int, source string) (bool, error) {
	if s.ID == uuid.Nil {
		return false, errors.New("inserting session: missing id")
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	inserted, err := insertSession(ctx, tx, s, userID, source)
	if err != nil || !inserted {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing session: %w", err)
	}
	return true, nil
}

// ReplaceResult reports what ReplaceSessions changed.
type ReplaceResult struct {
	Replaced       int64
	Inserted       int
	ClimbsInserted int64
}

// ReplaceSessions deletes the user's sessions that start at the same instants
// as the given ones and inserts the new sessions. Either everything is
// applied or nothing is.
func (db *DB) ReplaceSessions(ctx context.Context, userID int, sessions []models.Session, source string) (ReplaceResult, error) {
	var res ReplaceResult
	if len(sessions) == 0 {
		return res, nil
	}
	starts := make([]time.Time, len(sessions))
	for i, s := range sessions {
		if s.ID == uuid.Nil {
			return res, errors.New("replacing sessions: missing id")
		}
		starts[i] = s.StartTime
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`DELETE FROM climb_sessions WHERE user_id = $1 AND start_time = ANY($2)`,
		userID, starts)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("deleting sessions by start: %w", err)
	}
	res.Replaced = tag.RowsAffected()

	for _, s := range sessions {
		inserted, err := insertSession(ctx, tx, s, userID, source)
		if err != nil {
			return ReplaceResult{}, fmt.Errorf("session %s: %w", s.StartTime.Format("2006-01-02 15:04"), err)
		}
		if inserted {
			res.Inserted++
			res.ClimbsInserted += int64(len(s.Climbs))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ReplaceResult{}, fmt.Errorf("committing sessions: %w", err)
	}
	return res, nil
}

func insertSession(ctx context.Context, tx pgx.Tx, s models.Session, userID int, source string) (bool, error) {
	row, climbs := models.SessionRows(s, userID, source)

	tag, err := tx.Exec(ctx,
		`INSERT INTO climb_sessions (id, user_id, name, location, source, start_time, end_time)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO NOTHING`,
		row.ID, row.UserID, row.Name, row.Location, row.Source, row.StartTime, row.EndTime)
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if len(climbs) > 0 {
		query, args := climbInsert(climbs)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return false, fmt.Errorf("inserting climbs: %w", err)
		}
	}
	return true, nil
}

// climbInsert builds one multi-row INSERT for the climbs of a session.
func climbInsert(rows []models.ClimbRow) (string, []any) {
	const cols = 10
	query := `INSERT INTO climbs (session_id, user_id, seq, grade, difficulty, wall_angle, style, rpe, attempts, climbed_at) VALUES `
	args := make([]any, 0, len(rows)*cols)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * cols
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args, r.SessionID, r.UserID, r.Seq, r.Grade, r.Difficulty,
			r.WallAngle, r.Style, r.RPE, r.Attempts, r.ClimbedAt)
	}

	return query + strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING", args
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerySessions returns the sessions that started in [start, end), oldest
// first, with their climbs in logged order.
func (db *DB) QuerySessions(ctx context.Context, start, end time.Time, userID int) ([]models.Session, error) {
	return querySessions(ctx, db.Pool, start, end, userID)
}

// LoadSnapshot reads the sessions in [start, end) and the user's counts as of
// end inside one read-only repeatable-read transaction, so a concurrent
// re-import cannot leave sessions without their climbs or counts that
// disagree with the sessions.
func (db *DB) LoadSnapshot(ctx context.Context, start, end time.Time, userID int) ([]models.Session, models.UserAggregateCounts, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, models.UserAggregateCounts{}, fmt.Errorf("beginning snapshot: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sessions, err := querySessions(ctx, tx, start, end, userID)
	if err != nil {
		return nil, models.UserAggregateCounts{}, err
	}
	counts, err := userCounts(ctx, tx, userID, end)
	if err != nil {
		return nil, models.UserAggregateCounts{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, models.UserAggregateCounts{}, fmt.Errorf("committing snapshot: %w", err)
	}
	return sessions, counts, nil
}

func querySessions(ctx context.Context, q querier, start, end time.Time, userID int) ([]models.Session, error) {
	rows, err := q.Query(ctx,
		`SELECT id, name, location, start_time, end_time
		 FROM climb_sessions
		 WHERE start_time >= $1 AND start_time < $2 AND user_id = $3
		 ORDER BY start_time ASC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Location, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	climbRows, err := q.Query(ctx,
		`SELECT c.session_id, c.user_id, c.seq, c.grade, c.difficulty, c.wall_angle, c.style,
		        c.rpe, c.attempts, c.climbed_at
		 FROM climbs c
		 JOIN climb_sessions s ON s.id = c.session_id
		 WHERE s.start_time >= $1 AND s.start_time < $2 AND s.user_id = $3
		 ORDER BY c.session_id, c.seq`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying climbs: %w", err)
	}
	defer climbRows.Close()

	climbs, err := scanClimbRows(climbRows)
	if err != nil {
		return nil, err
	}
	return attachClimbs(sessions, climbs), nil
}

// ListSessions returns session headers in [start, end), newest first.
func (db *DB) ListSessions(ctx context.Context, start, end time.Time, userID, limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.name, s.location, s.source, s.start_time, s.end_time,
		        COUNT(c.seq)::int,
		        COUNT(c.seq) FILTER (WHERE c.attempts = 1)::int,
		        COALESCE(AVG(c.rpe), 0)::float8,
		        MAX(c.difficulty)::int
		 FROM climb_sessions s
		 LEFT JOIN climbs c ON c.session_id = s.id
		 WHERE s.start_time >= $1 AND s.start_time < $2 AND s.user_id = $3
		 GROUP BY s.id
		 ORDER BY s.start_time DESC
		 LIMIT $4`,
		start, end, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var result []SessionInfo
	for rows.Next() {
		var si SessionInfo
		var maxDiff *int
		if err := rows.Scan(&si.ID, &si.Name, &si.Location, &si.Source, &si.StartTime, &si.EndTime,
			&si.ClimbCount, &si.FlashCount, &si.AvgRPE, &maxDiff); err != nil {
			return nil, fmt.Errorf("scanning session info: %w", err)
		}
		if maxDiff != nil {
			g := models.FormatGrade(*maxDiff)
			si.MaxGrade = &g
		}
		result = append(result, si)
	}
	return result, rows.Err()
}

// GetSession retrieves one session with its climbs.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID, userID int) (*models.Session, error) {
	var s models.Session
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, location, start_time, end_time
		 FROM climb_sessions
		 WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&s.ID, &s.Name, &s.Location, &s.StartTime, &s.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT session_id, user_id, seq, grade, difficulty, wall_angle, style, rpe, attempts, climbed_at
		 FROM climbs
		 WHERE session_id = $1 AND user_id = $2
		 ORDER BY seq`,
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("querying session climbs: %w", err)
	}
	defer rows.Close()

	climbs, err := scanClimbRows(rows)
	if err != nil {
		return nil, err
	}
	return &attachClimbs([]models.Session{s}, climbs)[0], nil
}

// DeleteSession removes a session and, by cascade, its climbs.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID, userID int) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM climb_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanClimbRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.ClimbRow, error) {
	var result []models.ClimbRow
	for rows.Next() {
		var c models.ClimbRow
		if err := rows.Scan(&c.SessionID, &c.UserID, &c.Seq, &c.Grade, &c.Difficulty,
			&c.WallAngle, &c.Style, &c.RPE, &c.Attempts, &c.ClimbedAt); err != nil {
			return nil, fmt.Errorf("scanning climb: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// attachClimbs distributes climb rows onto their sessions, keeping row order.
func attachClimbs(sessions []models.Session, rows []models.ClimbRow) []models.Session {
	idx := make(map[uuid.UUID]int, len(sessions))
	for i, s := range sessions {
		idx[s.ID] = i
	}
	for _, r := range rows {
		i, ok := idx[r.SessionID]
		if !ok {
			continue
		}
		sessions[i].Climbs = append(sessions[i].Climbs, models.Climb{
			Grade:     r.Grade,
			WallAngle: models.WallAngle(r.WallAngle),
			Style:     models.Style(r.Style),
			RPE:       r.RPE,
			Attempts:  r.Attempts,
			Timestamp: r.ClimbedAt,
		})
	}
	return sessions
}
