package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClimbSessionRow is a row ready for insertion into the climb_sessions table.
type ClimbSessionRow struct {
	ID        uuid.UUID
	UserID    int
	Name      string
	Location  string
	Source    string
	StartTime time.Time
	EndTime   time.Time
}

// ClimbRow is a row for the climbs table. Seq preserves the logged order.
type ClimbRow struct {
	SessionID  uuid.UUID
	UserID     int
	Seq        int
	Grade      string
	Difficulty int
	WallAngle  string
	Style      string
	RPE        float64
	Attempts   int
	ClimbedAt  time.Time
}

// ScoreSnapshotRow is a persisted engine result for one user at one instant.
type ScoreSnapshotRow struct {
	UserID         int             `json:"user_id"`
	ComputedAt     time.Time       `json:"computed_at"`
	Status         string          `json:"status"`
	Score          *int            `json:"score"`
	Zone           string          `json:"zone,omitempty"`
	Confidence     float64         `json:"confidence"`
	LoadRatio      *float64        `json:"load_ratio"`
	LoadZone       string          `json:"load_zone"`
	LoadAvailable  bool            `json:"load_available"`
	Recommendation json.RawMessage `json:"recommendation"`
}

// SessionRows splits a session into its table rows.
func SessionRows(s Session, userID int, source string) (ClimbSessionRow, []ClimbRow) {
	row := ClimbSessionRow{
		ID:        s.ID,
		UserID:    userID,
		Name:      s.Name,
		Location:  s.Location,
		Source:    source,
		StartTime: s.StartTime,
		EndTime:   s.Finished(),
	}
	climbs := make([]ClimbRow, 0, len(s.Climbs))
	for i, c := range s.Climbs {
		d, _ := c.Difficulty()
		at := c.Timestamp
		if at.IsZero() {
			at = s.StartTime
		}
		climbs = append(climbs, ClimbRow{
			SessionID:  s.ID,
			UserID:     userID,
			Seq:        i + 1,
			Grade:      c.Grade,
			Difficulty: d,
			WallAngle:  string(c.WallAngle),
			Style:      string(c.Style),
			RPE:        c.RPE,
			Attempts:   c.Attempts,
			ClimbedAt:  at,
		})
	}
	return row, climbs
}
