package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/claude/chalkline/internal/models"
	"github.com/google/uuid"
)

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int `json:"sessions_received"`
	SessionsInserted int `json:"sessions_inserted"`
	SessionsReplaced int `json:"sessions_replaced"`
	SessionsSkipped  int `json:"sessions_skipped"`

	ClimbsReceived int   `json:"climbs_received"`
	ClimbsInserted int64 `json:"climbs_inserted"`
	ClimbsRejected int   `json:"climbs_rejected"`

	Message string `json:"message,omitempty"`
}

// sessionNamespace scopes derived session IDs.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chalkline/session"))

// SessionID derives a stable ID from the owner and start time, so importing
// the same log twice yields the same session.
func SessionID(userID int, start time.Time) uuid.UUID {
	key := strconv.Itoa(userID) + "|" + start.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(sessionNamespace, []byte(key))
}

// Sanitize normalizes a session for storage: it trims labels, rounds RPE to
// half points and drops climbs that cannot be stored. It returns the cleaned
// session and the number of rejected climbs.
func Sanitize(s models.Session) (models.Session, int) {
	s.Name = strings.TrimSpace(s.Name)
	s.Location = strings.TrimSpace(s.Location)
	if !s.EndTime.IsZero() && s.EndTime.Before(s.StartTime) {
		s.EndTime = time.Time{}
	}

	climbs := make([]models.Climb, 0, len(s.Climbs))
	rejected := 0
	for _, c := range s.Climbs {
		c.Grade = strings.ToUpper(strings.TrimSpace(c.Grade))
		c.Style = models.Style(strings.ToLower(strings.TrimSpace(string(c.Style))))
		if !c.Valid() {
			rejected++
			continue
		}
		c.RPE = models.RoundRPE(c.RPE)
		if c.Timestamp.IsZero() {
			c.Timestamp = s.StartTime
		}
		climbs = append(climbs, c)
	}
	s.Climbs = climbs
	return s, rejected
}
