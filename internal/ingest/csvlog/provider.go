package csvlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/chalkline/internal/ingest"
	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
)

// SessionStore is the part of the database the provider writes to.
type SessionStore interface {
	ReplaceSessions(ctx context.Context, userID int, sessions []models.Session, source string) (storage.ReplaceResult, error)
}

// Source labels sessions imported through this provider.
const Source = "csv"

// Provider processes climbing log CSV exports.
type Provider struct {
	db  SessionStore
	log *slog.Logger
	loc *time.Location
}

// NewProvider creates a new CSV log ingest provider. Session times are read in
// loc (UTC when nil).
func NewProvider(db SessionStore, log *slog.Logger, loc *time.Location) *Provider {
	return &Provider{db: db, log: log, loc: loc}
}

// Ingest parses an export and stores its sessions. Sessions that start at the
// same instant as an existing one replace it, so re-imports always reflect the
// latest parser output. The replacement is atomic: on error the user's stored
// sessions are unchanged.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	parsed, err := Parse(r, p.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(parsed)}
	var sessions []models.Session

	for _, ps := range parsed {
		result.ClimbsReceived += len(ps.Climbs)
		s, rejected := ingest.Sanitize(ps.ToModel())
		result.ClimbsRejected += rejected
		if len(s.Climbs) == 0 {
			result.SessionsSkipped++
			p.log.Warn("skipping session without valid climbs", "name", s.Name, "start", s.StartTime)
			continue
		}
		s.ID = ingest.SessionID(userID, s.StartTime)
		sessions = append(sessions, s)
	}

	rep, err := p.db.ReplaceSessions(ctx, userID, sessions, Source)
	if err != nil {
		return nil, fmt.Errorf("storing sessions: %w", err)
	}
	result.SessionsReplaced = int(rep.Replaced)
	result.SessionsInserted = rep.Inserted
	result.ClimbsInserted = rep.ClimbsInserted

	if result.ClimbsRejected > 0 {
		result.Message = fmt.Sprintf("%d climb(s) rejected as malformed", result.ClimbsRejected)
	}
	p.log.Info("csv ingest",
		"user_id", userID,
		"sessions", result.SessionsInserted,
		"replaced", result.SessionsReplaced,
		"climbs", result.ClimbsInserted,
		"rejected", result.ClimbsRejected,
	)
	return result, nil
}
