package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/models"
)

// MaxWeeks caps WeeklySummary requests.
const MaxWeeks = 52

// WeekSummary holds the totals of one ISO week.
type WeekSummary struct {
	Week        string    `json:"week"`
	Start       time.Time `json:"start"`
	Sessions    int       `json:"sessions"`
	Climbs      int       `json:"climbs"`
	Flashes     int       `json:"flashes"`
	RPEVolume   float64   `json:"rpe_volume"`
	AvgRPE      float64   `json:"avg_rpe"`
	MaxGrade    string    `json:"max_grade,omitempty"`
	MedianGrade string    `json:"median_grade,omitempty"`
}

// WeeklySummary returns the last weeks ISO weeks including the current one,
// oldest first. Weeks without sessions are included with zero totals.
func (s *Service) WeeklySummary(ctx context.Context, userID, weeks int) ([]WeekSummary, error) {
	weeks = min(max(weeks, 1), MaxWeeks)
	now := s.now().UTC()
	from := weekStart(now).AddDate(0, 0, -7*(weeks-1))
	sessions, err := s.store.QuerySessions(ctx, from, now, userID)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	return bucketWeeks(sessions, from, weeks), nil
}

// weekStart returns Monday 00:00 UTC of the ISO week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}

func bucketWeeks(sessions []models.Session, from time.Time, weeks int) []WeekSummary {
	out := make([]WeekSummary, weeks)
	for i := range out {
		start := from.AddDate(0, 0, 7*i)
		year, week := start.ISOWeek()
		out[i] = WeekSummary{Week: fmt.Sprintf("%d-W%02d", year, week), Start: start}
	}

	grades := make([][]int, weeks)
	for _, sess := range metrics.Validate(sessions).Sessions {
		if sess.StartTime.Before(from) {
			continue
		}
		i := int(sess.StartTime.Sub(from) / (7 * 24 * time.Hour))
		if i >= weeks {
			continue
		}
		w := &out[i]
		w.Sessions++
		for _, c := range sess.Climbs {
			w.Climbs++
			w.RPEVolume += c.RPE
			if c.IsFlash() {
				w.Flashes++
			}
			d, _ := c.Difficulty()
			grades[i] = append(grades[i], d)
		}
	}

	for i := range out {
		w := &out[i]
		if w.Climbs == 0 {
			continue
		}
		w.AvgRPE = w.RPEVolume / float64(w.Climbs)
		g := grades[i]
		sort.Ints(g)
		w.MaxGrade = models.FormatGrade(g[len(g)-1])
		w.MedianGrade = models.FormatGrade(g[(len(g)-1)/2])
	}
	return out
}
