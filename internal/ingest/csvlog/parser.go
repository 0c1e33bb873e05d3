// Package csvlog reads the semicolon separated session logs exported by
// climbing logbook apps.
package csvlog

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/claude/chalkline/internal/models"
)

var (
	// sessionHeaderRe matches: "Evening session · The Arch";"2026-02-19 18:30";"1:45 hr"
	sessionHeaderRe = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d+)(?:\s+h)?";"(.*)"$`)

	// climbRowRe matches: 1;V4;overhang;powerful;7,5;3
	climbRowRe = regexp.MustCompile(`^(\d+);([^;]+);([^;]*);([^;]*);([^;]+);(\d+)$`)

	// columnHeaderRe matches: #;GRADE;ANGLE;STYLE;RPE;ATTEMPTS
	columnHeaderRe = regexp.MustCompile(`^#;GRADE;ANGLE;STYLE;RPE;ATTEMPTS$`)

	// durationRe matches "1:45 hr", "0:50 hr" and "50 min".
	durationRe = regexp.MustCompile(`^(?:(\d+):(\d{2})\s*hr?|(\d+)\s*min)$`)
)

// Session is one parsed session block. Climbs keep their row order; nothing is
// validated here beyond the row shape.
type Session struct {
	Name     string
	Location string
	Start    time.Time
	Duration time.Duration
	Climbs   []models.Climb
}

// ToModel converts the block to a domain session without an ID.
func (s Session) ToModel() models.Session {
	m := models.Session{
		Name:      s.Name,
		Location:  s.Location,
		StartTime: s.Start,
		Climbs:    s.Climbs,
	}
	if s.Duration > 0 {
		m.EndTime = s.Start.Add(s.Duration)
	}
	return m
}

// Parse reads a log export. Times are interpreted in loc, or UTC when loc is nil.
func Parse(r io.Reader, loc *time.Location) ([]Session, error) {
	if loc == nil {
		loc = time.UTC
	}
	scanner := bufio.NewScanner(r)
	var sessions []Session
	var current *Session

	flush := func() {
		if current != nil {
			sessions = append(sessions, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Blank line = session boundary
		if line == "" {
			flush()
			continue
		}

		if columnHeaderRe.MatchString(strings.ToUpper(line)) {
			continue
		}

		if m := sessionHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			start, err := parseSessionStart(m[2], loc)
			if err != nil {
				return nil, fmt.Errorf("parsing session start %q: %w", m[2], err)
			}
			name, location := splitNameLocation(m[1])
			current = &Session{
				Name:     name,
				Location: location,
				Start:    start,
				Duration: parseDuration(m[3]),
			}
			continue
		}

		if m := climbRowRe.FindStringSubmatch(line); m != nil {
			if current == nil {
				return nil, fmt.Errorf("climb without session: %q", line)
			}
			attempts, _ := strconv.Atoi(m[6])
			current.Climbs = append(current.Climbs, models.Climb{
				Grade:     strings.TrimSpace(m[2]),
				WallAngle: models.ParseWallAngle(m[3]),
				Style:     models.Style(strings.ToLower(strings.TrimSpace(m[4]))),
				RPE:       parseEuropeanFloat(m[5]),
				Attempts:  attempts,
				Timestamp: current.Start,
			})
			continue
		}

		// Unknown line, e.g. notes: skip.
	}
	flush()

	return sessions, scanner.Err()
}

// parseSessionStart parses "2026-02-19 18:30" or "2026-02-19 6:30".
func parseSessionStart(s string, loc *time.Location) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04"} {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// splitNameLocation splits "Evening session · The Arch" into name and location.
func splitNameLocation(s string) (name, location string) {
	parts := strings.Split(s, " · ")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[len(parts)-1])
	}
	return strings.TrimSpace(s), ""
}

// parseDuration returns 0 for anything it does not recognise.
func parseDuration(s string) time.Duration {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	if m[3] != "" {
		mins, _ := strconv.Atoi(m[3])
		return time.Duration(mins) * time.Minute
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute
}

// parseEuropeanFloat converts "7,5" to 7.5. Unparseable input yields 0, which
// later fails climb validation.
func parseEuropeanFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
