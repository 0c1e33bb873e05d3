package models

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WallAngle is the steepness of the wall a climb was set on.
type WallAngle string

const (
	WallSlab     WallAngle = "slab"
	WallVertical WallAngle = "vertical"
	WallOverhang WallAngle = "overhang"
)

// ParseWallAngle normalizes a free-form angle label. Unknown labels map to "".
func ParseWallAngle(s string) WallAngle {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slab":
		return WallSlab
	case "vertical", "vert", "face":
		return WallVertical
	case "overhang", "overhanging", "steep", "roof":
		return WallOverhang
	default:
		return ""
	}
}

// Style describes the movement character of a climb. Besides the three known
// values any free-form label is accepted.
type Style string

const (
	StyleSimple    Style = "simple"
	StylePowerful  Style = "powerful"
	StyleTechnical Style = "technical"
)

// Climb is a single logged boulder problem.
type Climb struct {
	Grade     string    `json:"grade"`
	WallAngle WallAngle `json:"wall_angle,omitempty"`
	Style     Style     `json:"style,omitempty"`
	RPE       float64   `json:"rpe"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxGrade is the hardest grade on the V-scale.
const MaxGrade = 17

// ParseGrade converts a V-scale grade ("V5", "v10+", "VB") to its integer
// difficulty. A trailing "+" or "-" is ignored.
func ParseGrade(s string) (int, bool) {
	g := strings.ToUpper(strings.TrimSpace(s))
	g = strings.TrimRight(g, "+-")
	if g == "VB" {
		return 0, true
	}
	if !strings.HasPrefix(g, "V") {
		return 0, false
	}
	n, err := strconv.Atoi(g[1:])
	if err != nil || n < 0 || n > MaxGrade {
		return 0, false
	}
	return n, true
}

// FormatGrade renders a difficulty back to V-scale notation.
func FormatGrade(d int) string {
	if d < 0 {
		d = 0
	}
	if d > MaxGrade {
		d = MaxGrade
	}
	return "V" + strconv.Itoa(d)
}

// RoundRPE rounds a perceived exertion value to the nearest half point.
func RoundRPE(rpe float64) float64 {
	return math.Round(rpe*2) / 2
}

// Difficulty returns the parsed grade of the climb.
func (c Climb) Difficulty() (int, bool) {
	return ParseGrade(c.Grade)
}

// IsFlash reports whether the climb was sent first go.
func (c Climb) IsFlash() bool {
	return c.Attempts == 1
}

// Valid reports whether the climb satisfies the record invariants.
func (c Climb) Valid() bool {
	if c.Attempts < 1 {
		return false
	}
	if math.IsNaN(c.RPE) || c.RPE < 1 || c.RPE > 10 {
		return false
	}
	_, ok := c.Difficulty()
	return ok
}

// Session is one outing at the crag or gym.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Location  string    `json:"location,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Climbs    []Climb   `json:"climbs"`
}

// Finished returns the end of the session, falling back to the start time
// when no end was recorded.
func (s Session) Finished() time.Time {
	if s.EndTime.IsZero() {
		return s.StartTime
	}
	return s.EndTime
}

// ClimbCount returns the number of climbs in the session.
func (s Session) ClimbCount() int {
	return len(s.Climbs)
}

// AverageRPE returns the mean RPE over all climbs, or 0 for an empty session.
func (s Session) AverageRPE() float64 {
	if len(s.Climbs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range s.Climbs {
		sum += c.RPE
	}
	return sum / float64(len(s.Climbs))
}

// MedianGrade returns the median difficulty of the climbs with a parseable
// grade. ok is false when there are none.
func (s Session) MedianGrade() (median int, ok bool) {
	grades := make([]int, 0, len(s.Climbs))
	for _, c := range s.Climbs {
		if d, ok := c.Difficulty(); ok {
			grades = append(grades, d)
		}
	}
	if len(grades) == 0 {
		return 0, false
	}
	sort.Ints(grades)
	// Lower median: grades are ordinal, so never average two of them.
	return grades[(len(grades)-1)/2], true
}

// FlashCount returns how many climbs were sent on the first attempt.
func (s Session) FlashCount() int {
	n := 0
	for _, c := range s.Climbs {
		if c.IsFlash() {
			n++
		}
	}
	return n
}

// UserAggregateCounts holds lifetime totals maintained by the session store.
// ValidSessions only counts sessions that started before the snapshot instant
// and hold at least one valid climb.
type UserAggregateCounts struct {
	TotalSessions int `json:"total_sessions"`
	TotalClimbs   int `json:"total_climbs"`
	ValidSessions int `json:"valid_sessions"`
}
