package metrics

import (
	"sort"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// Window is a half-open interval [now-Duration, now).
type Window struct {
	Name     string
	Duration time.Duration
}

// Contains reports whether t falls inside the window ending at now.
func (w Window) Contains(t, now time.Time) bool {
	return !t.Before(now.Add(-w.Duration)) && t.Before(now)
}

// Days returns the window length in days.
func (w Window) Days() float64 {
	return w.Duration.Hours() / 24
}

// Validation is the cleaned history plus what was thrown away.
type Validation struct {
	Sessions        []models.Session
	DroppedSessions int
	DroppedClimbs   int
}

// Validate drops malformed sessions and climbs and returns the survivors
// sorted by start time. The input slice and its sessions are not modified.
func Validate(sessions []models.Session) Validation {
	var v Validation
	for _, s := range sessions {
		if s.StartTime.IsZero() || (!s.EndTime.IsZero() && s.EndTime.Before(s.StartTime)) {
			v.DroppedSessions++
			v.DroppedClimbs += len(s.Climbs)
			continue
		}
		climbs := make([]models.Climb, 0, len(s.Climbs))
		for _, c := range s.Climbs {
			if !c.Valid() {
				v.DroppedClimbs++
				continue
			}
			climbs = append(climbs, c)
		}
		if len(climbs) == 0 {
			v.DroppedSessions++
			continue
		}
		s.Climbs = climbs
		v.Sessions = append(v.Sessions, s)
	}
	sort.SliceStable(v.Sessions, func(i, j int) bool {
		return v.Sessions[i].StartTime.Before(v.Sessions[j].StartTime)
	})
	return v
}

// WindowStats aggregates the sessions that started inside one window.
type WindowStats struct {
	Window         string           `json:"window"`
	Start          time.Time        `json:"start"`
	End            time.Time        `json:"end"`
	Sessions       []models.Session `json:"-"`
	SessionCount   int              `json:"session_count"`
	ClimbCount     int              `json:"climb_count"`
	AttemptCount   int              `json:"attempt_count"`
	FlashCount     int              `json:"flash_count"`
	Volume         float64          `json:"rpe_volume"`
	GradeVolume    float64          `json:"grade_volume"`
	AvgRPE         float64          `json:"avg_rpe"`
	GradeHistogram map[int]int      `json:"grade_histogram"`
}

// Summarize validates sessions and aggregates the ones inside w.
func Summarize(sessions []models.Session, w Window, now time.Time) WindowStats {
	return summarize(Validate(sessions).Sessions, w, now)
}

// summarize expects validated sessions.
func summarize(valid []models.Session, w Window, now time.Time) WindowStats {
	st := WindowStats{
		Window:         w.Name,
		Start:          now.Add(-w.Duration),
		End:            now,
		GradeHistogram: make(map[int]int),
	}
	for _, s := range valid {
		if !w.Contains(s.StartTime, now) {
			continue
		}
		st.Sessions = append(st.Sessions, s)
		st.SessionCount++
		for _, c := range s.Climbs {
			d, _ := c.Difficulty()
			st.ClimbCount++
			st.AttemptCount += c.Attempts
			if c.IsFlash() {
				st.FlashCount++
			}
			st.Volume += c.RPE
			st.GradeVolume += float64(d + 1)
			st.GradeHistogram[d]++
		}
	}
	if st.ClimbCount > 0 {
		st.AvgRPE = st.Volume / float64(st.ClimbCount)
	}
	return st
}

// MedianGrade returns the lower median difficulty of the window's climbs.
func (st WindowStats) MedianGrade() (int, bool) {
	if st.ClimbCount == 0 {
		return 0, false
	}
	grades := make([]int, 0, len(st.GradeHistogram))
	for g := range st.GradeHistogram {
		grades = append(grades, g)
	}
	sort.Ints(grades)
	target := (st.ClimbCount + 1) / 2
	seen := 0
	for _, g := range grades {
		seen += st.GradeHistogram[g]
		if seen >= target {
			return g, true
		}
	}
	return grades[len(grades)-1], true
}

// MedianSessionVolume returns the median number of climbs per session.
func (st WindowStats) MedianSessionVolume() (int, bool) {
	if st.SessionCount == 0 {
		return 0, false
	}
	counts := make([]int, 0, len(st.Sessions))
	for _, s := range st.Sessions {
		counts = append(counts, s.ClimbCount())
	}
	sort.Ints(counts)
	n := len(counts)
	if n%2 == 1 {
		return counts[n/2], true
	}
	return (counts[n/2-1] + counts[n/2] + 1) / 2, true
}

// before returns the prefix of sorted sessions that started before now.
func before(sorted []models.Session, now time.Time) []models.Session {
	i := sort.Search(len(sorted), func(i int) bool {
		return !sorted[i].StartTime.Before(now)
	})
	return sorted[:i]
}

// startGaps returns the gaps between consecutive session starts.
func startGaps(sorted []models.Session) []time.Duration {
	if len(sorted) < 2 {
		return nil
	}
	gaps := make([]time.Duration, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].StartTime.Sub(sorted[i-1].StartTime))
	}
	return gaps
}

// typicalGap is the median of the most recent inter-session gaps.
func typicalGap(history []models.Session) time.Duration {
	gaps := startGaps(history)
	if len(gaps) > typicalGapSamples {
		gaps = gaps[len(gaps)-typicalGapSamples:]
	}
	if len(gaps) == 0 {
		return DefaultTypicalGap
	}
	sorted := append([]time.Duration(nil), gaps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if median <= 0 {
		return DefaultTypicalGap
	}
	return median
}
