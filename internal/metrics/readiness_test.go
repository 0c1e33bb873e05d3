package metrics

import (
	"testing"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// TestZoneForScoreBoundaries verifies that zone boundaries are exact.
func TestZoneForScoreBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  ReadinessZone
	}{
		{100, ZoneOptimal},
		{77, ZoneOptimal},
		{76, ZoneBalanced},
		{45, ZoneBalanced},
		{44, ZoneLimited},
		{0, ZoneLimited},
	}
	for _, tt := range tests {
		if got := ZoneForScore(tt.score); got != tt.want {
			t.Errorf("ZoneForScore(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

// TestStatusForSessions verifies the availability gating and confidence.
func TestStatusForSessions(t *testing.T) {
	tests := []struct {
		n          int
		want       ReadinessStatus
		confidence float64
	}{
		{0, StatusBuilding, 0},
		{2, StatusBuilding, 0.4},
		{3, StatusCalibrating, 0.6},
		{4, StatusCalibrating, 0.8},
		{5, StatusCalibrated, 1},
		{40, StatusCalibrated, 1},
	}
	for _, tt := range tests {
		got, conf := StatusForSessions(tt.n)
		if got != tt.want || conf != tt.confidence {
			t.Errorf("StatusForSessions(%d) = %q, %v, want %q, %v", tt.n, got, conf, tt.want, tt.confidence)
		}
	}
}

// TestReadinessGating verifies that 2 sessions hide the score and 5 sessions
// calibrate it.
func TestReadinessGating(t *testing.T) {
	e := New(DefaultOptions())

	var sessions []models.Session
	for i := range 5 {
		sessions = append(sessions, sessionAt(time.Duration(2*i+1)*day, climbs(10, "V3", 6)))
	}

	r := e.Readiness(sessions[:2], refNow)
	if r.Status != StatusBuilding {
		t.Errorf("2 sessions: status = %q, want %q", r.Status, StatusBuilding)
	}
	if r.Score != nil {
		t.Errorf("2 sessions: score = %d, want nil", *r.Score)
	}
	if r.Zone != "" {
		t.Errorf("2 sessions: zone = %q, want empty", r.Zone)
	}
	if r.Message == "" {
		t.Error("2 sessions: expected a message")
	}

	r = e.Readiness(sessions[:3], refNow)
	if r.Status != StatusCalibrating || r.Score == nil {
		t.Errorf("3 sessions: status = %q, score = %v", r.Status, r.Score)
	}

	r = e.Readiness(sessions, refNow)
	if r.Status != StatusCalibrated {
		t.Errorf("5 sessions: status = %q, want %q", r.Status, StatusCalibrated)
	}
	if r.Score == nil {
		t.Fatal("5 sessions: score = nil")
	}
	if *r.Score < 0 || *r.Score > 100 {
		t.Errorf("5 sessions: score = %d out of range", *r.Score)
	}
	if r.Zone != ZoneForScore(*r.Score) {
		t.Errorf("zone = %q for score %d", r.Zone, *r.Score)
	}
}

// TestReadinessIgnoresFutureSessions verifies that sessions starting at or
// after now do not count.
func TestReadinessIgnoresFutureSessions(t *testing.T) {
	e := New(DefaultOptions())
	sessions := []models.Session{
		sessionAt(3*day, climbs(5, "V2", 6)),
		sessionAt(2*day, climbs(5, "V2", 6)),
		sessionAt(0, climbs(5, "V2", 6)),
		sessionAt(-day, climbs(5, "V2", 6)),
	}
	r := e.Readiness(sessions, refNow)
	if r.Status != StatusBuilding {
		t.Errorf("status = %q, want %q", r.Status, StatusBuilding)
	}
}

// TestReadinessMonotoneInRest verifies that more rest never lowers the score
// while window membership stays the same.
func TestReadinessMonotoneInRest(t *testing.T) {
	e := New(DefaultOptions())
	var sessions []models.Session
	for _, d := range []int{1, 8, 15, 22, 29, 36} {
		sessions = append(sessions, sessionAt(time.Duration(d)*day, climbs(15, "V3", 8)))
	}

	prev := -1
	for h := 0; h <= 20; h++ {
		now := refNow.Add(time.Duration(h) * time.Hour)
		r := e.Readiness(sessions, now)
		if r.Score == nil {
			t.Fatalf("score nil at +%dh", h)
		}
		if *r.Score < prev {
			t.Errorf("score dropped at +%dh: %d < %d", h, *r.Score, prev)
		}
		prev = *r.Score
	}
}

// TestRecoveryFactor verifies neutral, zero and saturated recovery.
func TestRecoveryFactor(t *testing.T) {
	if got := recoveryFactor(nil, refNow); got != neutralFactor {
		t.Errorf("no history = %v, want %v", got, neutralFactor)
	}

	history := Validate([]models.Session{
		sessionAt(4*day, climbs(1, "V1", 5)),
		sessionAt(2*day, climbs(1, "V1", 5)),
	}).Sessions
	// typical gap 48h, last session ended 46h ago
	got := recoveryFactor(history, refNow)
	want := 46.0 / 48 / RecoverySaturation * 100
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("recoveryFactor = %v, want %v", got, want)
	}

	if got := recoveryFactor(history, refNow.Add(10*day)); got != 100 {
		t.Errorf("saturated recoveryFactor = %v, want 100", got)
	}
	if got := recoveryFactor(history, history[1].EndTime.Add(-time.Minute)); got != 0 {
		t.Errorf("mid-session recoveryFactor = %v, want 0", got)
	}
}

// TestIntensityFactor verifies the RPE mapping and the rest relief.
func TestIntensityFactor(t *testing.T) {
	tests := []struct {
		name string
		rpe  float64
		rest time.Duration
		want float64
	}{
		{"max effort no rest", 10, 0, 0},
		{"max effort half relief", 10, 24 * time.Hour, 25},
		{"max effort full relief", 10, 72 * time.Hour, 50},
		{"easiest", 1, 0, 100},
		{"mid", 5.5, 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := WindowStats{ClimbCount: 1, AvgRPE: tt.rpe}
			if got := intensityFactor(st, tt.rest); got != tt.want {
				t.Errorf("intensityFactor(%v, %v) = %v, want %v", tt.rpe, tt.rest, got, tt.want)
			}
		})
	}
	if got := intensityFactor(WindowStats{}, 0); got != 100 {
		t.Errorf("empty window = %v, want 100", got)
	}
}

// TestConsistencyFactor verifies even spacing, neutral and long-gap cases.
func TestConsistencyFactor(t *testing.T) {
	even := Validate([]models.Session{
		sessionAt(9*day, climbs(1, "V1", 5)),
		sessionAt(6*day, climbs(1, "V1", 5)),
		sessionAt(3*day, climbs(1, "V1", 5)),
	}).Sessions
	if got := consistencyFactor(even); got != 100 {
		t.Errorf("even spacing = %v, want 100", got)
	}
	if got := consistencyFactor(even[:2]); got != neutralFactor {
		t.Errorf("two sessions = %v, want %v", got, neutralFactor)
	}

	uneven := Validate([]models.Session{
		sessionAt(27*day, climbs(1, "V1", 5)),
		sessionAt(26*day, climbs(1, "V1", 5)),
		sessionAt(2*day, climbs(1, "V1", 5)),
		sessionAt(1*day, climbs(1, "V1", 5)),
	}).Sessions
	if got := consistencyFactor(uneven); got >= consistencyFactor(even) {
		t.Errorf("uneven spacing = %v, want less than even", got)
	}
	if got := consistencyFactor(uneven); got < 0 {
		t.Errorf("consistency = %v, want >= 0", got)
	}
}
