package metrics

import (
	"testing"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// TestLoadZoneForBoundaries verifies inclusive and exclusive ratio bounds.
func TestLoadZoneForBoundaries(t *testing.T) {
	tests := []struct {
		ratio float64
		want  LoadZone
	}{
		{0, LoadLow},
		{0.79, LoadLow},
		{0.8, LoadOptimal},
		{1.0, LoadOptimal},
		{1.3, LoadOptimal},
		{1.31, LoadElevated},
		{1.5, LoadElevated},
		{1.51, LoadHigh},
		{3, LoadHigh},
	}
	for _, tt := range tests {
		if got := LoadZoneFor(tt.ratio); got != tt.want {
			t.Errorf("LoadZoneFor(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

// TestParseLoadBasis verifies accepted basis names.
func TestParseLoadBasis(t *testing.T) {
	tests := []struct {
		in      string
		want    LoadBasis
		wantErr bool
	}{
		{"", LoadRPEVolume, false},
		{"rpe_volume", LoadRPEVolume, false},
		{"climb_count", LoadClimbCount, false},
		{"tonnage", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLoadBasis(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLoadBasis(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLoadBasis(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestLoadRatioZeroBaseline verifies the nil sentinel when there is no load.
func TestLoadRatioZeroBaseline(t *testing.T) {
	e := New(DefaultOptions())
	res := e.LoadRatio([]models.Session{sessionAt(40*day, climbs(5, "V2", 6))}, refNow)
	if res.Ratio != nil {
		t.Errorf("Ratio = %v, want nil", *res.Ratio)
	}
	if res.Zone != LoadLow {
		t.Errorf("Zone = %q, want %q", res.Zone, LoadLow)
	}
	if res.Available {
		t.Error("Available = true with one session")
	}
}

// TestLoadRatioSteadyWeeks verifies that one equal session per week gives 1.0.
func TestLoadRatioSteadyWeeks(t *testing.T) {
	var sessions []models.Session
	for _, d := range []int{1, 8, 15, 22, 29, 36} {
		sessions = append(sessions, sessionAt(time.Duration(d)*day, climbs(15, "V3", 6)))
	}
	for _, basis := range []LoadBasis{LoadRPEVolume, LoadClimbCount} {
		t.Run(string(basis), func(t *testing.T) {
			e := New(Options{Weights: DefaultWeights, LoadBasis: basis})
			res := e.LoadRatio(sessions, refNow)
			if res.Ratio == nil || *res.Ratio != 1.0 {
				t.Fatalf("Ratio = %v, want 1.0", res.Ratio)
			}
			if res.Zone != LoadOptimal {
				t.Errorf("Zone = %q, want %q", res.Zone, LoadOptimal)
			}
			if !res.Available {
				t.Error("Available = false with 6 sessions")
			}
			if res.Basis != basis {
				t.Errorf("Basis = %q, want %q", res.Basis, basis)
			}
		})
	}
}

// TestLoadRatioZonesUnrounded verifies zones come from the exact ratio, so
// values just past a boundary are not pulled back into the lower zone.
func TestLoadRatioZonesUnrounded(t *testing.T) {
	tests := []struct {
		recent float64
		want   LoadZone
	}{
		{796, LoadLow},
		{800, LoadOptimal},
		{1300, LoadOptimal},
		{1304, LoadElevated},
		{1500, LoadElevated},
		{1504, LoadHigh},
	}
	for _, tt := range tests {
		res := ratioOf(WindowStats{Volume: tt.recent}, WindowStats{Volume: 4000}, 10, LoadRPEVolume)
		if res.Ratio == nil || *res.Ratio != tt.recent/1000 {
			t.Fatalf("ratio for %v = %v, want %v", tt.recent, res.Ratio, tt.recent/1000)
		}
		if res.Zone != tt.want {
			t.Errorf("zone for ratio %v = %q, want %q", *res.Ratio, res.Zone, tt.want)
		}
	}
}

// TestLoadRatioNonNegative verifies ratio >= 0 for a positive baseline.
func TestLoadRatioNonNegative(t *testing.T) {
	res := ratioOf(WindowStats{}, WindowStats{Volume: 50}, 6, LoadRPEVolume)
	if res.Ratio == nil || *res.Ratio != 0 {
		t.Fatalf("Ratio = %v, want 0", res.Ratio)
	}
	if res.Zone != LoadLow {
		t.Errorf("Zone = %q, want %q", res.Zone, LoadLow)
	}
}
