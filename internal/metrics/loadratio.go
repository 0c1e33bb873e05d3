package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// LoadZone is the risk tier of a load ratio.
type LoadZone string

const (
	LoadLow      LoadZone = "low"
	LoadOptimal  LoadZone = "optimal"
	LoadElevated LoadZone = "elevated"
	LoadHigh     LoadZone = "high"
)

// LoadBasis selects the scalar used as training load.
type LoadBasis string

const (
	// LoadRPEVolume sums the RPE of every climb.
	LoadRPEVolume LoadBasis = "rpe_volume"
	// LoadClimbCount counts climbs.
	LoadClimbCount LoadBasis = "climb_count"
)

// ParseLoadBasis validates a configured basis. Empty selects LoadRPEVolume.
func ParseLoadBasis(s string) (LoadBasis, error) {
	switch LoadBasis(s) {
	case "", LoadRPEVolume:
		return LoadRPEVolume, nil
	case LoadClimbCount:
		return LoadClimbCount, nil
	default:
		return "", fmt.Errorf("unknown load basis %q", s)
	}
}

// Of returns the load of one window under this basis.
func (b LoadBasis) Of(st WindowStats) float64 {
	if b == LoadClimbCount {
		return float64(st.ClimbCount)
	}
	return st.Volume
}

// LoadRatioResult compares the recent week with the 4-week baseline rate.
// Ratio is nil when the baseline has no load at all; the zone then falls
// back to LoadLow. Available is false until the history is long enough for
// the ratio to be shown as ground truth.
type LoadRatioResult struct {
	Ratio        *float64  `json:"ratio"`
	Zone         LoadZone  `json:"zone"`
	Available    bool      `json:"available"`
	Basis        LoadBasis `json:"basis"`
	RecentLoad   float64   `json:"recent_load"`
	BaselineLoad float64   `json:"baseline_load"`
}

// LoadZoneFor maps a ratio to its zone. Both ends of the optimal band and
// the upper end of the elevated band are inclusive.
func LoadZoneFor(ratio float64) LoadZone {
	switch {
	case ratio < LoadOptimalMin:
		return LoadLow
	case ratio <= LoadOptimalMax:
		return LoadOptimal
	case ratio <= LoadElevatedMax:
		return LoadElevated
	default:
		return LoadHigh
	}
}

func (e *Engine) loadRatio(valid []models.Session, now time.Time) LoadRatioResult {
	history := before(valid, now)
	recent := summarize(history, RecentWindow, now)
	baseline := summarize(history, BaselineWindow, now)
	return ratioOf(recent, baseline, len(history), e.opts.LoadBasis)
}

func ratioOf(recent, baseline WindowStats, lifetime int, basis LoadBasis) LoadRatioResult {
	res := LoadRatioResult{
		Zone:         LoadLow,
		Available:    lifetime >= MinSessionsForLoadRatio,
		Basis:        basis,
		RecentLoad:   basis.Of(recent),
		BaselineLoad: basis.Of(baseline),
	}
	if res.BaselineLoad <= 0 {
		return res
	}
	weeks := BaselineWindow.Days() / RecentWindow.Days()
	rate := math.Max(res.BaselineLoad/weeks, loadEpsilon)
	// Unrounded: the zone boundaries are exact, rounding is for display.
	ratio := res.RecentLoad / rate
	res.Ratio = &ratio
	res.Zone = LoadZoneFor(ratio)
	return res
}
