package metrics

import (
	"fmt"
	"math"

	"github.com/claude/chalkline/internal/models"
)

// Recommendation types.
const (
	RecommendTrackMore = "track_more_sessions"
	RecommendRecovery  = "recovery"
	RecommendReduce    = "reduce_volume"
	RecommendProject   = "project"
	RecommendModerate  = "moderate"
)

// Recommendation is a single training directive. Warning is set whenever an
// available load ratio is elevated or high.
type Recommendation struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	TargetVolume string `json:"target_volume,omitempty"`
	TargetRPE    string `json:"target_rpe,omitempty"`
	TargetGrade  string `json:"target_grade,omitempty"`
	Focus        string `json:"focus"`
	Warning      string `json:"warning,omitempty"`
}

// recommend applies the decision table, first match wins.
func recommend(r ReadinessResult, l LoadRatioResult, validCount int, baseline WindowStats) Recommendation {
	if validCount == 0 {
		return Recommendation{
			Type:  RecommendTrackMore,
			Title: "Track more sessions",
			Focus: "Log your climbs so readiness and training load can be calibrated",
		}
	}

	volume := DefaultSessionVolume
	if v, ok := baseline.MedianSessionVolume(); ok && v > 0 {
		volume = v
	}
	median, hasGrade := baseline.MedianGrade()

	loadHot := l.Available && (l.Zone == LoadElevated || l.Zone == LoadHigh)

	switch {
	case r.Status == StatusBuilding || r.Zone == ZoneLimited:
		rec := Recommendation{
			Type:         RecommendRecovery,
			Title:        "Recovery session",
			TargetVolume: volumeRange(volume, 0.5, 0.7),
			TargetRPE:    "3-5",
			Focus:        "Easy mileage well below your limit, mobility and movement drills",
		}
		// Recovery already cuts volume; a hot load still carries its warning.
		if loadHot {
			rec.Warning = loadWarning(l)
		}
		return rec
	case loadHot:
		return Recommendation{
			Type:         RecommendReduce,
			Title:        "Reduce volume",
			TargetVolume: volumeRange(volume, 0.6, 0.8),
			TargetRPE:    "5-7",
			Focus:        "Consolidate familiar grades and cut total attempts",
			Warning:      loadWarning(l),
		}
	case r.Zone == ZoneOptimal:
		rec := Recommendation{
			Type:         RecommendProject,
			Title:        "Project day",
			TargetVolume: volumeRange(volume, 0.6, 0.8),
			TargetRPE:    "8-9",
			Focus:        "Limit bouldering on projects with full rest between attempts",
		}
		if hasGrade {
			rec.TargetGrade = gradeRange(median+1, median+2)
		}
		return rec
	default:
		rec := Recommendation{
			Type:         RecommendModerate,
			Title:        "Moderate volume",
			TargetVolume: volumeRange(volume, 0.9, 1.1),
			TargetRPE:    "6-7",
			Focus:        "Technique and endurance: steady volume on comfortable grades",
		}
		if hasGrade {
			rec.TargetGrade = gradeRange(median-1, median)
		}
		return rec
	}
}

func loadWarning(l LoadRatioResult) string {
	if l.Ratio == nil {
		return "Training load is well above your recent baseline. Cut volume to lower injury risk."
	}
	return fmt.Sprintf("Training load is %.2fx your 4-week average (%s). Cut volume to lower injury risk.", *l.Ratio, l.Zone)
}

func volumeRange(typical int, lo, hi float64) string {
	a := max(int(math.Round(float64(typical)*lo)), 1)
	b := max(int(math.Round(float64(typical)*hi)), a)
	return fmt.Sprintf("%d-%d climbs", a, b)
}

func gradeRange(lo, hi int) string {
	lo = max(lo, 0)
	hi = min(max(hi, lo), models.MaxGrade)
	lo = min(lo, hi)
	if lo == hi {
		return models.FormatGrade(lo)
	}
	return models.FormatGrade(lo) + "-" + models.FormatGrade(hi)
}
