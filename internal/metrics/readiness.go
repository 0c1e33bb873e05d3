package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/chalkline/internal/models"
)

// ReadinessZone is the display tier of a readiness score.
type ReadinessZone string

const (
	ZoneOptimal  ReadinessZone = "optimal"
	ZoneBalanced ReadinessZone = "balanced"
	ZoneLimited  ReadinessZone = "limited"
)

// ReadinessStatus says how far the score can be trusted.
type ReadinessStatus string

const (
	StatusBuilding    ReadinessStatus = "building"
	StatusCalibrating ReadinessStatus = "calibrating"
	StatusCalibrated  ReadinessStatus = "calibrated"
)

// ReadinessFactors are the 0..100 inputs of the weighted score.
type ReadinessFactors struct {
	Recovery    float64 `json:"recovery"`
	Intensity   float64 `json:"intensity"`
	Consistency float64 `json:"consistency"`
}

// ReadinessResult is the readiness score with its status and zone. Score is
// nil and Zone empty while the status is StatusBuilding.
type ReadinessResult struct {
	Score      *int             `json:"score"`
	Zone       ReadinessZone    `json:"zone,omitempty"`
	Status     ReadinessStatus  `json:"status"`
	Confidence float64          `json:"confidence"`
	Message    string           `json:"message,omitempty"`
	Factors    ReadinessFactors `json:"factors"`
}

// ZoneForScore maps a score to its zone.
func ZoneForScore(score int) ReadinessZone {
	switch {
	case score >= OptimalReadinessMin:
		return ZoneOptimal
	case score >= BalancedReadinessMin:
		return ZoneBalanced
	default:
		return ZoneLimited
	}
}

// StatusForSessions returns the availability status and confidence for a
// history of n valid sessions.
func StatusForSessions(n int) (ReadinessStatus, float64) {
	switch {
	case n < MinSessionsForScore:
		return StatusBuilding, float64(max(n, 0)) / MinSessionsCalibrated
	case n < MinSessionsCalibrated:
		return StatusCalibrating, float64(n) / MinSessionsCalibrated
	default:
		return StatusCalibrated, 1
	}
}

// readiness computes the result from validated, sorted sessions. The status
// gates on the larger of the visible history and lifetime, the user's count of
// valid sessions before now, so a window that hides older sessions does not
// demote an established user.
func (e *Engine) readiness(valid []models.Session, now time.Time, lifetime int) ReadinessResult {
	history := before(valid, now)
	lifetime = max(lifetime, len(history))
	recent := summarize(history, RecentWindow, now)
	baseline := summarize(history, BaselineWindow, now)

	var rest time.Duration
	if len(history) > 0 {
		rest = max(now.Sub(history[len(history)-1].Finished()), 0)
	}

	f := ReadinessFactors{
		Recovery:    recoveryFactor(history, now),
		Intensity:   intensityFactor(recent, rest),
		Consistency: consistencyFactor(baseline.Sessions),
	}

	status, confidence := StatusForSessions(lifetime)
	res := ReadinessResult{
		Status:     status,
		Confidence: confidence,
		Factors: ReadinessFactors{
			Recovery:    round1(f.Recovery),
			Intensity:   round1(f.Intensity),
			Consistency: round1(f.Consistency),
		},
	}

	switch status {
	case StatusBuilding:
		res.Message = fmt.Sprintf("Log %d more session(s) to unlock your readiness score", MinSessionsForScore-lifetime)
		return res
	case StatusCalibrating:
		res.Message = fmt.Sprintf("Provisional score: %d more session(s) until fully calibrated", MinSessionsCalibrated-lifetime)
	}

	score := e.weightedScore(f)
	res.Score = &score
	res.Zone = ZoneForScore(score)
	return res
}

func (e *Engine) weightedScore(f ReadinessFactors) int {
	w := e.opts.Weights
	raw := (w.Recovery*f.Recovery + w.Intensity*f.Intensity + w.Consistency*f.Consistency) / w.sum()
	return int(math.Round(clamp(raw, 0, 100)))
}

// recoveryFactor grows with rest relative to the climber's own rhythm and
// saturates at RecoverySaturation times the typical gap.
func recoveryFactor(history []models.Session, now time.Time) float64 {
	if len(history) == 0 {
		return neutralFactor
	}
	rest := now.Sub(history[len(history)-1].Finished())
	if rest <= 0 {
		return 0
	}
	ratio := rest.Hours() / typicalGap(history).Hours()
	return clamp(ratio, 0, RecoverySaturation) / RecoverySaturation * 100
}

// intensityFactor drops as recent average RPE rises; rest recovers up to half
// of the penalty.
func intensityFactor(recent WindowStats, rest time.Duration) float64 {
	if recent.ClimbCount == 0 {
		return 100
	}
	base := clamp((10-recent.AvgRPE)/9*100, 0, 100)
	relief := clamp(rest.Hours()/IntensityReliefWindow.Hours(), 0, 1)
	return base + (100-base)*0.5*relief
}

// consistencyFactor rewards evenly spaced sessions inside the baseline window
// and penalises gaps longer than LongGapDays.
func consistencyFactor(baseline []models.Session) float64 {
	if len(baseline) < MinSessionsForScore {
		return neutralFactor
	}
	gaps := startGaps(baseline)
	days := make([]float64, len(gaps))
	var sum, longest float64
	for i, g := range gaps {
		days[i] = g.Hours() / 24
		sum += days[i]
		longest = max(longest, days[i])
	}
	mean := sum / float64(len(days))
	cv := 1.0
	if mean > 0 {
		var sq float64
		for _, d := range days {
			sq += (d - mean) * (d - mean)
		}
		cv = math.Sqrt(sq/float64(len(days))) / mean
	}
	score := 100 * clamp(1-cv, 0, 1)
	if longest > LongGapDays {
		score -= math.Min((longest-LongGapDays)*longGapPenalty, maxLongGapPenalty)
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
