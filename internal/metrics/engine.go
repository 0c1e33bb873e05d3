package metrics

import (
	"time"

	"github.com/claude/chalkline/internal/models"
)

// Weights are the relative contributions of the readiness factors. They do
// not need to sum to 1.
type Weights struct {
	Recovery    float64 `yaml:"recovery" json:"recovery"`
	Intensity   float64 `yaml:"intensity" json:"intensity"`
	Consistency float64 `yaml:"consistency" json:"consistency"`
}

// DefaultWeights favour recovery, then intensity, then consistency.
var DefaultWeights = Weights{Recovery: 0.40, Intensity: 0.35, Consistency: 0.25}

func (w Weights) sum() float64 {
	return w.Recovery + w.Intensity + w.Consistency
}

// Valid reports whether every weight is non-negative and at least one is positive.
func (w Weights) Valid() bool {
	return w.Recovery >= 0 && w.Intensity >= 0 && w.Consistency >= 0 && w.sum() > 0
}

// Options configure an Engine.
type Options struct {
	Weights   Weights
	LoadBasis LoadBasis
}

// DefaultOptions returns the default weights with RPE volume as load.
func DefaultOptions() Options {
	return Options{Weights: DefaultWeights, LoadBasis: LoadRPEVolume}
}

// Engine computes metric bundles. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	opts Options
}

// New creates an engine. Invalid weights or an unknown basis fall back to the
// defaults.
func New(opts Options) *Engine {
	if !opts.Weights.Valid() {
		opts.Weights = DefaultWeights
	}
	if _, err := ParseLoadBasis(string(opts.LoadBasis)); err != nil || opts.LoadBasis == "" {
		opts.LoadBasis = LoadRPEVolume
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Snapshot is one consistent view of a user's data.
type Snapshot struct {
	Sessions []models.Session
	Counts   models.UserAggregateCounts
}

// Bundle is everything derived from one snapshot at one instant.
type Bundle struct {
	ComputedAt      time.Time                  `json:"computed_at"`
	Readiness       ReadinessResult            `json:"readiness"`
	LoadRatio       LoadRatioResult            `json:"load_ratio"`
	Recommendation  Recommendation             `json:"recommendation"`
	Counts          models.UserAggregateCounts `json:"counts"`
	Recent          WindowStats                `json:"recent"`
	Baseline        WindowStats                `json:"baseline"`
	DroppedSessions int                        `json:"dropped_sessions"`
	DroppedClimbs   int                        `json:"dropped_climbs"`
}

// Compute validates the snapshot once and derives readiness, load ratio and
// the recommendation from the same cleaned history. Session-count gates use
// Counts.ValidSessions when it exceeds the sessions in the snapshot, since the
// snapshot only covers the history window.
func (e *Engine) Compute(snap Snapshot, now time.Time) Bundle {
	v := Validate(snap.Sessions)
	history := before(v.Sessions, now)
	lifetime := max(len(history), snap.Counts.ValidSessions)

	recent := summarize(history, RecentWindow, now)
	baseline := summarize(history, BaselineWindow, now)
	readiness := e.readiness(history, now, lifetime)
	load := ratioOf(recent, baseline, lifetime, e.opts.LoadBasis)

	return Bundle{
		ComputedAt:      now,
		Readiness:       readiness,
		LoadRatio:       load,
		Recommendation:  recommend(readiness, load, lifetime, baseline),
		Counts:          snap.Counts,
		Recent:          recent,
		Baseline:        baseline,
		DroppedSessions: v.DroppedSessions,
		DroppedClimbs:   v.DroppedClimbs,
	}
}

// Readiness computes only the readiness result.
func (e *Engine) Readiness(sessions []models.Session, now time.Time) ReadinessResult {
	return e.readiness(Validate(sessions).Sessions, now, 0)
}

// LoadRatio computes only the load ratio.
func (e *Engine) LoadRatio(sessions []models.Session, now time.Time) LoadRatioResult {
	return e.loadRatio(Validate(sessions).Sessions, now)
}

// Recommend derives a directive from already computed results.
func Recommend(r ReadinessResult, l LoadRatioResult, sessions []models.Session, now time.Time) Recommendation {
	history := before(Validate(sessions).Sessions, now)
	return recommend(r, l, len(history), summarize(history, BaselineWindow, now))
}
