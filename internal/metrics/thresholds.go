// Package metrics derives readiness, load ratio and training recommendations
// from a climber's session history. Every function here is pure: the caller
// passes the full snapshot and the reference instant, nothing reads a clock or
// touches storage.
package metrics

import "time"

// Zone and availability thresholds. Other components (dashboard, MCP tools,
// stored snapshots) rely on the same values, so they must not be redefined.
const (
	OptimalReadinessMin  = 77
	BalancedReadinessMin = 45

	LoadOptimalMin  = 0.8
	LoadOptimalMax  = 1.3
	LoadElevatedMax = 1.5

	MinSessionsForScore     = 3
	MinSessionsCalibrated   = 5
	MinSessionsForLoadRatio = 5
)

const day = 24 * time.Hour

// Canonical windows.
var (
	RecentWindow   = Window{Name: "recent", Duration: 7 * day}
	BaselineWindow = Window{Name: "baseline", Duration: 28 * day}
)

// Tunable constants of the readiness model. Unlike the zone thresholds these
// are implementation choices.
const (
	// RecoverySaturation is the rest/typical-gap ratio at which the recovery
	// factor maxes out.
	RecoverySaturation = 1.5
	// DefaultTypicalGap is used when the history has no inter-session gap yet.
	DefaultTypicalGap = 48 * time.Hour
	// IntensityReliefWindow is the rest after which high recent RPE is
	// penalised only half as much.
	IntensityReliefWindow = 48 * time.Hour
	// LongGapDays is the largest session gap tolerated by the consistency
	// factor before it starts losing points.
	LongGapDays       = 10.0
	longGapPenalty    = 3.0
	maxLongGapPenalty = 30.0
	typicalGapSamples = 10
	neutralFactor     = 50.0
	loadEpsilon       = 1e-9
	// DefaultSessionVolume is the climbs-per-session assumed for a user with
	// no baseline sessions.
	DefaultSessionVolume = 15
)
