// Package report turns analysis output into user-facing ratings and
// aggregates practice statistics.
package report

import "fmt"

// DefaultSPMAverage is the reference speaking rate used for the gauge when
// no personal average is configured.
const DefaultSPMAverage = 300.0

// Offsets of the slow and fast gauge thresholds from the reference rate.
const (
	slowOffset = 104.1
	fastOffset = 131.7
	gaugeMax   = 50.0
)

// Zone is where a rate falls on the speed gauge.
type Zone int

const (
	ZoneNormal Zone = iota
	ZoneSlow
	ZoneFast
)

// String returns the string representation of the zone.
func (z Zone) String() string {
	switch z {
	case ZoneNormal:
		return "normal"
	case ZoneSlow:
		return "slow"
	case ZoneFast:
		return "fast"
	default:
		return fmt.Sprintf("unknown(%d)", int(z))
	}
}

// Gauge maps rates onto a half-ring speed indicator filled from 0 to 50
// percent, where the reference rate sits at 25 percent.
type Gauge struct {
	average float64
}

// NewGauge creates a gauge around a reference rate. Non-positive values use
// DefaultSPMAverage.
func NewGauge(average float64) Gauge {
	if average <= 0 {
		average = DefaultSPMAverage
	}
	return Gauge{average: average}
}

// Percent returns the gauge fill for rate, clamped to [0, 50].
func (g Gauge) Percent(rate float64) float64 {
	p := rate / (g.average * 4 / 100)
	return min(max(p, 0), gaugeMax)
}

// Zone classifies rate against the slow and fast thresholds.
func (g Gauge) Zone(rate float64) Zone {
	p := g.Percent(rate)
	switch {
	case p < g.Percent(g.average-slowOffset):
		return ZoneSlow
	case p > g.Percent(g.average+fastOffset):
		return ZoneFast
	default:
		return ZoneNormal
	}
}
