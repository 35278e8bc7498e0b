package analysis

import "fmt"

// Rate band edges in syllables per minute.
const (
	FastRate = 450.0
	SlowRate = 200.0
)

// DefaultSustainThreshold is the flag magnitude above which a trend is
// considered sustained.
const DefaultSustainThreshold = 2

// TrendTracker accumulates consecutive out-of-band rate readings.
type TrendTracker struct {
	flag int
}

// Flag returns the current flag count.
func (t *TrendTracker) Flag() int {
	return t.flag
}

// Update applies one accepted rate reading. A fast reading forces the flag
// to at least +1 and keeps counting up, a slow one to at most -1 and keeps
// counting down, and any in-band reading resets it to zero.
func (t *TrendTracker) Update(rate float64) int {
	switch {
	case rate > FastRate:
		t.flag = max(t.flag+1, 1)
	case rate < SlowRate:
		t.flag = min(t.flag-1, -1)
	default:
		t.flag = 0
	}
	return t.flag
}

// Trend is the consumer-facing reading of a flag count.
type Trend int

const (
	TrendSteady Trend = iota
	TrendFast
	TrendSlow
	TrendSustainedFast
	TrendSustainedSlow
)

// String returns the string representation of the trend.
func (t Trend) String() string {
	switch t {
	case TrendSteady:
		return "steady"
	case TrendFast:
		return "fast"
	case TrendSlow:
		return "slow"
	case TrendSustainedFast:
		return "sustained_fast"
	case TrendSustainedSlow:
		return "sustained_slow"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// IsSustained reports whether the trend should drive a "too fast" or
// "too slow" affordance.
func (t Trend) IsSustained() bool {
	return t == TrendSustainedFast || t == TrendSustainedSlow
}

// ClassifyTrend maps a flag count to a Trend. Magnitudes strictly greater
// than threshold are sustained.
func ClassifyTrend(flag, threshold int) Trend {
	switch {
	case flag > threshold:
		return TrendSustainedFast
	case flag < -threshold:
		return TrendSustainedSlow
	case flag > 0:
		return TrendFast
	case flag < 0:
		return TrendSlow
	default:
		return TrendSteady
	}
}
