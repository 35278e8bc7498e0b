package analysis

import (
	"context"
	"sync"

	"ai-speech-coach-service/internal/models"
)

// Snapshot is the consistent set of values produced by one event. Readers
// never observe a rate from one event paired with a flag from another.
type Snapshot struct {
	Sequence     uint64
	Timestamp    float64
	Rate         float64
	RateAccepted bool
	FlagCount    int
	FillerCount  int
	Trend        Trend
	Boundary     bool
}

// Analyzer owns the per-session analysis state.
type Analyzer struct {
	mu               sync.Mutex
	rate             *RateEstimator
	trend            TrendTracker
	filler           *FillerCounter
	sustainThreshold int
	last             Snapshot
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSustainThreshold overrides DefaultSustainThreshold.
func WithSustainThreshold(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.sustainThreshold = n
		}
	}
}

// New creates an Analyzer reading filler words from lex.
func New(lex Lexicon, opts ...Option) *Analyzer {
	a := &Analyzer{
		rate:             NewRateEstimator(),
		filler:           NewFillerCounter(lex),
		sustainThreshold: DefaultSustainThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.last = Snapshot{Rate: DefaultRate, Trend: TrendSteady}
	return a
}

// Process runs one event through the rate estimator, the trend tracker and
// the filler counter, in that order, as a single atomic update.
func (a *Analyzer) Process(ev models.TranscriptionEvent) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	rate, accepted := a.rate.Update(ev)
	if accepted {
		a.trend.Update(rate)
	}
	fillers := a.filler.Update(ev)

	a.last = Snapshot{
		Sequence:     a.last.Sequence + 1,
		Timestamp:    ev.Timestamp,
		Rate:         rate,
		RateAccepted: accepted,
		FlagCount:    a.trend.Flag(),
		FillerCount:  fillers,
		Trend:        ClassifyTrend(a.trend.Flag(), a.sustainThreshold),
		Boundary:     ev.IsSegmentBoundary,
	}
	return a.last
}

// Snapshot returns the values after the most recent event.
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Consume processes events from ch until it is closed or ctx is done,
// calling fn with each resulting snapshot. It returns ctx.Err() when
// cancelled and nil when the channel is drained.
func Consume(ctx context.Context, ch <-chan models.TranscriptionEvent, a *Analyzer, fn func(models.TranscriptionEvent, Snapshot)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			snap := a.Process(ev)
			if fn != nil {
				fn(ev, snap)
			}
		}
	}
}
