// Package schema validates transcription events before they reach the analyzer.
package schema

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/models"
)

var (
	// ErrInvalidTimestamp is returned for NaN, infinite or negative timestamps.
	ErrInvalidTimestamp = errors.New("invalid event timestamp")
	// ErrTimestampRegressed is returned when a timestamp goes backwards.
	ErrTimestampRegressed = errors.New("event timestamp regressed")
)

// Validator checks the event stream of a single session. Not safe for
// concurrent use; each session loop owns one.
type Validator struct {
	last    float64
	hasLast bool
}

func New() *Validator {
	return &Validator{}
}

// Validate rejects events the analyzer cannot order in time.
func (v *Validator) Validate(ev models.TranscriptionEvent) error {
	ts := ev.Timestamp
	if math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, ts)
	}
	if v.hasLast && ts < v.last {
		return fmt.Errorf("%w: %v after %v", ErrTimestampRegressed, ts, v.last)
	}
	v.last = ts
	v.hasLast = true

	log.Trace().
		Float64("timestamp", ts).
		Bool("boundary", ev.IsSegmentBoundary).
		Msg("schema validated")
	return nil
}
