// Package analysis implements the real-time speaking-rate and filler-word
// feedback computed from incremental transcription events.
package analysis

import (
	"unicode"

	"github.com/gammazero/deque"

	"ai-speech-coach-service/internal/models"
)

const (
	// DefaultRate is reported until the first accepted measurement. It is a
	// neutral baseline, not a measurement.
	DefaultRate = 300.0

	// RateWindowSeconds bounds the age of samples kept in the window.
	RateWindowSeconds = 2.0

	// MaxAcceptedRate is the exclusive upper bound of plausible rates.
	// Anything outside (0, MaxAcceptedRate) is treated as recognizer noise.
	MaxAcceptedRate = 700.0
)

// RateSample is one point of the rate window.
type RateSample struct {
	Timestamp     float64
	SyllableCount float64
}

// CountSyllables approximates the syllable count of a transcript as the
// number of non-whitespace runes. For Hangul each precomposed syllable is a
// single rune; for other scripts this is a character count, not a true
// syllabification.
func CountSyllables(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// RateEstimator computes a syllables-per-minute rate over the trailing
// RateWindowSeconds of samples. The zero value is ready to use and reports
// DefaultRate.
type RateEstimator struct {
	window   deque.Deque[RateSample]
	rate     float64
	measured bool
}

// NewRateEstimator returns an estimator reporting DefaultRate.
func NewRateEstimator() *RateEstimator {
	return &RateEstimator{}
}

// Rate returns the last accepted rate, or DefaultRate before any.
func (e *RateEstimator) Rate() float64 {
	if !e.measured {
		return DefaultRate
	}
	return e.rate
}

// WindowLen returns the number of samples currently in the window.
func (e *RateEstimator) WindowLen() int {
	return e.window.Len()
}

// Update records the event's sample and returns the current rate and
// whether this event changed it. Segment-boundary events are sampled but
// never update the rate.
func (e *RateEstimator) Update(ev models.TranscriptionEvent) (float64, bool) {
	e.window.PushBack(RateSample{
		Timestamp:     ev.Timestamp,
		SyllableCount: float64(CountSyllables(ev.Text)),
	})
	for e.window.Len() > 1 && e.window.Back().Timestamp-e.window.Front().Timestamp > RateWindowSeconds {
		e.window.PopFront()
	}

	if e.window.Len() < 2 {
		return e.Rate(), false
	}
	oldest, newest := e.window.Front(), e.window.Back()
	elapsed := newest.Timestamp - oldest.Timestamp
	if elapsed == 0 {
		return e.Rate(), false
	}

	raw := (newest.SyllableCount - oldest.SyllableCount) / elapsed * 60
	if ev.IsSegmentBoundary || raw <= 0 || raw >= MaxAcceptedRate {
		return e.Rate(), false
	}
	e.rate = raw
	e.measured = true
	return e.rate, true
}
