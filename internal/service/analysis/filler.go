package analysis

import (
	"strings"

	"ai-speech-coach-service/internal/models"
)

// SentenceGapSeconds is the silence after which the next partial result is
// treated as a new spoken sentence within the same segment.
const SentenceGapSeconds = 0.6

// Lexicon is the set of filler words. Implementations may change between
// calls, so it is consulted on every update.
type Lexicon interface {
	Contains(word string) bool
}

// CountFillers returns how many whitespace-separated tokens of text are in
// the lexicon.
func CountFillers(text string, lex Lexicon) int {
	if lex == nil {
		return 0
	}
	n := 0
	for _, word := range strings.Fields(text) {
		if lex.Contains(word) {
			n++
		}
	}
	return n
}

// FillerCounter derives a per-sentence filler count from partial results
// that keep revising the whole segment.
type FillerCounter struct {
	lexicon Lexicon

	sinceBoundary int // raw count in the latest partial
	baseline      int // raw count when the current sentence started
	exposed       int
	lastTimestamp float64
	hasLast       bool
}

// NewFillerCounter creates a counter that reads lex on every update.
func NewFillerCounter(lex Lexicon) *FillerCounter {
	return &FillerCounter{lexicon: lex}
}

// Count returns the last exposed count.
func (f *FillerCounter) Count() int {
	return f.exposed
}

// Update applies one event and returns the exposed filler count.
func (f *FillerCounter) Update(ev models.TranscriptionEvent) int {
	if ev.IsSegmentBoundary {
		f.sinceBoundary = 0
		f.baseline = 0
		f.exposed = 0
		return f.exposed
	}

	temp := CountFillers(ev.Text, f.lexicon)
	if f.hasLast && ev.Timestamp-f.lastTimestamp > SentenceGapSeconds {
		f.baseline = f.sinceBoundary
	}
	// A negative delta means the hypothesis or the lexicon shrank; hold.
	if delta := temp - f.baseline; delta >= 0 {
		f.exposed = delta
	}
	f.sinceBoundary = temp
	f.lastTimestamp = ev.Timestamp
	f.hasLast = true
	return f.exposed
}
