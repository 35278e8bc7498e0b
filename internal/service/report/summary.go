package report

import (
	"strings"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/service/analysis"
)

// Accumulator collects per-session statistics from processed events.
// Not safe for concurrent use; the session handler serialises calls.
type Accumulator struct {
	lexicon analysis.Lexicon

	events   int
	segments int
	rateSum  float64
	rateN    int
	fillers  map[string]int
	first    float64
	last     float64
	hasFirst bool
}

// NewAccumulator creates an accumulator counting words of lex.
func NewAccumulator(lex analysis.Lexicon) *Accumulator {
	return &Accumulator{lexicon: lex, fillers: make(map[string]int)}
}

// Observe records one processed event. Filler words are counted once per
// committed segment, from the boundary event's text.
func (a *Accumulator) Observe(ev models.TranscriptionEvent, snap analysis.Snapshot) {
	a.events++
	if !a.hasFirst {
		a.first = ev.Timestamp
		a.hasFirst = true
	}
	a.last = ev.Timestamp

	if snap.RateAccepted {
		a.rateSum += snap.Rate
		a.rateN++
	}
	if ev.IsSegmentBoundary {
		a.segments++
		if a.lexicon == nil {
			return
		}
		for _, word := range strings.Fields(ev.Text) {
			if a.lexicon.Contains(word) {
				a.fillers[word]++
			}
		}
	}
}

// Summary returns the session summary. SPMAverage is the mean of accepted
// rates, or 0 when none was accepted.
func (a *Accumulator) Summary(sessionID, stopReason string) models.SessionSummary {
	var spm float64
	if a.rateN > 0 {
		spm = a.rateSum / float64(a.rateN)
	}

	total := 0
	for _, c := range a.fillers {
		total += c
	}
	duration := a.last - a.first
	var fwpm float64
	if duration > 0 {
		fwpm = float64(total) * 60 / duration
	}

	return models.SessionSummary{
		EventType:           models.EventTypeSummary,
		SessionID:           sessionID,
		SPMAverage:          spm,
		FWPM:                fwpm,
		EachFillerWordCount: TopFillerWords(a.fillers, len(a.fillers)),
		Events:              a.events,
		Segments:            a.segments,
		DurationSeconds:     duration,
		StopReason:          stopReason,
		RateLabel:           RateLabel(int(spm)),
		FillerLabel:         FillerLabel(fwpm),
	}
}
