// Package models defines the data structures exchanged between the
// recognizer, the analysis core and the published feedback events.
package models

// TranscriptionEvent is one incremental result from the speech recognizer.
// Text is the recognizer's current best guess for the whole open segment.
type TranscriptionEvent struct {
	Text string `json:"text" yaml:"text"`
	// Timestamp is monotonic seconds since the recognition session started.
	Timestamp float64 `json:"timestamp" yaml:"timestamp"`
	// IsSegmentBoundary marks a committed hypothesis after which the
	// recognizer starts a fresh segment.
	IsSegmentBoundary bool `json:"isSegmentBoundary" yaml:"boundary"`
	// IsFinal marks the last result of the recognition session.
	IsFinal bool `json:"isFinal" yaml:"final"`
}
