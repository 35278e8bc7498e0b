// Package stt defines the boundary between speech recognizers and the
// analysis core.
package stt

import (
	"context"
	"errors"

	"ai-speech-coach-service/internal/models"
)

// ErrNoEventStream is returned when a recognizer starts without producing an
// event stream. It is the only fatal start-up condition of a session.
var ErrNoEventStream = errors.New("recognizer returned no event stream")

// Result is one item of a recognizer's event stream: either an event or the
// error that ended recognition.
type Result struct {
	Event models.TranscriptionEvent
	Err   error
}

// Recognizer is an on-device or cloud speech recognizer producing
// incremental transcription events.
type Recognizer interface {
	// Start begins recognition. The returned channel delivers results in
	// order and is closed when recognition ends.
	Start(ctx context.Context) (<-chan Result, error)

	// SendAudio feeds audio bytes to the recognizer.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends recognition and releases resources.
	Close() error
}

// Factory creates a recognizer for a new session.
type Factory func(ctx context.Context) (Recognizer, error)
