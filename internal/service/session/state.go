// Package session provides the practice-session lifecycle state machine and
// identifier generation.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a practice session.
type State int

const (
	// StateIdle - Session created, recognizer not started.
	StateIdle State = iota
	// StateRecording - Events are accepted and analysed.
	StateRecording
	// StatePaused - Recognition continues upstream but events are ignored.
	StatePaused
	// StateStopped - Session ended; analysis state is discarded. Terminal.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Errors for invalid state transitions.
var (
	ErrSessionStopped = errors.New("session is stopped")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotRecording   = errors.New("session is not recording")
	ErrNotPaused      = errors.New("session is not paused")
)

// Lifecycle manages the state machine for a single practice session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → RECORDING ⇄ PAUSED
//	  │        │          │
//	  └────────┴──────────┴── Stop() ──→ STOPPED
//
// Rules:
//   - Only RECORDING accepts transcription events.
//   - STOPPED is terminal: there is no resume after stop.
type Lifecycle struct {
	mu         sync.RWMutex
	sessionId  string
	state      State
	stopReason string
}

// NewLifecycle creates a new session lifecycle in IDLE state.
func NewLifecycle(sessionId string) *Lifecycle {
	return &Lifecycle{
		sessionId: sessionId,
		state:     StateIdle,
	}
}

// SessionId returns the session ID.
func (l *Lifecycle) SessionId() string {
	return l.sessionId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// StopReason returns why the session stopped, or "" if it has not.
func (l *Lifecycle) StopReason() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stopReason
}

// IsRecording returns true if events should be accepted.
func (l *Lifecycle) IsRecording() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRecording
}

// IsStopped returns true if the session reached STOPPED.
func (l *Lifecycle) IsStopped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Start transitions IDLE to RECORDING.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.state = StateRecording
		return nil
	case StateStopped:
		return ErrSessionStopped
	default:
		return ErrAlreadyStarted
	}
}

// Pause transitions RECORDING to PAUSED.
func (l *Lifecycle) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRecording:
		l.state = StatePaused
		return nil
	case StateStopped:
		return ErrSessionStopped
	default:
		return ErrNotRecording
	}
}

// Resume transitions PAUSED to RECORDING.
func (l *Lifecycle) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StatePaused:
		l.state = StateRecording
		return nil
	case StateStopped:
		return ErrSessionStopped
	default:
		return ErrNotPaused
	}
}

// Stop transitions any state to STOPPED and records the reason.
// Idempotent: returns true only for the call that performed the transition.
func (l *Lifecycle) Stop(reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateStopped
	l.stopReason = reason
	return true
}
