package practice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/service/analysis"
	"ai-speech-coach-service/internal/service/session"
	"ai-speech-coach-service/internal/service/stt"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// DefaultRetention is used when Config.Retention is not positive.
const DefaultRetention = 15 * time.Minute

// Registry tracks the practice sessions of this process. A stopped session
// stays queryable for the configured retention, then is forgotten.
type Registry struct {
	factory stt.Factory
	lexicon analysis.Lexicon
	cfg     Config

	mu       sync.RWMutex
	sessions map[string]*Handler
}

// NewRegistry creates a registry creating one recognizer per session.
func NewRegistry(factory stt.Factory, lex analysis.Lexicon, cfg Config) *Registry {
	return &Registry{
		factory:  factory,
		lexicon:  lex,
		cfg:      cfg,
		sessions: make(map[string]*Handler),
	}
}

// Create registers a new IDLE session.
func (r *Registry) Create(ctx context.Context) (*Handler, error) {
	rec, err := r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	h := NewHandler(session.NewID(), rec, r.lexicon, r.cfg)

	r.mu.Lock()
	r.sessions[h.ID()] = h
	r.mu.Unlock()
	go r.reap(h)
	return h, nil
}

func (r *Registry) retention() time.Duration {
	if r.cfg.Retention <= 0 {
		return DefaultRetention
	}
	return r.cfg.Retention
}

// reap forgets h once it has been stopped for the retention period.
func (r *Registry) reap(h *Handler) {
	<-h.Done()
	time.AfterFunc(r.retention(), func() {
		r.mu.Lock()
		if r.sessions[h.ID()] == h {
			delete(r.sessions, h.ID())
		}
		r.mu.Unlock()
	})
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return h, nil
}

// List returns all sessions in creation order.
func (r *Registry) List() []*Handler {
	r.mu.RLock()
	out := make([]*Handler, 0, len(r.sessions))
	for _, h := range r.sessions {
		out = append(out, h)
	}
	r.mu.RUnlock()

	// Session IDs embed an xid, which sorts by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Remove stops the session if needed and forgets it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	h, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	h.Stop(StopExplicit)
	return nil
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StopAll stops every session with reason and waits for their event loops,
// or until ctx is done. It returns how many sessions this call stopped.
func (r *Registry) StopAll(ctx context.Context, reason string) int {
	stopped := 0
	sessions := r.List()
	for _, h := range sessions {
		if h.Stop(reason) {
			stopped++
		}
	}
	for _, h := range sessions {
		select {
		case <-h.Done():
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("Timed out waiting for sessions to stop")
			return stopped
		}
	}
	log.Info().Int("stopped", stopped).Str("reason", reason).Msg("All practice sessions stopped")
	return stopped
}
