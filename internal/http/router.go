package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/app"
	"ai-speech-coach-service/internal/service/practice"
	"ai-speech-coach-service/internal/service/report"
	"ai-speech-coach-service/internal/service/session"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, hub *Hub) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if application.StartupTime.IsZero() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("starting"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	s := &sessionHandlers{registry: application.Registry, hub: hub}
	l := &lexiconHandlers{loader: application.Loader, metrics: application.Metrics}

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.create)
			r.Get("/", s.list)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.get)
				r.Delete("/", s.remove)
				r.Post("/pause", s.pause)
				r.Post("/resume", s.resume)
				r.Post("/stop", s.stop)
				r.Get("/feedback", s.feedback)
				r.Get("/feedback/ws", s.feedbackStream)
				r.Get("/audio", s.audioStream)
			})
		})
		r.Get("/lexicon", l.get)
		r.Put("/lexicon", l.put)
		r.Post("/reports", s.project)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, practice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionStopped),
		errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrNotRecording),
		errors.Is(err, session.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, practice.ErrLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, report.ErrNoPractices):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
