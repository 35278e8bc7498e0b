package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/observability/logging"
	"ai-speech-coach-service/internal/service/practice"
	"ai-speech-coach-service/internal/service/report"
	"ai-speech-coach-service/internal/service/session"
)

var errSessionActive = errors.New("session has not stopped")

// audioEndMessage is the text frame an audio client sends after its last chunk.
const audioEndMessage = "end"

type sessionHandlers struct {
	registry *practice.Registry
	hub      *Hub
}

type sessionView struct {
	practice.Info
	Summary *models.SessionSummary `json:"summary,omitempty"`
}

func viewOf(h *practice.Handler) sessionView {
	v := sessionView{Info: h.Info()}
	if s, ok := h.Summary(); ok {
		v.Summary = &s
	}
	return v
}

func (s *sessionHandlers) lookup(w http.ResponseWriter, r *http.Request) (*practice.Handler, bool) {
	h, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return h, true
}

// create registers a session and starts recording unless ?start=false.
func (s *sessionHandlers) create(w http.ResponseWriter, r *http.Request) {
	h, err := s.registry.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create practice session")
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if r.URL.Query().Get("start") != "false" {
		if err := h.Start(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, viewOf(h))
}

func (s *sessionHandlers) list(w http.ResponseWriter, _ *http.Request) {
	sessions := s.registry.List()
	out := make([]sessionView, 0, len(sessions))
	for _, h := range sessions {
		out = append(out, viewOf(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *sessionHandlers) get(w http.ResponseWriter, r *http.Request) {
	if h, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, viewOf(h))
	}
}

func (s *sessionHandlers) remove(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *sessionHandlers) pause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*practice.Handler).Pause)
}

func (s *sessionHandlers) resume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*practice.Handler).Resume)
}

func (s *sessionHandlers) transition(w http.ResponseWriter, r *http.Request, fn func(*practice.Handler) error) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := fn(h); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(h))
}

// stop is idempotent: stopping a stopped session returns its summary.
func (s *sessionHandlers) stop(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	h.Stop(practice.StopExplicit)
	writeJSON(w, http.StatusOK, viewOf(h))
}

func (s *sessionHandlers) feedback(w http.ResponseWriter, r *http.Request) {
	if h, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, h.Feedback())
	}
}

// feedbackStream sends the current feedback, then every update, and finally
// the summary before the server closes the connection.
func (s *sessionHandlers) feedbackStream(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", h.ID()).Msg("WebSocket upgrade error")
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if sum, stopped := h.Summary(); stopped {
		conn.WriteJSON(sum)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	if err := conn.WriteJSON(h.Feedback()); err != nil {
		conn.Close()
		return
	}
	if !s.hub.Subscribe(h.ID(), conn) {
		conn.Close()
		return
	}
	s.hub.Listen(h.ID(), conn)
}

// audioStream forwards binary frames to the session's recognizer. A text
// frame "end" or a client disconnect ends the audio.
func (s *sessionHandlers) audioStream(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if h.State() == session.StateIdle {
		if err := h.Start(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", h.ID()).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	logger := logging.WithSession(h.ID())
	ctx := context.WithoutCancel(r.Context())
	closeCode, closeText := websocket.CloseNormalClosure, "audio ended"

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Audio stream read ended")
			}
			h.EndAudio()
			return
		}
		if msgType == websocket.TextMessage {
			if string(data) == audioEndMessage {
				h.EndAudio()
				break
			}
			continue
		}
		if err := h.SendAudio(ctx, data); err != nil {
			logger.Warn().Err(err).Msg("Audio rejected")
			closeCode, closeText = websocket.ClosePolicyViolation, err.Error()
			if errors.Is(err, practice.ErrLimitExceeded) {
				closeCode = websocket.CloseMessageTooBig
			}
			break
		}
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, closeText),
		time.Now().Add(writeWait))
}

type reportRequest struct {
	SessionIDs []string                `json:"sessionIds"`
	Summaries  []models.SessionSummary `json:"summaries"`
}

// project aggregates stopped sessions and client-supplied summaries.
func (s *sessionHandlers) project(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	practices := append([]models.SessionSummary(nil), req.Summaries...)
	for _, id := range req.SessionIDs {
		h, err := s.registry.Get(id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		sum, ok := h.Summary()
		if !ok {
			writeError(w, http.StatusConflict, fmt.Errorf("%w: %s", errSessionActive, id))
			return
		}
		practices = append(practices, sum)
	}

	stats, err := report.Project(practices)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
