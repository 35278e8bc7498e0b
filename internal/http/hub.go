package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-coach-service/internal/models"
	"ai-speech-coach-service/internal/observability/logging"
)

const (
	writeWait      = 5 * time.Second
	broadcastQueue = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Overlay clients run on arbitrary local origins
	},
}

type subscription struct {
	sessionID string
	conn      *websocket.Conn
}

type message struct {
	sessionID string
	payload   any
	final     bool // Close the session's clients after delivery
}

// Hub pushes feedback to WebSocket clients subscribed to a session. All
// connection writes happen on the Run goroutine.
type Hub struct {
	clients    map[string]map[*websocket.Conn]bool
	broadcast  chan message
	register   chan subscription
	unregister chan subscription
	counts     chan chan int
	done       chan struct{}
	logger     zerolog.Logger
}

// NewHub creates a hub; Run must be started for deliveries to happen.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*websocket.Conn]bool),
		broadcast:  make(chan message, broadcastQueue),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		counts:     make(chan chan int),
		done:       make(chan struct{}),
		logger:     logging.WithComponent("feedback-hub"),
	}
}

// Feedback queues a live feedback event. Events are dropped when the queue
// is full; clients only need the latest value.
func (h *Hub) Feedback(ev models.FeedbackEvent) {
	select {
	case h.broadcast <- message{sessionID: ev.SessionID, payload: ev}:
	default:
		h.logger.Warn().Str("sessionId", ev.SessionID).Uint64("sequence", ev.Sequence).Msg("Feedback queue full, dropping event")
	}
}

// SessionStopped delivers the summary and disconnects the session's clients.
func (h *Hub) SessionStopped(s models.SessionSummary) {
	select {
	case h.broadcast <- message{sessionID: s.SessionID, payload: s, final: true}:
	case <-h.done:
	}
}

// Run delivers messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id := range h.clients {
				h.closeSession(id, websocket.CloseGoingAway, "server shutting down")
			}
			return nil

		case sub := <-h.register:
			if h.clients[sub.sessionID] == nil {
				h.clients[sub.sessionID] = make(map[*websocket.Conn]bool)
			}
			h.clients[sub.sessionID][sub.conn] = true
			h.logger.Debug().
				Str("sessionId", sub.sessionID).
				Int("clients", len(h.clients[sub.sessionID])).
				Msg("Feedback client connected")

		case sub := <-h.unregister:
			if conns, ok := h.clients[sub.sessionID]; ok && conns[sub.conn] {
				delete(conns, sub.conn)
				sub.conn.Close()
				if len(conns) == 0 {
					delete(h.clients, sub.sessionID)
				}
				h.logger.Debug().Str("sessionId", sub.sessionID).Msg("Feedback client disconnected")
			}

		case msg := <-h.broadcast:
			for conn := range h.clients[msg.sessionID] {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg.payload); err != nil {
					h.logger.Debug().Err(err).Str("sessionId", msg.sessionID).Msg("Feedback write failed")
					conn.Close()
					delete(h.clients[msg.sessionID], conn)
				}
			}
			if msg.final {
				h.closeSession(msg.sessionID, websocket.CloseNormalClosure, "session stopped")
			}

		case reply := <-h.counts:
			n := 0
			for _, conns := range h.clients {
				n += len(conns)
			}
			reply <- n
		}
	}
}

func (h *Hub) closeSession(sessionID string, code int, text string) {
	for conn := range h.clients[sessionID] {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(writeWait))
		conn.Close()
	}
	delete(h.clients, sessionID)
}

// Clients returns the number of connected clients, or 0 once Run has exited.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.counts <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Subscribe attaches an upgraded connection to a session. The caller should
// write any initial frames before subscribing, then block in Listen.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) bool {
	select {
	case h.register <- subscription{sessionID: sessionID, conn: conn}:
		return true
	case <-h.done:
		return false
	}
}

// Listen reads until the client disconnects, then unsubscribes it.
func (h *Hub) Listen(sessionID string, conn *websocket.Conn) {
	defer func() {
		select {
		case h.unregister <- subscription{sessionID: sessionID, conn: conn}:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
