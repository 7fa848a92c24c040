// Package control exposes the local HTTP surface that drives the daemon:
// session start/stop, status, catalogs, history, and a websocket event
// stream for UI clients.
package control

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/protocol"
	"github.com/aveline-ai/companiond/internal/session/fault"
	"github.com/aveline-ai/companiond/internal/session/fsm"
)

// Hub fans session events out to every connected /events client.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	sendMu sync.Mutex
	logger *zap.Logger
}

// NewHub executes the newHub function.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and keeps the client subscribed until it
// disconnects. Event clients only listen; inbound frames are drained.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, logger: h.logger}
	h.register(cl)
	h.logger.Info("event stream opened", zap.String("remote", r.RemoteAddr))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("event stream closed", zap.Error(err))
			break
		}
	}

	h.unregister(cl)
}

// SessionState implements the session notifier.
func (h *Hub) SessionState(sessionID string, state fsm.State) {
	h.broadcast(protocol.Event{
		Type:      protocol.EventSessionState,
		SessionID: sessionID,
		State:     string(state),
	})
}

// SessionFault implements the session notifier.
func (h *Hub) SessionFault(sessionID string, f fault.Fault) {
	h.broadcast(protocol.Event{
		Type:      protocol.EventSessionFault,
		SessionID: sessionID,
		Kind:      string(f.Kind),
		Message:   f.Message,
	})
}

// Transcript implements the session notifier.
func (h *Hub) Transcript(sessionID string, role string, text string, final bool) {
	h.broadcast(protocol.Event{
		Type:      protocol.EventTranscript,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Final:     final,
	})
}

// Clients reports how many event clients are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(event protocol.Event) {
	for _, cl := range h.snapshot() {
		cl.sendJSON(event)
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, cl)
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		out = append(out, cl)
	}
	return out
}

func (c *client) sendJSON(payload any) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.WriteJSON(payload); err != nil {
		c.logger.Debug("ws send failed", zap.Error(err))
	}
}
