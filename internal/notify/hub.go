package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub fans pipeline progress messages out to websocket clients, keyed by
// user ID. A user may hold several connections (multiple tabs/devices);
// every connection registered for the user receives each message.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]bool

	upgrader websocket.Upgrader
	logger   *slog.Logger
	closed   bool
}

// NewHub creates a new websocket notification hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the app origin; access control
			// is handled upstream of this endpoint.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "notify_hub"),
	}
}

// Notify implements the Notifier interface. Marshal or write failures are
// logged and swallowed; a failing connection is dropped so it cannot stall
// later notifications.
func (h *Hub) Notify(ctx context.Context, userID string, stage Stage, status Status, payload map[string]any) {
	msg := Message{
		UserID:    userID,
		Stage:     stage,
		Status:    status,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal progress message",
			"user_id", userID,
			"stage", stage,
			"error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		h.logger.Debug("no connected clients for user, dropping notification",
			"user_id", userID,
			"stage", stage,
			"status", status)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("failed to push notification, dropping client",
				"user_id", userID,
				"error", err)
			_ = conn.Close()
			delete(conns, conn)
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and registers
// it for the user identified by the user_id query parameter. The connection
// stays registered until the peer closes it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	h.register(userID, conn)
	h.logger.Debug("websocket client connected", "user_id", userID)

	// Drain the connection so we notice when the peer goes away.
	go func() {
		defer func() {
			h.unregister(userID, conn)
			_ = conn.Close()
			h.logger.Debug("websocket client disconnected", "user_id", userID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close drops all registered connections. Further Notify calls become no-ops
// for the disconnected users.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for userID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.clients, userID)
	}
	h.logger.Info("notification hub closed")
}

func (h *Hub) register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		_ = conn.Close()
		return
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*websocket.Conn]bool)
	}
	h.clients[userID][conn] = true
}

func (h *Hub) unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Ensure Hub implements Notifier.
var _ Notifier = (*Hub)(nil)
