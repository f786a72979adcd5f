package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/infrastructure/config"
	"github.com/soniclink/soniclink-core/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypeEvent = "event"

	WSEventSnapshot = "snapshot"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64

	wsWriteTimeout = 10 * time.Second
)

// WSMessage is a message sent to a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub manages WebSocket connections and broadcasts snapshot publishes.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*wsClient]struct{})
}

// BroadcastSnapshot fans a published snapshot out to every connected
// client. Clients whose send buffer is full are dropped; a stalled
// consumer must not hold up the publisher.
func (h *Hub) BroadcastSnapshot(snap *fleet.Snapshot) {
	payload, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: WSEventSnapshot,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   snap,
	})
	if err != nil {
		h.logger.Error("failed to marshal snapshot event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket client")
			close(client.send)
			client.conn.Close()
			delete(h.clients, client)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the connection and streams snapshot events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}

	s.hub.mu.Lock()
	s.hub.clients[client] = struct{}{}
	s.hub.mu.Unlock()

	go s.hub.writePump(client)
	go s.hub.readPump(client)
}

// writePump drains the client's send buffer onto the connection, keeping
// it alive with pings.
func (h *Hub) writePump(client *wsClient) {
	pingInterval := time.Duration(h.cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.drop(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(client)
				return
			}
		}
	}
}

// readPump consumes and discards client frames so control messages are
// processed, and tears the client down when the connection dies.
func (h *Hub) readPump(client *wsClient) {
	defer h.drop(client)

	if h.cfg.MaxMessageSize > 0 {
		client.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	}
	pongTimeout := time.Duration(h.cfg.PongTimeout) * time.Second
	if pongTimeout <= 0 {
		pongTimeout = 60 * time.Second
	}
	client.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// drop removes a client, tolerating double removal from the read and
// write pumps.
func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		close(client.send)
		delete(h.clients, client)
	}
	client.conn.Close()
}
