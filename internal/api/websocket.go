// Package api provides HTTP API handlers and WebSocket support
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from localhost in development
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		// In production, validate against allowed origins
		return true
	},
}

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeHook        MessageType = "hook"
	MessageTypeObjectState MessageType = "object_state"
	MessageTypeSpanResult  MessageType = "span_result"
	MessageTypeStats       MessageType = "stats"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool // hook subjects to subscribe to, "*" for all
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     slog.Default().With("component", "websocket-hub"),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client connected", "total_clients", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("Client disconnected", "total_clients", len(h.clients))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, skip
					h.logger.Warn("Client buffer full, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastToTopic sends a message to clients subscribed to a specific hook topic
func (h *Hub) BroadcastToTopic(topic string, msg Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal topic message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		// Send if subscribed to this topic or to everything
		if client.subscriptions["*"] || client.subscriptions[topic] {
			select {
			case client.send <- data:
			default:
				// Client buffer full, skip
			}
		}
	}
}

// BroadcastRaw sends a raw message to all clients (for generic interface{} messages)
func (h *Hub) BroadcastRaw(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal raw message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastRawToTopic sends a raw message to clients subscribed to a specific hook topic
func (h *Hub) BroadcastRawToTopic(topic string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal raw topic message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.subscriptions["*"] || client.subscriptions[topic] {
			select {
			case client.send <- data:
			default:
			}
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubBroadcaster wraps Hub with Broadcast/BroadcastToTopic, letting
// core.EventBus subscribers fan hook events out to websocket clients.
type HubBroadcaster struct {
	hub *Hub
}

// NewHubBroadcaster creates a new HubBroadcaster
func NewHubBroadcaster(hub *Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

// Broadcast sends a message to all clients
func (b *HubBroadcaster) Broadcast(msg interface{}) {
	b.hub.BroadcastRaw(msg)
}

// BroadcastToTopic sends a message to clients subscribed to a specific hook topic
func (b *HubBroadcaster) BroadcastToTopic(topic string, msg interface{}) {
	b.hub.BroadcastRawToTopic(topic, msg)
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"*": true}, // Subscribe to all by default
	}

	h.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error", "error", err)
			}
			break
		}

		// Handle client messages (subscriptions, pings)
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// Batch pending messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case MessageTypePing:
		// Respond with pong
		response := Message{Type: MessageTypePong, Timestamp: time.Now()}
		if data, err := json.Marshal(response); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}

	case MessageTypeSubscribe:
		// Subscribe to hook topic(s)
		if topics, ok := msg.Data.([]interface{}); ok {
			for _, t := range topics {
				if topic, ok := t.(string); ok {
					c.subscriptions[topic] = true
				}
			}
		}

	case MessageTypeUnsubscribe:
		// Unsubscribe from hook topic(s)
		if topics, ok := msg.Data.([]interface{}); ok {
			for _, t := range topics {
				if topic, ok := t.(string); ok {
					delete(c.subscriptions, topic)
				}
			}
		}
	}
}

// HookMessage wraps a run-hook event (spec.md §4.5) for websocket fan-out.
func HookMessage(subject string, blockID, frameID int64, legID int) Message {
	return Message{
		Type: MessageTypeHook,
		Data: map[string]interface{}{
			"subject":  subject,
			"block_id": blockID,
			"frame_id": frameID,
			"leg_id":   legID,
		},
	}
}

// ObjectStateMessage reports an object's state transition as it is
// committed by the tracker.
func ObjectStateMessage(objectID int64, name, state string, significant bool) Message {
	return Message{
		Type: MessageTypeObjectState,
		Data: map[string]interface{}{
			"object_id":   objectID,
			"name":        name,
			"state":       state,
			"significant": significant,
		},
	}
}

// SpanResultMessage reports a completed span optimizer run.
func SpanResultMessage(spanID int64, bestFixAltM, bestFixYawDeg, bestFixPitchDeg, bestSumLocnErrM float64) Message {
	return Message{
		Type: MessageTypeSpanResult,
		Data: map[string]interface{}{
			"span_id":            spanID,
			"best_fix_alt_m":     bestFixAltM,
			"best_fix_yaw_deg":   bestFixYawDeg,
			"best_fix_pitch_deg": bestFixPitchDeg,
			"best_sum_locn_err_m": bestSumLocnErrM,
		},
	}
}
