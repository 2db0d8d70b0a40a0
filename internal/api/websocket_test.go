package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("clients map should be initialized")
	}
	if hub.broadcast == nil {
		t.Error("broadcast channel should be initialized")
	}
	if hub.register == nil {
		t.Error("register channel should be initialized")
	}
	if hub.unregister == nil {
		t.Error("unregister channel should be initialized")
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub()
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestNewHubBroadcaster(t *testing.T) {
	hub := NewHub()
	broadcaster := NewHubBroadcaster(hub)
	if broadcaster == nil {
		t.Fatal("NewHubBroadcaster returned nil")
	}
	if broadcaster.hub != hub {
		t.Error("broadcaster hub should match input")
	}
}

func TestMessageType_Constants(t *testing.T) {
	tests := []struct {
		msgType  MessageType
		expected string
	}{
		{MessageTypeHook, "hook"},
		{MessageTypeObjectState, "object_state"},
		{MessageTypeSpanResult, "span_result"},
		{MessageTypeStats, "stats"},
		{MessageTypePing, "ping"},
		{MessageTypePong, "pong"},
		{MessageTypeSubscribe, "subscribe"},
		{MessageTypeUnsubscribe, "unsubscribe"},
	}

	for _, tt := range tests {
		if string(tt.msgType) != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, string(tt.msgType))
		}
	}
}

func TestHookMessage(t *testing.T) {
	msg := HookMessage("hooks.leg.start.before", 10, 42, 3)
	if msg.Type != MessageTypeHook {
		t.Errorf("Expected type %s, got %s", MessageTypeHook, msg.Type)
	}

	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatal("Data should be a map")
	}
	if data["subject"] != "hooks.leg.start.before" {
		t.Errorf("Expected subject 'hooks.leg.start.before', got %v", data["subject"])
	}
	if data["block_id"] != int64(10) {
		t.Errorf("Expected block_id 10, got %v", data["block_id"])
	}
	if data["leg_id"] != 3 {
		t.Errorf("Expected leg_id 3, got %v", data["leg_id"])
	}
}

func TestObjectStateMessage(t *testing.T) {
	msg := ObjectStateMessage(7, "A1", "Significant", true)
	if msg.Type != MessageTypeObjectState {
		t.Errorf("Expected type %s, got %s", MessageTypeObjectState, msg.Type)
	}

	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatal("Data should be a map")
	}
	if data["name"] != "A1" {
		t.Errorf("Expected name 'A1', got %v", data["name"])
	}
	if data["significant"] != true {
		t.Errorf("Expected significant true, got %v", data["significant"])
	}
}

func TestSpanResultMessage(t *testing.T) {
	msg := SpanResultMessage(1, -2.0, 0.5, 0.1, 3.2)
	if msg.Type != MessageTypeSpanResult {
		t.Errorf("Expected type %s, got %s", MessageTypeSpanResult, msg.Type)
	}

	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatal("Data should be a map")
	}
	if data["best_fix_alt_m"] != -2.0 {
		t.Errorf("Expected best_fix_alt_m -2.0, got %v", data["best_fix_alt_m"])
	}
}

func TestHub_Run_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create a mock client
	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"*": true},
	}

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"*": true},
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	msg := Message{Type: MessageTypeStats, Data: "test"}
	hub.Broadcast(msg)
	time.Sleep(10 * time.Millisecond)

	select {
	case data := <-client.send:
		var received Message
		if err := json.Unmarshal(data, &received); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if received.Type != MessageTypeStats {
			t.Errorf("Expected type %s, got %s", MessageTypeStats, received.Type)
		}
	default:
		t.Error("Expected message on client.send channel")
	}
}

func TestHub_BroadcastToTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Client subscribed to a specific hook topic
	client1 := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"hooks.run.start": true},
	}
	// Client subscribed to everything
	client2 := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"*": true},
	}
	// Client subscribed to a different topic
	client3 := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"hooks.run.end": true},
	}

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	msg := Message{Type: MessageTypeHook, Data: "test for hooks.run.start"}
	hub.BroadcastToTopic("hooks.run.start", msg)
	time.Sleep(10 * time.Millisecond)

	// client1 and client2 should receive
	select {
	case <-client1.send:
	default:
		t.Error("client1 should receive message")
	}
	select {
	case <-client2.send:
	default:
		t.Error("client2 should receive message")
	}

	// client3 should not receive
	select {
	case <-client3.send:
		t.Error("client3 should not receive message")
	default:
		// Expected
	}
}

func TestHub_BroadcastRaw(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"*": true},
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	rawData := map[string]string{"key": "value"}
	hub.BroadcastRaw(rawData)
	time.Sleep(10 * time.Millisecond)

	select {
	case data := <-client.send:
		var received map[string]string
		if err := json.Unmarshal(data, &received); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if received["key"] != "value" {
			t.Errorf("Expected key 'value', got %v", received["key"])
		}
	default:
		t.Error("Expected message on client.send channel")
	}
}

func TestHub_BroadcastRawToTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"hooks.run.start": true},
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	rawData := map[string]string{"key": "value"}
	hub.BroadcastRawToTopic("hooks.run.start", rawData)
	time.Sleep(10 * time.Millisecond)

	select {
	case <-client.send:
		// Success
	default:
		t.Error("Expected message on client.send channel")
	}
}

func TestHubBroadcaster_Broadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	broadcaster := NewHubBroadcaster(hub)

	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"*": true},
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	broadcaster.Broadcast(map[string]string{"test": "data"})
	time.Sleep(10 * time.Millisecond)

	select {
	case <-client.send:
		// Success
	default:
		t.Error("Expected message on client.send channel")
	}
}

func TestHubBroadcaster_BroadcastToTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	broadcaster := NewHubBroadcaster(hub)

	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"hooks.run.start": true},
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	broadcaster.BroadcastToTopic("hooks.run.start", map[string]string{"test": "data"})
	time.Sleep(10 * time.Millisecond)

	select {
	case <-client.send:
		// Success
	default:
		t.Error("Expected message on client.send channel")
	}
}

func TestHub_HandleWebSocket(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	// Convert http URL to ws URL
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer ws.Close()

	// Give time for registration
	time.Sleep(50 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	// Send a ping message
	pingMsg := Message{Type: MessageTypePing}
	if err := ws.WriteJSON(pingMsg); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	// Read pong response
	ws.SetReadDeadline(time.Now().Add(time.Second))
	var response Message
	if err := ws.ReadJSON(&response); err != nil {
		t.Fatalf("Failed to read pong: %v", err)
	}

	if response.Type != MessageTypePong {
		t.Errorf("Expected pong message, got %s", response.Type)
	}
}

func TestClient_HandleMessage_Subscribe(t *testing.T) {
	hub := NewHub()
	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}

	// Test subscribe message
	msg := Message{
		Type: MessageTypeSubscribe,
		Data: []interface{}{"hooks.run.start", "hooks.run.end"},
	}
	data, _ := json.Marshal(msg)
	client.handleMessage(data)

	if !client.subscriptions["hooks.run.start"] {
		t.Error("Expected subscription to hooks.run.start")
	}
	if !client.subscriptions["hooks.run.end"] {
		t.Error("Expected subscription to hooks.run.end")
	}
}

func TestClient_HandleMessage_Unsubscribe(t *testing.T) {
	hub := NewHub()
	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: map[string]bool{"hooks.run.start": true, "hooks.run.end": true},
	}

	// Test unsubscribe message
	msg := Message{
		Type: MessageTypeUnsubscribe,
		Data: []interface{}{"hooks.run.start"},
	}
	data, _ := json.Marshal(msg)
	client.handleMessage(data)

	if client.subscriptions["hooks.run.start"] {
		t.Error("Expected hooks.run.start to be unsubscribed")
	}
	if !client.subscriptions["hooks.run.end"] {
		t.Error("Expected hooks.run.end to still be subscribed")
	}
}

func TestClient_HandleMessage_InvalidJSON(t *testing.T) {
	hub := NewHub()
	client := &Client{
		hub:           hub,
		send:          make(chan []byte, 256),
		subscriptions: make(map[string]bool),
	}

	// Should not panic on invalid JSON
	client.handleMessage([]byte("invalid json"))
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	// Test with empty origin
	req := httptest.NewRequest("GET", "/ws", nil)
	if !upgrader.CheckOrigin(req) {
		t.Error("Empty origin should be allowed")
	}

	// Test with origin
	req.Header.Set("Origin", "http://localhost:3000")
	if !upgrader.CheckOrigin(req) {
		t.Error("Origin should be allowed")
	}
}
