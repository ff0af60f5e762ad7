package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type WebSocketHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

func (h *WebSocketHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	log.Debugf("WebSocket client connected. Total clients: %d", len(h.clients))
}

func (h *WebSocketHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		log.Debugf("WebSocket client disconnected. Total clients: %d", len(h.clients))
	}
}

func (h *WebSocketHub) Broadcast(event Event) {
	h.mu.Lock()
	var dead []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			log.Debugf("Client write failed: %v", err)
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
