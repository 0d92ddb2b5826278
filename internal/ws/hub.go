package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"chatsync/internal/models"
)

// Client wraps a websocket connection with write serialization. Snapshot
// fan-out and progress events can fire from different goroutines, and
// gorilla connections allow only one concurrent writer.
type Client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// Send writes one event as JSON.
func (c *Client) Send(event models.ChatEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(event)
}

// Info returns the connection metadata captured at handshake.
func (c *Client) Info() ConnInfo {
	return c.info
}

// Close closes the underlying connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// Hub tracks active websocket clients per conversation or group room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Add registers a client in a room.
func (h *Hub) Add(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

// Remove deregisters a client from a room.
func (h *Hub) Remove(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast sends an event to every client in a room, dropping connections
// that fail to write.
func (h *Hub) Broadcast(roomID string, event models.ChatEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Send(event); err != nil {
			log.Printf("websocket write error: %v", err)
			client.Close()
			h.Remove(roomID, client)
		}
	}
}

// ClientCount reports active clients in a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
