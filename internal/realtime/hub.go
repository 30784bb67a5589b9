package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"task-tracker-api/internal/events"
)

// Client represents a single websocket client connection.
// The network conn is managed in the ws handler. Send must not block; it
// queues the message and reports false when the client cannot take it.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active connections and broadcasts task events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[Client]struct{})}
}

// Register adds a client.
func (h *Hub) Register(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a message on every client and returns how many accepted
// it. Failed clients are left for their handler to clean up.
func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.clients {
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	h.Broadcast(msg)
	return nil
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	return nil
}
