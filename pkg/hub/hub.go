package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/teslashibe/suradas/pkg/metrics"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging and metrics
	name string

	metrics *metrics.Metrics

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// done is closed when Run returns
	done chan struct{}

	// Guards clients for ClientCount
	mu sync.RWMutex
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics reports connected client counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			h.remove(client)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.ClientConnected(h.name, 1)
			fmt.Printf("🔌 [%s] Client connected (%d total)\n", h.name, count)

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.remove(client)
			count := len(h.clients)
			h.mu.Unlock()
			if removed {
				fmt.Printf("🔌 [%s] Client disconnected (%d remaining)\n", h.name, count)
			}

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if message.Session != "" && client.session != message.Session {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client's buffer is full - they're too slow
					h.remove(client)
					fmt.Printf("⚠️  [%s] Dropped slow client\n", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client; callers hold h.mu.
func (h *Hub) remove(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.ClientConnected(h.name, -1)
	return true
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast channel full - drop message
		fmt.Printf("⚠️  [%s] Broadcast channel full, dropping message\n", h.name)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// SendJSON encodes v and delivers it to one session's clients.
func (h *Hub) SendJSON(session string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data).To(session))
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., camera frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Name returns the hub name.
func (h *Hub) Name() string { return h.name }

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }
