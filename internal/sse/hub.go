package sse

import (
	"context"
	"encoding/json"
	"sync"

	"face-door-lock/internal/access"

	log "github.com/sirupsen/logrus"
)

// Client is a single connected SSE client
type Client chan []byte

// Hub tracks the connected clients and broadcasts access events to them
type Hub struct {
	clients map[Client]bool

	broadcast  chan []byte
	register   chan Client
	unregister chan Client
	done       chan struct{}

	mu sync.Mutex
}

// NewHub creates a hub. Start it with Run.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 100),
		register:   make(chan Client),
		unregister: make(chan Client),
		done:       make(chan struct{}),
		clients:    make(map[Client]bool),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
// Remaining clients are closed on return.
func (h *Hub) Run(ctx context.Context) {
	log.Info("SSE Hub started and running")
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client)
		}
		h.mu.Unlock()
		close(h.done)
		log.Info("SSE Hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Infof("SSE client registered. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Infof("SSE client unregistered. Total clients: %d", len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			log.Debugf("Broadcasting message to %d SSE clients", len(h.clients))
			for client := range h.clients {
				select {
				case client <- message:
				default:
					log.Warn("SSE client channel full, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It returns false when the hub has stopped.
func (h *Hub) Register(client Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its channel
func (h *Hub) Unregister(client Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a message for all clients without blocking
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// OnEvent broadcasts an access event as JSON
func (h *Hub) OnEvent(ev access.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("Failed to marshal %s event for SSE: %v", ev.Type, err)
		return
	}
	h.Broadcast(data)
}
