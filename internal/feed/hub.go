// Package feed broadcasts poll snapshots to WebSocket clients.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gonut/nut/internal/logger"
	"github.com/gonut/nut/internal/store"
)

// Message is the JSON document sent to clients.
type Message struct {
	Type     string          `json:"type"`
	Snapshot *store.Snapshot `json:"snapshot,omitempty"`
}

// MessageTypeSnapshot marks a Message carrying a poll snapshot.
const MessageTypeSnapshot = "snapshot"

var (
	// ErrHubStopped is returned by Publish once Run has returned.
	ErrHubStopped = errors.New("feed hub stopped")
	// ErrQueueFull is returned when the broadcast queue has no room.
	ErrQueueFull = errors.New("feed broadcast queue full")
)

// Hub maintains the set of connected clients and fans snapshots out to them.
// Clients whose send buffer is full are dropped.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu     sync.RWMutex
	latest map[string][]byte // "target/ups" -> last message
}

// NewHub creates a new hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		latest:     make(map[string][]byte),
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	logger.Debug("feed hub started")
	defer logger.Debug("feed hub stopped")
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			for _, msg := range h.latest {
				select {
				case c.send <- msg:
				default:
				}
			}
			h.mu.Unlock()
			logger.Debug("feed client registered", "remote_addr", c.remoteAddr)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			logger.Debug("feed client unregistered", "remote_addr", c.remoteAddr)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					logger.Warning("dropping slow feed client", "remote_addr", c.remoteAddr)
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Publish queues a snapshot for every client. It never blocks on clients.
func (h *Hub) Publish(ctx context.Context, snap store.Snapshot) error {
	data, err := json.Marshal(Message{Type: MessageTypeSnapshot, Snapshot: &snap})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	h.mu.Lock()
	h.latest[snap.Target+"/"+snap.UPS] = data
	h.mu.Unlock()

	// A stopped hub still has room in its buffered queue, so done is
	// checked on its own first.
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
