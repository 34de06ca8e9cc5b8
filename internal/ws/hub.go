package ws

import (
	"sync"
)

// Client is a single websocket connection subscribed to the change feed.
type Client struct {
	WorkerID string // empty for anonymous board viewers
	Channel  string
	Send     chan []byte
	Hub      *Hub
	mu       sync.Mutex
	closed   bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// Hub maintains the set of active clients and broadcasts to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// channel -> client; a resubscribing client reuses nothing from its old channel
	byChannel map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		byChannel: make(map[string]*Client),
	}
}

// Register adds c. A live client already holding the same channel id is
// closed first.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	stale := h.byChannel[c.Channel]
	h.mu.Unlock()
	if stale != nil && stale != c {
		stale.Close()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	if c.Channel != "" {
		h.byChannel[c.Channel] = c
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if h.byChannel[c.Channel] == c {
		delete(h.byChannel, c.Channel)
	}
}

// BroadcastAll queues data for every client. Slow clients drop the message
// and catch up on their next poll.
func (h *Hub) BroadcastAll(data []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	sent := 0
	for _, c := range clients {
		c.mu.Lock()
		if !c.closed {
			select {
			case c.Send <- data:
				sent++
			default:
			}
		}
		c.mu.Unlock()
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
