package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is the envelope pushed to connected clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub fans events out to connected WebSocket clients. Delivery is best
// effort: a client whose send buffer is full simply misses the message,
// and there is no replay. Clients reconcile through the REST endpoints.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	userClients map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[uint]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
	}
}

// Run processes client registration until the context is cancelled
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.pingClients()
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.userClients[client.userID] == nil {
		h.userClients[client.userID] = make(map[*Client]bool)
	}
	h.userClients[client.userID][client] = true

	logrus.Debugf("[WSHub] client connected: user=%d total=%d", client.userID, len(h.clients))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if clients := h.userClients[client.userID]; clients != nil {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userClients, client.userID)
		}
	}
	close(client.send)

	logrus.Debugf("[WSHub] client disconnected: user=%d total=%d", client.userID, len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.userClients = make(map[uint]map[*Client]bool)
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.ping()
	}
}

// Broadcast sends an event to every connected client
func (h *Hub) Broadcast(event string, data interface{}) {
	payload, err := encode(event, data)
	if err != nil {
		logrus.Errorf("[WSHub] encode broadcast %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.trySend(payload)
	}
}

// NotifyUser sends an event to the clients of one user. The lock is held
// across the sends so a concurrent disconnect cannot close a send channel
// mid-delivery; trySend never blocks, so the hold is brief.
func (h *Hub) NotifyUser(userID uint, event string, data interface{}) {
	payload, err := encode(event, data)
	if err != nil {
		logrus.Errorf("[WSHub] encode %s for user %d: %v", event, userID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.userClients[userID] {
		client.trySend(payload)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}
