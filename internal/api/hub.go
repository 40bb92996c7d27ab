package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// clientBuffer is how many messages a slow client may fall behind before
// messages to it are dropped.
const clientBuffer = 16

// Hub fans live messages out to every connected websocket client. A client
// that cannot keep up misses messages rather than stalling the others.
type Hub struct {
	mu      sync.Mutex
	clients map[string]chan []byte
	closed  bool
	logf    func(format string, v ...interface{})
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]chan []byte),
		logf:    monitoring.Component("hub"),
	}
}

// Subscribe registers a new client channel. The id is used to unsubscribe.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.clients[id] = ch
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

// Clients returns the number of subscribed clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast encodes msg once and offers it to every client.
func (h *Hub) Broadcast(msg telemetry.LiveMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logf("failed to encode live message: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			h.logf("client %s is behind, dropping message", id)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// ServeHTTP upgrades the request to a websocket and streams live messages
// until either side goes away. Anything the client sends is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logf("websocket accept: %v", err)
		return
	}
	defer c.CloseNow()

	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)
	h.logf("client %s connected (%d total)", id, h.Clients())

	// CloseRead discards client messages and cancels ctx once the client
	// closes.
	ctx := c.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			h.logf("client %s disconnected", id)
			return
		case payload, ok := <-ch:
			if !ok {
				c.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeTimeout(ctx, c, payload); err != nil {
				h.logf("client %s write failed: %v", id, err)
				return
			}
		}
	}
}

func writeTimeout(ctx context.Context, c *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, payload)
}
