package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Client is a feed subscriber.
type Client struct {
	conn   *websocket.Conn
	id     string
	send   chan Message
	logger *zap.Logger
}

// Hub tracks feed subscribers and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("feed client connected", zap.String("client_id", c.id))
}

// Unregister removes a client and closes its send channel. Unregistering an
// unknown client is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("feed client disconnected", zap.String("client_id", c.id))
}

// Broadcast queues msg for every client. Clients whose buffer is full miss
// the message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("client send buffer full, dropping message",
				zap.String("client_id", c.id),
				zap.String("type", string(msg.Type)))
		}
	}
}

// CloseAll unregisters every client, which ends their write pumps.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump forwards queued messages until the channel closes, ctx ends, or
// a write fails.
func (c *Client) writePump(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := writeMessage(ctx, c.conn, timeout, msg); err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}
		}
	}
}

// readPump drains the connection to notice the client going away.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, timeout time.Duration, msg Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
