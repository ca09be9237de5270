package socket

import (
	"context"
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the dashboard websocket connections and broadcasts batch events to all of them.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[string]*client),
	}
}

// Register starts the write pump for conn and returns its client id.
func (h *Hub) Register(conn *websocket.Conn) string {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go h.writePump(c)

	h.log.Info("websocket client registered", zap.String("client_id", c.id))
	return c.id
}

// Unregister closes the client's send queue; the write pump then closes the connection.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.log.Info("websocket client unregistered", zap.String("client_id", id))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements ports.EventPublisher. Clients whose queue is full miss the event.
func (h *Hub) Publish(_ context.Context, event domain.BatchEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal batch event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("websocket client queue full, dropping event",
				zap.String("client_id", c.id),
				zap.String("batch_id", event.BatchID),
			)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("websocket write failed", zap.String("client_id", c.id), zap.Error(err))
			// Drain until Unregister closes the queue.
			for range c.send {
			}
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
