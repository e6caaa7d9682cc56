package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"

	"github.com/feedwatch/feedwatch/internal/feed"
)

const clientSendBuffer = 64

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.RemoveClient(c)
			return
		}
	}
}

// Hub fans generated messages out to SSE subscribers (through go-sse) and
// to WebSocket clients. A WebSocket client whose buffer is full is dropped.
type Hub struct {
	sse *sse.Server
	log *zerolog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub publishing SSE frames on s.
func NewHub(s *sse.Server, logger *zerolog.Logger) *Hub {
	return &Hub{
		sse:     s,
		log:     logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// AddClient registers a WebSocket connection and starts its write pump.
func (h *Hub) AddClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{
		id:   uuid.New(),
		conn: conn,
		hub:  h,
		send: make(chan []byte, clientSendBuffer),
	}
	go c.writePump()

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// RemoveClient unregisters c and stops its write pump. Safe to call twice.
func (h *Hub) RemoveClient(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements mock.Sink.
func (h *Hub) Publish(msg feed.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal message")
		return
	}

	ev := &sse.Message{}
	ev.AppendData(string(data))
	if err := h.sse.Publish(ev); err != nil {
		h.log.Warn().Err(err).Msg("sse publish failed")
	}

	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send.
	var slow []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("client", c.id.String()).Msg("ws client too slow, disconnecting")
		h.RemoveClient(c)
	}
}
