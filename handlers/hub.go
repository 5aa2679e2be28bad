// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quizsmash/models"
)

// Frames queued per connection before it is considered too slow
const sendBuffer = 256

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub routes outbound frames to live websocket connections. It satisfies
// the coordinator's Notifier: Send never blocks, and a connection whose
// queue is full is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// unregister closes the connection's queue, which ends its write pump.
// Only the first call for a connection has any effect.
func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *Hub) removeLocked(id string) {
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
}

// Send delivers a broadcast event to one connection
func (h *Hub) Send(connectionID, event string, payload interface{}) {
	h.deliver(connectionID, models.ServerMessage{Event: event, Data: payload})
}

// reply answers a client request carrying the request's ack id
func (h *Hub) reply(connectionID string, ack int64, data interface{}) {
	h.deliver(connectionID, models.ServerMessage{Event: models.EventAck, Ack: ack, Data: data})
}

func (h *Hub) deliver(connectionID string, msg models.ServerMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode frame", "event", msg.Event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		slog.Warn("dropping slow connection", "connection_id", connectionID, "event", msg.Event)
		h.removeLocked(connectionID)
	}
}

// Len returns the number of live connections
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
