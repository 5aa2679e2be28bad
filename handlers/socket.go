// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/ident"
	"github.com/danielhkuo/quizsmash/middleware"
	"github.com/danielhkuo/quizsmash/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// SocketHandler upgrades clients to websockets and feeds their requests to
// the coordinator
type SocketHandler struct {
	coord    *coordinator.Coordinator
	hub      *Hub
	cfg      cliparse.Config
	upgrader websocket.Upgrader
}

func NewSocketHandler(coord *coordinator.Coordinator, hub *Hub, cfg cliparse.Config) *SocketHandler {
	h := &SocketHandler{coord: coord, hub: hub, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS handles GET /ws. It returns when the connection closes.
func (h *SocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		slog.Warn("websocket upgrade failed", "remote", middleware.GetClientIP(r), "error", err)
		return
	}

	c := &client{
		id:   ident.NewID(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.hub.register(c)
	slog.Info("connection opened", "connection_id", c.id, "remote", middleware.GetClientIP(r))

	go h.writePump(c)
	h.readPump(c)
}

// readPump handles one request at a time, so a connection's requests are
// answered in the order they were sent
func (h *SocketHandler) readPump(c *client) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.hub.unregister(c.id)
		c.conn.Close()
		h.coord.HandleDisconnect(c.id)
		slog.Info("connection closed", "connection_id", c.id)
	}()

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MessageRate), h.cfg.MessageBurst)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "connection_id", c.id, "error", err)
			}
			return
		}

		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.hub.reply(c.id, 0, models.Failure(coordinator.Message(coordinator.ErrBadRequest)))
			continue
		}
		if !limiter.Allow() {
			slog.Debug("request rate limited", "connection_id", c.id, "type", msg.Type)
			h.hub.reply(c.id, msg.Ack, models.Failure(coordinator.Message(coordinator.ErrRateLimited)))
			continue
		}

		h.hub.reply(c.id, msg.Ack, h.dispatch(ctx, c.id, msg))
	}
}

func (h *SocketHandler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch runs one request and returns its reply
func (h *SocketHandler) dispatch(ctx context.Context, connID string, msg models.ClientMessage) interface{} {
	switch msg.Type {
	case models.RequestCreateRoom:
		var req models.CreateRoomRequest
		if err := decode(msg.Data, &req); err != nil {
			return badRequest()
		}
		return h.coord.CreateRoom(ctx, connID, req.Username)

	case models.RequestJoinRoom, models.RequestReconnectRoom:
		var req models.JoinRoomRequest
		if err := decode(msg.Data, &req); err != nil {
			return badRequest()
		}
		if msg.Type == models.RequestReconnectRoom {
			return h.coord.ReconnectRoom(ctx, connID, req)
		}
		return h.coord.JoinRoom(ctx, connID, req)

	case models.RequestCheckRoom:
		var req models.CheckRoomRequest
		if err := decode(msg.Data, &req); err != nil {
			return badRequest()
		}
		return h.coord.CheckRoom(ctx, req.RoomCode)

	case models.RequestStartGame, models.RequestStartNextRound:
		var req models.StartGameRequest
		if err := decode(msg.Data, &req); err != nil {
			return badRequest()
		}
		if msg.Type == models.RequestStartNextRound {
			return h.coord.StartNextRound(ctx, connID, req)
		}
		return h.coord.StartGame(ctx, connID, req)

	case models.RequestSubmitAnswer:
		var req models.SubmitAnswerRequest
		if err := decode(msg.Data, &req); err != nil {
			return badRequest()
		}
		return h.coord.SubmitAnswer(ctx, connID, req)

	case models.RequestLeaveRoom:
		return h.coord.LeaveRoom(ctx, connID)

	case models.RequestGetActiveRooms:
		return h.coord.GetActiveRooms(ctx)
	}

	slog.Debug("unknown request type", "connection_id", connID, "type", msg.Type)
	return models.Failure(coordinator.Message(coordinator.ErrUnknownRequest))
}

// decode unmarshals request data. Absent data leaves v zeroed.
func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func badRequest() models.Result {
	return models.Failure(coordinator.Message(coordinator.ErrBadRequest))
}
