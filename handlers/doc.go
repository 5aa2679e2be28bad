// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers is the transport layer: the websocket endpoint every game
client talks to, and a few read-only HTTP endpoints for the lobby.

# Websocket

	GET /ws → SocketHandler.ServeWS

Each connection gets a fresh connection id. Clients send request frames

	{"type": "join-room", "ack": 7, "data": {"roomCode": "ABC123", "username": "alice"}}

and receive the reply as

	{"event": "ack", "ack": 7, "data": {"success": true, ...}}

Broadcasts arrive as {"event": "new-question", "data": {...}}.

Requests on one connection are handled in order. Each connection has its
own token bucket; requests over the limit are answered with
"Too many requests" without reaching the coordinator. Frames are capped at
8 KiB and the server pings every 54 seconds.

The Hub is the coordinator's Notifier. Each connection has a bounded
outbound queue; a connection that lets it fill up is closed.

# HTTP

	GET  /api/health         → RoomHandler.Health
	GET  /api/rooms/active   → RoomHandler.GetActiveRooms
	GET  /api/rooms/{code}   → RoomHandler.GetRoom
	POST /api/rooms/validate → RoomHandler.ValidateRoom
*/
package handlers
