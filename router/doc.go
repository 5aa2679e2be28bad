// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes of the quiz server.

# Route Registration

NewRouter returns the full handler, CORS included:

	handler := router.NewRouter(coord, hub, cfg)

# Endpoints

Health:

	GET /health      - plain "OK" for load balancers
	GET /api/health  - JSON status

Game traffic (websocket, see package handlers for the frame format):

	GET /ws

Lobby (read-only):

	GET  /api/rooms/active   - Joinable rooms, newest first
	GET  /api/rooms/{code}   - Room summary
	POST /api/rooms/validate - Can this code be joined right now

Every route except /ws and /health is wrapped with middleware.WithLogging.
*/
package router
