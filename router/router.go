// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/handlers"
	"github.com/danielhkuo/quizsmash/middleware"
)

// NewRouter wires the websocket endpoint and the lobby API. The returned
// handler applies CORS for cfg.AllowedOrigins.
func NewRouter(coord *coordinator.Coordinator, hub *handlers.Hub, cfg cliparse.Config) http.Handler {
	mux := http.NewServeMux()

	socketHandler := handlers.NewSocketHandler(coord, hub, cfg)
	roomHandler := handlers.NewRoomHandler(coord)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/health", middleware.WithLogging(roomHandler.Health))

	// Game traffic
	mux.HandleFunc("GET /ws", socketHandler.ServeWS)

	// Lobby (read-only)
	mux.HandleFunc("GET /api/rooms/active", middleware.WithLogging(roomHandler.GetActiveRooms))
	mux.HandleFunc("GET /api/rooms/{code}", middleware.WithLogging(roomHandler.GetRoom))
	mux.HandleFunc("POST /api/rooms/validate", middleware.WithLogging(roomHandler.ValidateRoom))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quizsmash API v1"))
	})

	return middleware.CORS(cfg.AllowedOrigins, mux)
}
