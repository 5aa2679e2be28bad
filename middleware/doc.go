// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /api/health", middleware.WithLogging(handler))

Logs the request at debug level and its completion (status, duration_ms)
at info level. The websocket endpoint is not wrapped.

# CORS Middleware

Enable cross-origin requests from the configured frontends:

	handler := middleware.CORS(cfg.AllowedOrigins, mux)

OriginAllowed applies the same allow list to websocket upgrades.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.ValidateRoomRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Checks X-Forwarded-For, then X-Real-IP, then RemoteAddr. Used for
connection logging.
*/
package middleware
