// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/middleware"
	"github.com/danielhkuo/quizsmash/models"
)

type RoomHandler struct {
	coord *coordinator.Coordinator
	now   func() time.Time
}

func NewRoomHandler(coord *coordinator.Coordinator) *RoomHandler {
	return &RoomHandler{coord: coord, now: time.Now}
}

// Health handles GET /api/health
func (h *RoomHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, models.HealthResponse{
		Status:    "OK",
		Message:   "QuizSmash server is running",
		Timestamp: h.now().UTC(),
	})
}

// GetActiveRooms handles GET /api/rooms/active
func (h *RoomHandler) GetActiveRooms(w http.ResponseWriter, r *http.Request) {
	resp := h.coord.GetActiveRooms(r.Context())
	if !resp.Success {
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch active rooms")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// GetRoom handles GET /api/rooms/{code}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.coord.FindRoom(r.Context(), r.PathValue("code"))
	if errors.Is(err, coordinator.ErrRoomNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, coordinator.Message(err))
		return
	}
	if err != nil {
		logFailure("get room", err)
		middleware.ErrorResponse(w, statusFor(err), coordinator.Message(err))
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.CheckRoomResponse{
		Result: models.Result{Success: true},
		Exists: true,
		Room:   room,
	})
}

// ValidateRoom handles POST /api/rooms/validate. A well-formed code that
// cannot be joined is still a 200 with success false.
func (h *RoomHandler) ValidateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateRoomRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	room, err := h.coord.Validate(r.Context(), req.Code)
	if err != nil {
		logFailure("validate room", err)
		middleware.JSONResponse(w, statusFor(err), models.ValidateRoomResponse{
			Result: models.Failure(coordinator.Message(err)),
		})
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ValidateRoomResponse{
		Result: models.Result{Success: true},
		Room:   room,
	})
}

// statusFor maps a coordinator error to the HTTP status it is served with.
// Rejections the requester may see are a 200 with success false.
func statusFor(err error) int {
	var ue *coordinator.Error
	switch {
	case errors.Is(err, coordinator.ErrInvalidRoomCode):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func logFailure(op string, err error) {
	var ue *coordinator.Error
	if errors.As(err, &ue) {
		return
	}
	slog.Error("request failed", "op", op, "error", err)
}
