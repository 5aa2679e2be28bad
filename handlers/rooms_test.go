// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/testutil"
)

func setupRoomHandler(t *testing.T) (*RoomHandler, string) {
	t.Helper()
	_, coord, _ := newTestServer(t)

	created := coord.CreateRoom(context.Background(), "host-conn", "alice")
	require.True(t, created.Success, created.Error)

	return NewRoomHandler(coord), created.RoomCode
}

func TestHealth(t *testing.T) {
	h, _ := setupRoomHandler(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	w := httptest.NewRecorder()
	h.Health(w, testutil.MakeRequest("GET", "/api/health", nil, nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.HealthResponse
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, "OK", resp.Status)
	assert.True(t, resp.Timestamp.Equal(fixed))
}

func TestGetActiveRooms(t *testing.T) {
	h, code := setupRoomHandler(t)

	w := httptest.NewRecorder()
	h.GetActiveRooms(w, testutil.MakeRequest("GET", "/api/rooms/active", nil, nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.ActiveRoomsResponse
	testutil.AssertJSON(t, w, &resp)
	assert.True(t, resp.Success)
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, code, resp.Rooms[0].Code)
	assert.Equal(t, "alice", resp.Rooms[0].HostUsername)
}

func TestGetRoom(t *testing.T) {
	h, code := setupRoomHandler(t)

	testCases := []struct {
		name           string
		code           string
		expectedStatus int
	}{
		{"existing room", code, http.StatusOK},
		{"lowercase code", strings.ToLower(code), http.StatusOK},
		{"unknown room", "ZZZZZ9", http.StatusNotFound},
		{"malformed code", "ab", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/api/rooms/"+tc.code, nil, nil)
			req.SetPathValue("code", tc.code)
			w := httptest.NewRecorder()

			h.GetRoom(w, req)

			testutil.AssertStatus(t, w, tc.expectedStatus)
			if tc.expectedStatus != http.StatusOK {
				return
			}
			var resp models.CheckRoomResponse
			testutil.AssertJSON(t, w, &resp)
			assert.True(t, resp.Exists)
			require.NotNil(t, resp.Room)
			assert.Equal(t, code, resp.Room.Code)
			assert.Equal(t, 1, resp.Room.CurrentPlayers)
		})
	}
}

func TestValidateRoom(t *testing.T) {
	h, code := setupRoomHandler(t)

	testCases := []struct {
		name           string
		body           interface{}
		expectedStatus int
		success        bool
		errMsg         string
	}{
		{"joinable", models.ValidateRoomRequest{Code: code}, http.StatusOK, true, ""},
		{"unknown room", models.ValidateRoomRequest{Code: "ZZZZZ9"}, http.StatusOK, false, "Room not found"},
		{"malformed code", models.ValidateRoomRequest{Code: "ab"}, http.StatusBadRequest, false, "Invalid room code"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ValidateRoom(w, testutil.MakeRequest("POST", "/api/rooms/validate", tc.body, nil))

			testutil.AssertStatus(t, w, tc.expectedStatus)
			var resp models.ValidateRoomResponse
			testutil.AssertJSON(t, w, &resp)
			assert.Equal(t, tc.success, resp.Success)
			assert.Equal(t, tc.errMsg, resp.Error)
			if tc.success {
				require.NotNil(t, resp.Room)
				assert.Equal(t, "alice", resp.Room.HostUsername)
			}
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/rooms/validate", strings.NewReader("{nope"))
		w := httptest.NewRecorder()

		h.ValidateRoom(w, req)

		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid code", coordinator.ErrInvalidRoomCode, http.StatusBadRequest},
		{"wrapped invalid code", fmt.Errorf("lookup: %w", coordinator.ErrInvalidRoomCode), http.StatusBadRequest},
		{"room full", coordinator.ErrRoomFull, http.StatusOK},
		{"room not found", coordinator.ErrRoomNotFound, http.StatusOK},
		{"wrapped user error", fmt.Errorf("validate: %w", coordinator.ErrRoomExpired), http.StatusOK},
		{"storage failure", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
