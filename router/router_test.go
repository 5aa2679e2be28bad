// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/handlers"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/session"
	"github.com/danielhkuo/quizsmash/store"
	"github.com/danielhkuo/quizsmash/testutil"
)

func setupRouter(t *testing.T) (http.Handler, *coordinator.Coordinator) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	hub := handlers.NewHub()
	coord := coordinator.New(store.New(db), &testutil.StaticGenerator{}, session.NewRegistry(), hub, cfg)
	t.Cleanup(coord.Close)

	return NewRouter(coord, hub, cfg), coord
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	expected := "quizsmash API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestUnknownPath(t *testing.T) {
	mux, _ := setupRouter(t)

	req := httptest.NewRequest("GET", "/polls/abc", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := setupRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/"},
		{"GET", "/api/health"},
		{"GET", "/api/rooms/active"},
		{"GET", "/api/rooms/ABC123"},
		{"POST", "/api/rooms/validate"},
		// Plain GET without upgrade headers is rejected by the upgrader, not the mux
		{"GET", "/ws"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := setupRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"POST", "/ws"},
		{"DELETE", "/api/rooms/ABC123"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestActiveRoomsNotShadowedByCode(t *testing.T) {
	mux, coord := setupRouter(t)

	created := coord.CreateRoom(context.Background(), "c1", "alice")
	if !created.Success {
		t.Fatalf("CreateRoom failed: %s", created.Error)
	}

	req := httptest.NewRequest("GET", "/api/rooms/active", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.ActiveRoomsResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Rooms) != 1 || resp.Rooms[0].Code != created.RoomCode {
		t.Errorf("Expected active room %s, got %+v", created.RoomCode, resp.Rooms)
	}

	req = httptest.NewRequest("GET", "/api/rooms/"+strings.ToLower(created.RoomCode), nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	var check models.CheckRoomResponse
	if err := json.NewDecoder(w.Body).Decode(&check); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !check.Exists || check.Room.Code != created.RoomCode {
		t.Errorf("Expected room %s to exist, got %+v", created.RoomCode, check)
	}
}

func TestCORSApplied(t *testing.T) {
	mux, _ := setupRouter(t)

	req := httptest.NewRequest("OPTIONS", "/api/rooms/validate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected preflight 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Expected origin to be allowed, got '%s'", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
