// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/db"
	"github.com/danielhkuo/quizsmash/models"
)

// SetupTestDB creates a fresh SQLite database with the full schema in the
// test's temp dir. It is closed when the test finishes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "quizsmash_test.db")
	conn, err := db.Open(cliparse.DatabaseSQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a configuration with game timings shrunk so tests
// can walk through whole rounds quickly
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              8080,
		DatabaseType:      cliparse.DatabaseSQLite,
		DatabaseURL:       "file::memory:",
		GenerationTimeout: 200 * time.Millisecond,
		QuestionDuration:  300 * time.Millisecond,
		RevealDelay:       30 * time.Millisecond,
		RoundIntroDelay:   30 * time.Millisecond,
		HostGracePeriod:   100 * time.Millisecond,
		PointsPerCorrect:  10,
		RoomTTL:           time.Hour,
		ReapInterval:      time.Hour,
		IdleReapInterval:  time.Hour,
		MessageRate:       100,
		MessageBurst:      100,
		AllowedOrigins:    []string{"*"},
		LogFormat:         "text",
		LogLevel:          "error",
	}
}

// Event is one message captured by Recorder
type Event struct {
	ConnectionID string
	Name         string
	Payload      interface{}
}

// Recorder captures everything sent to connections
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Send(connectionID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{ConnectionID: connectionID, Name: event, Payload: payload})
}

// Events returns a copy of all captured events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// For returns the events sent to one connection, optionally filtered by name
func (r *Recorder) For(connectionID string, names ...string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.ConnectionID != connectionID {
			continue
		}
		if len(names) > 0 && !contains(names, e.Name) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Count returns how many events with the name were sent to the connection
func (r *Recorder) Count(connectionID, name string) int {
	return len(r.For(connectionID, name))
}

// Last returns the latest event with the name sent to the connection
func (r *Recorder) Last(connectionID, name string) (Event, bool) {
	events := r.For(connectionID, name)
	if len(events) == 0 {
		return Event{}, false
	}
	return events[len(events)-1], true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// StaticGenerator returns the same questions for every topic. The correct
// answer of question i is i % 4.
type StaticGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *StaticGenerator) Generate(ctx context.Context, topic, difficulty string, count int) ([]models.GeneratedQuestion, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	out := make([]models.GeneratedQuestion, count)
	for i := range out {
		out[i] = models.GeneratedQuestion{
			Question:     fmt.Sprintf("%s question %d (%s)?", topic, i+1, difficulty),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % models.OptionCount,
		}
	}
	return out, nil
}

// Calls returns how many times Generate ran
func (g *StaticGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// FailingGenerator always fails
type FailingGenerator struct {
	Err error
}

func (g FailingGenerator) Generate(ctx context.Context, topic, difficulty string, count int) ([]models.GeneratedQuestion, error) {
	return nil, g.Err
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
