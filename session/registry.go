// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"sort"
	"sync"
	"time"
)

// Entry is one live connection bound to a player of a room
type Entry struct {
	ConnectionID string
	RoomCode     string
	PlayerID     string
	Username     string
	IsHost       bool
	ConnectedAt  time.Time
}

// Registry tracks which connections are live in which room. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Entry               // connection id -> entry
	rooms map[string]map[string]struct{} // room code -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Entry),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Register adds or overwrites the entry for e.ConnectionID. A connection
// lives in one room at a time; registering it elsewhere moves it.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[e.ConnectionID]; ok {
		if old.RoomCode != e.RoomCode {
			r.removeLocked(old)
		} else if e.ConnectedAt.IsZero() {
			e.ConnectedAt = old.ConnectedAt
		}
	}
	if e.ConnectedAt.IsZero() {
		e.ConnectedAt = time.Now()
	}

	r.conns[e.ConnectionID] = e
	set, ok := r.rooms[e.RoomCode]
	if !ok {
		set = make(map[string]struct{})
		r.rooms[e.RoomCode] = set
	}
	set[e.ConnectionID] = struct{}{}
}

// Unregister removes the connection and returns its entry
func (r *Registry) Unregister(connectionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connectionID]
	if ok {
		r.removeLocked(e)
	}
	return e, ok
}

func (r *Registry) removeLocked(e Entry) {
	delete(r.conns, e.ConnectionID)
	if set, ok := r.rooms[e.RoomCode]; ok {
		delete(set, e.ConnectionID)
		if len(set) == 0 {
			delete(r.rooms, e.RoomCode)
		}
	}
}

func (r *Registry) Lookup(connectionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connectionID]
	return e, ok
}

// ActiveCount returns the number of live connections in the room
func (r *Registry) ActiveCount(roomCode string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomCode])
}

// HasActiveHost reports whether a host connection is live in the room
func (r *Registry) HasActiveHost(roomCode string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.rooms[roomCode] {
		if r.conns[id].IsHost {
			return true
		}
	}
	return false
}

// Connections returns the room's entries, longest connected first
func (r *Registry) Connections(roomCode string) []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.rooms[roomCode]))
	for id := range r.rooms[roomCode] {
		entries = append(entries, r.conns[id])
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ConnectedAt.Equal(entries[j].ConnectedAt) {
			return entries[i].ConnectionID < entries[j].ConnectionID
		}
		return entries[i].ConnectedAt.Before(entries[j].ConnectedAt)
	})
	return entries
}

// PlayerIDs returns the ids of the room's connected players
func (r *Registry) PlayerIDs(roomCode string) []string {
	entries := r.Connections(roomCode)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PlayerID)
	}
	return ids
}

// SetHost moves the host flag of the room to the given player
func (r *Registry) SetHost(roomCode, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.rooms[roomCode] {
		e := r.conns[id]
		e.IsHost = e.PlayerID == playerID
		r.conns[id] = e
	}
}

// RemoveRoom drops every connection of the room and returns them
func (r *Registry) RemoveRoom(roomCode string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Entry
	for id := range r.rooms[roomCode] {
		removed = append(removed, r.conns[id])
		delete(r.conns, id)
	}
	delete(r.rooms, roomCode)
	return removed
}

// Rooms returns the codes of rooms with at least one live connection
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the total number of live connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
