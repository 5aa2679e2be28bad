// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/game"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/quizgen"
	"github.com/danielhkuo/quizsmash/session"
	"github.com/danielhkuo/quizsmash/store"
)

const (
	maxCodeAttempts  = 10
	activeRoomsLimit = 50

	// Bound on store work done from timer callbacks
	callbackTimeout = 10 * time.Second
)

var success = models.Result{Success: true}

// Notifier delivers an event to one connection. Send must not block.
type Notifier interface {
	Send(connectionID, event string, payload interface{})
}

// roomState serializes everything that happens to one room
type roomState struct {
	mu      sync.Mutex
	code    string
	roomID  string // empty until the room row is loaded
	machine *game.Machine
	closed  bool
}

// Coordinator turns client requests and timer expiries into store
// transactions, game transitions and broadcasts
type Coordinator struct {
	store    store.Repository
	gen      quizgen.Generator
	sessions *session.Registry
	notifier Notifier
	cfg      cliparse.Config
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	rooms map[string]*roomState
}

func New(repo store.Repository, gen quizgen.Generator, sessions *session.Registry, notifier Notifier, cfg cliparse.Config) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:    repo,
		gen:      gen,
		sessions: sessions,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		rooms:    make(map[string]*roomState),
	}
}

// Close stops every room timer. Timer callbacks that are already running
// finish; later ones do nothing.
func (c *Coordinator) Close() {
	c.cancel()

	c.mu.Lock()
	states := make([]*roomState, 0, len(c.rooms))
	for _, rs := range c.rooms {
		states = append(states, rs)
	}
	c.mu.Unlock()

	for _, rs := range states {
		rs.mu.Lock()
		c.release(rs)
		rs.mu.Unlock()
	}
}

// lockRoom returns the locked state for code, creating it if needed
func (c *Coordinator) lockRoom(code string) *roomState {
	for {
		c.mu.Lock()
		rs, ok := c.rooms[code]
		if !ok {
			rs = &roomState{code: code, machine: game.NewMachine()}
			c.rooms[code] = rs
		}
		c.mu.Unlock()

		rs.mu.Lock()
		if !rs.closed {
			return rs
		}
		// Released while we waited; the map no longer holds it
		rs.mu.Unlock()
	}
}

// release retires a room state. rs.mu must be held.
func (c *Coordinator) release(rs *roomState) {
	rs.closed = true
	rs.machine.Stop()

	c.mu.Lock()
	if c.rooms[rs.code] == rs {
		delete(c.rooms, rs.code)
	}
	c.mu.Unlock()
}

// withRoom runs fn with the room locked. States that never got bound to a
// stored room are dropped afterwards.
func (c *Coordinator) withRoom(code string, fn func(rs *roomState) error) error {
	rs := c.lockRoom(code)
	defer rs.mu.Unlock()

	err := fn(rs)
	if rs.roomID == "" && !rs.closed {
		c.release(rs)
	}
	return err
}

// loadRoom reads the room row and binds rs to it
func (c *Coordinator) loadRoom(ctx context.Context, rs *roomState) (models.Room, error) {
	room, err := c.store.FindRoomByCode(ctx, rs.code)
	if errors.Is(err, store.ErrNotFound) {
		rs.machine.Stop()
		rs.roomID = ""
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, err
	}

	if rs.roomID != "" && rs.roomID != room.ID {
		// Same code, different room
		rs.machine.Stop()
		rs.machine = game.NewMachine()
	}
	rs.roomID = room.ID
	return room, nil
}

// closeRoom deletes the room and tells everyone but except. rs.mu must be
// held.
func (c *Coordinator) closeRoom(ctx context.Context, rs *roomState, reason, except string) error {
	if _, err := c.store.DeleteRoom(ctx, rs.code); err != nil {
		return err
	}

	c.broadcast(rs.code, models.EventRoomClosed, models.RoomClosedEvent{
		RoomCode: rs.code,
		Reason:   reason,
	}, except)
	c.sessions.RemoveRoom(rs.code)
	c.release(rs)

	slog.Info("room closed", "room", rs.code, "reason", reason)
	return nil
}

// broadcast sends an event to every live connection of the room except one
func (c *Coordinator) broadcast(code, event string, payload interface{}, except string) {
	for _, e := range c.sessions.Connections(code) {
		if e.ConnectionID == except {
			continue
		}
		c.notifier.Send(e.ConnectionID, event, payload)
	}
}

// fail logs unexpected errors and builds the error envelope
func (c *Coordinator) fail(op string, err error) models.Result {
	var ue *Error
	if errors.As(err, &ue) {
		slog.Debug("request rejected", "op", op, "reason", ue.msg)
	} else {
		slog.Error("request failed", "op", op, "error", err)
	}
	return models.Failure(Message(err))
}

// callbackContext bounds store work started by a timer
func (c *Coordinator) callbackContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, callbackTimeout)
}

// seconds rounds up so a running question never reports zero early
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func questionView(q models.Question, total int) models.QuestionView {
	return models.QuestionView{
		ID:             q.ID,
		QuestionNumber: q.QuestionNumber,
		TotalQuestions: total,
		Text:           q.Text,
		Options:        q.Options,
	}
}
