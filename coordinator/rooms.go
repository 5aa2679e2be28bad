// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quizsmash/game"
	"github.com/danielhkuo/quizsmash/ident"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/session"
	"github.com/danielhkuo/quizsmash/store"
)

// CreateRoom creates a room with the caller as host
func (c *Coordinator) CreateRoom(ctx context.Context, connectionID, username string) models.CreateRoomResponse {
	resp, err := c.createRoom(ctx, connectionID, username)
	if err != nil {
		return models.CreateRoomResponse{Result: c.fail(models.RequestCreateRoom, err)}
	}
	return resp
}

func (c *Coordinator) createRoom(ctx context.Context, connectionID, username string) (models.CreateRoomResponse, error) {
	username, err := ident.NormalizeUsername(username)
	if err != nil {
		return models.CreateRoomResponse{}, ErrInvalidUsername
	}
	if _, ok := c.sessions.Lookup(connectionID); ok {
		return models.CreateRoomResponse{}, ErrAlreadyInRoom
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := ident.GenerateRoomCode()
		if err != nil {
			return models.CreateRoomResponse{}, err
		}

		var resp models.CreateRoomResponse
		err = c.withRoom(code, func(rs *roomState) error {
			var room models.Room
			var host models.Player
			err := c.store.InTx(ctx, func(q store.Querier) error {
				var err error
				room, host, err = q.CreateRoomAndHost(ctx, store.NewRoom{
					Code:               code,
					HostUsername:       username,
					ConnectionID:       connectionID,
					MaxPlayers:         models.DefaultMaxPlayers,
					TotalQuestions:     models.DefaultTotalQuestions,
					SecondsPerQuestion: seconds(c.cfg.QuestionDuration),
					PointsPerQuestion:  c.cfg.PointsPerCorrect,
					Now:                c.now(),
					TTL:                c.cfg.RoomTTL,
				})
				return err
			})
			if err != nil {
				return err
			}

			rs.roomID = room.ID
			c.sessions.Register(session.Entry{
				ConnectionID: connectionID,
				RoomCode:     code,
				PlayerID:     host.ID,
				Username:     host.Username,
				IsHost:       true,
				ConnectedAt:  c.now(),
			})

			resp = models.CreateRoomResponse{
				Result:   success,
				RoomCode: code,
				PlayerID: host.ID,
				IsHost:   true,
				Players:  models.PlayerViews([]models.Player{host}),
			}
			return nil
		})
		if errors.Is(err, store.ErrCodeTaken) {
			slog.Debug("room code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return models.CreateRoomResponse{}, err
		}

		slog.Info("room created", "room", code, "host", username)
		return resp, nil
	}

	return models.CreateRoomResponse{}, ErrCodeExhausted
}

// JoinRoom adds the caller to a room. A disconnected player with the same
// username is reattached instead of duplicated.
func (c *Coordinator) JoinRoom(ctx context.Context, connectionID string, req models.JoinRoomRequest) models.JoinRoomResponse {
	resp, err := c.joinRoom(ctx, connectionID, req, false)
	if err != nil {
		return models.JoinRoomResponse{Result: c.fail(models.RequestJoinRoom, err)}
	}
	return resp
}

// ReconnectRoom reattaches the caller to their disconnected player record
func (c *Coordinator) ReconnectRoom(ctx context.Context, connectionID string, req models.JoinRoomRequest) models.JoinRoomResponse {
	resp, err := c.joinRoom(ctx, connectionID, req, true)
	if err != nil {
		return models.JoinRoomResponse{Result: c.fail(models.RequestReconnectRoom, err)}
	}
	return resp
}

func (c *Coordinator) joinRoom(ctx context.Context, connectionID string, req models.JoinRoomRequest, reconnectOnly bool) (models.JoinRoomResponse, error) {
	code, err := ident.NormalizeRoomCode(req.RoomCode)
	if err != nil {
		return models.JoinRoomResponse{}, ErrInvalidRoomCode
	}
	username, err := ident.NormalizeUsername(req.Username)
	if err != nil {
		return models.JoinRoomResponse{}, ErrInvalidUsername
	}
	if _, ok := c.sessions.Lookup(connectionID); ok {
		return models.JoinRoomResponse{}, ErrAlreadyInRoom
	}

	var resp models.JoinRoomResponse
	err = c.withRoom(code, func(rs *roomState) error {
		room, err := c.loadRoom(ctx, rs)
		if err != nil {
			return err
		}
		if room.Expired(c.now()) {
			return ErrRoomExpired
		}

		connected, err := c.store.FindConnectedPlayers(ctx, room.ID)
		if err != nil {
			return err
		}
		for _, p := range connected {
			if p.Username == username {
				return ErrUsernameTaken
			}
		}
		if len(connected) >= room.MaxPlayers {
			return ErrRoomFull
		}

		prior, err := c.store.FindDisconnectedPlayerByUsername(ctx, room.ID, username)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		reconnected := err == nil
		if !reconnected && reconnectOnly {
			return ErrNoDisconnectedPlayer
		}

		// The reply is read inside the same transaction so a failed read
		// leaves no attached player behind
		var (
			player  models.Player
			players []models.Player
			live    *models.Question
		)
		err = c.store.InTx(ctx, func(q store.Querier) error {
			var err error
			if reconnected {
				player, err = reattach(ctx, q, prior, connectionID)
			} else {
				player, err = insertPlayer(ctx, q, room.ID, username, connectionID, c.now())
			}
			if err != nil {
				return err
			}

			if room, err = q.FindRoomByID(ctx, room.ID); err != nil {
				return err
			}
			if players, err = q.FindConnectedPlayers(ctx, room.ID); err != nil {
				return err
			}
			if rs.machine.Phase() == game.PhaseQuestionActive {
				question, err := q.FindQuestionByID(ctx, rs.machine.QuestionID())
				if err != nil {
					return err
				}
				live = &question
			}
			return nil
		})
		if errors.Is(err, store.ErrUsernameTaken) {
			return ErrUsernameTaken
		}
		if err != nil {
			return err
		}

		c.sessions.Register(session.Entry{
			ConnectionID: connectionID,
			RoomCode:     code,
			PlayerID:     player.ID,
			Username:     player.Username,
			IsHost:       player.IsHost,
			ConnectedAt:  c.now(),
		})
		if player.IsHost {
			rs.machine.Grace().Disarm()
		}

		summary := models.NewRoomSummary(room, len(players))
		views := models.PlayerViews(players)

		event := models.EventPlayerJoined
		if reconnected {
			event = models.EventPlayerReconnected
		}
		c.broadcast(code, event, models.PlayerJoinedEvent{
			Username: player.Username,
			Players:  views,
			Room:     summary,
		}, connectionID)

		resp = models.JoinRoomResponse{
			Result:      success,
			RoomCode:    code,
			PlayerID:    player.ID,
			IsHost:      player.IsHost,
			Players:     views,
			Room:        summary,
			Reconnected: reconnected,
		}

		// Mid-question joiners get the live question and what is left of it
		if live != nil {
			view := questionView(*live, rs.machine.Total())
			left := seconds(rs.machine.TimeLeft(c.now()))
			resp.CurrentQuestion = &view
			resp.TimeLeft = &left
		}

		slog.Info("player joined", "room", code, "username", username, "reconnected", reconnected)
		return nil
	})
	return resp, err
}

func insertPlayer(ctx context.Context, q store.Querier, roomID, username, connectionID string, now time.Time) (models.Player, error) {
	player, err := q.InsertPlayer(ctx, store.NewPlayer{
		RoomID:       roomID,
		Username:     username,
		ConnectionID: connectionID,
		Now:          now,
	})
	if err != nil {
		return models.Player{}, err
	}
	return player, q.IncrementPlayerCount(ctx, roomID)
}

// reattach binds the connection to a retained player. Only players who
// left explicitly count as a new seat.
func reattach(ctx context.Context, q store.Querier, prior models.Player, connectionID string) (models.Player, error) {
	player, err := q.ReattachPlayer(ctx, prior.ID, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		// Someone else picked the seat up first
		return models.Player{}, store.ErrUsernameTaken
	}
	if err != nil {
		return models.Player{}, err
	}
	if prior.LeftAt != nil {
		return player, q.IncrementPlayerCount(ctx, prior.RoomID)
	}
	return player, nil
}

// CheckRoom reports whether a room exists. It never mutates anything.
func (c *Coordinator) CheckRoom(ctx context.Context, roomCode string) models.CheckRoomResponse {
	room, err := c.FindRoom(ctx, roomCode)
	if errors.Is(err, ErrRoomNotFound) {
		return models.CheckRoomResponse{Result: success, Exists: false}
	}
	if err != nil {
		return models.CheckRoomResponse{Result: c.fail(models.RequestCheckRoom, err)}
	}
	return models.CheckRoomResponse{Result: success, Exists: true, Room: room}
}

// FindRoom summarizes a live room. Missing and expired rooms are
// ErrRoomNotFound.
func (c *Coordinator) FindRoom(ctx context.Context, roomCode string) (*models.RoomSummary, error) {
	code, err := ident.NormalizeRoomCode(roomCode)
	if err != nil {
		return nil, ErrInvalidRoomCode
	}

	room, err := c.store.FindRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) || (err == nil && room.Expired(c.now())) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return models.NewRoomSummary(room, c.sessions.ActiveCount(code)), nil
}

// ValidateRoom checks that a room can be joined right now
func (c *Coordinator) ValidateRoom(ctx context.Context, roomCode string) models.ValidateRoomResponse {
	room, err := c.Validate(ctx, roomCode)
	if err != nil {
		return models.ValidateRoomResponse{Result: c.fail("validate-room", err)}
	}
	return models.ValidateRoomResponse{Result: success, Room: room}
}

// Validate returns the summary of a joinable room, or the reason it cannot
// be joined
func (c *Coordinator) Validate(ctx context.Context, roomCode string) (*models.RoomSummary, error) {
	code, err := ident.NormalizeRoomCode(roomCode)
	if err != nil {
		return nil, ErrInvalidRoomCode
	}

	room, err := c.store.FindRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if room.Expired(c.now()) {
		return nil, ErrRoomExpired
	}
	if room.Status == models.StatusCompleted {
		return nil, ErrRoomUnavailable
	}

	connected := c.sessions.ActiveCount(code)
	if connected >= room.MaxPlayers {
		return nil, ErrRoomFull
	}
	return models.NewRoomSummary(room, connected), nil
}

// LeaveRoom removes the caller from their room. A leaving host takes the
// room down with them.
func (c *Coordinator) LeaveRoom(ctx context.Context, connectionID string) models.LeaveRoomResponse {
	deleted, err := c.leaveRoom(ctx, connectionID)
	if err != nil {
		return models.LeaveRoomResponse{Result: c.fail(models.RequestLeaveRoom, err)}
	}
	return models.LeaveRoomResponse{Result: success, RoomDeleted: deleted}
}

func (c *Coordinator) leaveRoom(ctx context.Context, connectionID string) (bool, error) {
	entry, ok := c.sessions.Lookup(connectionID)
	if !ok {
		return false, ErrNotInRoom
	}

	deleted := false
	err := c.withRoom(entry.RoomCode, func(rs *roomState) error {
		if _, ok := c.sessions.Lookup(connectionID); !ok {
			return ErrNotInRoom
		}

		if _, err := c.loadRoom(ctx, rs); err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				c.sessions.Unregister(connectionID)
				deleted = true
				return nil
			}
			return err
		}

		player, err := c.store.FindPlayer(ctx, entry.PlayerID)
		if err != nil {
			return err
		}
		if player.IsHost {
			deleted = true
			return c.closeRoom(ctx, rs, "host-left", connectionID)
		}

		now := c.now()
		err = c.store.InTx(ctx, func(q store.Querier) error {
			if err := q.DetachPlayer(ctx, player.ID, &now); err != nil {
				return err
			}
			return q.DecrementPlayerCount(ctx, rs.roomID)
		})
		if err != nil {
			return err
		}
		c.sessions.Unregister(connectionID)

		// The leave is committed; later failures are logged, not reported
		if c.sessions.ActiveCount(rs.code) == 0 {
			if err := c.closeRoom(ctx, rs, "empty", connectionID); err != nil {
				slog.Error("failed to close empty room", "room", rs.code, "error", err)
				return nil
			}
			deleted = true
			return nil
		}

		c.broadcast(rs.code, models.EventPlayerLeft, models.PlayerLeftEvent{
			Username: player.Username,
			Message:  fmt.Sprintf("%s left the room", player.Username),
		}, "")

		slog.Info("player left", "room", rs.code, "username", player.Username)
		c.afterDeparture(ctx, rs)
		return nil
	})
	return deleted, err
}

// HandleDisconnect soft-leaves whatever room the connection was in. The
// player row is kept so the same username can reconnect.
func (c *Coordinator) HandleDisconnect(connectionID string) {
	entry, ok := c.sessions.Lookup(connectionID)
	if !ok {
		return
	}

	ctx, cancel := c.callbackContext()
	defer cancel()

	err := c.withRoom(entry.RoomCode, func(rs *roomState) error {
		entry, ok := c.sessions.Unregister(connectionID)
		if !ok {
			return nil
		}

		if _, err := c.loadRoom(ctx, rs); err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				return nil
			}
			return err
		}

		if err := c.store.DetachPlayer(ctx, entry.PlayerID, nil); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if c.sessions.ActiveCount(rs.code) == 0 {
			return c.closeRoom(ctx, rs, "empty", "")
		}

		c.broadcast(rs.code, models.EventPlayerDisconnected, models.PlayerLeftEvent{
			Username: entry.Username,
			Message:  fmt.Sprintf("%s disconnected", entry.Username),
		}, "")

		if entry.IsHost {
			c.beginHostGrace(rs, entry.Username)
		}

		slog.Info("player disconnected", "room", rs.code, "username", entry.Username, "host", entry.IsHost)
		c.afterDeparture(ctx, rs)
		return nil
	})
	if err != nil {
		slog.Error("disconnect handling failed", "connection", connectionID, "error", err)
	}
}

// afterDeparture reveals early if everyone still connected has answered
func (c *Coordinator) afterDeparture(ctx context.Context, rs *roomState) {
	if rs.machine.AllAnswered(c.sessions.PlayerIDs(rs.code)) {
		c.reveal(ctx, rs, false)
	}
}

// GetActiveRooms lists joinable rooms for the lobby browser, newest first
func (c *Coordinator) GetActiveRooms(ctx context.Context) models.ActiveRoomsResponse {
	now := c.now()
	rooms, err := c.store.ListActiveRooms(ctx, now, activeRoomsLimit)
	if err != nil {
		return models.ActiveRoomsResponse{Result: c.fail(models.RequestGetActiveRooms, err), Rooms: []models.ActiveRoom{}}
	}
	for i := range rooms {
		rooms[i].CreatedAgo = humanize.RelTime(rooms[i].CreatedAt, now, "ago", "from now")
	}
	return models.ActiveRoomsResponse{Result: success, Rooms: rooms}
}
