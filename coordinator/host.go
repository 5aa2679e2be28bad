// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quizsmash/models"
)

// beginHostGrace tells the room the host is gone and gives them
// HostGracePeriod to come back before someone else is promoted
func (c *Coordinator) beginHostGrace(rs *roomState, username string) {
	grace := c.cfg.HostGracePeriod
	c.broadcast(rs.code, models.EventHostDisconnected, models.HostDisconnectedEvent{
		Username:     username,
		Message:      fmt.Sprintf("Host %s disconnected", username),
		GraceSeconds: seconds(grace),
	}, "")

	code := rs.code
	rs.machine.Grace().Arm(grace, func(seq uint64) { c.onHostGrace(code, seq) })
}

func (c *Coordinator) onHostGrace(code string, seq uint64) {
	if c.ctx.Err() != nil {
		return
	}
	ctx, cancel := c.callbackContext()
	defer cancel()

	err := c.withRoom(code, func(rs *roomState) error {
		if !rs.machine.Grace().Fire(seq) || c.sessions.HasActiveHost(code) {
			return nil
		}
		return c.promoteHost(ctx, rs)
	})
	if err != nil {
		slog.Error("host promotion failed", "room", code, "error", err)
	}
}

// promoteHost hands host authority to the longest-connected player, or
// closes the room if nobody is left. rs.mu must be held.
func (c *Coordinator) promoteHost(ctx context.Context, rs *roomState) error {
	conns := c.sessions.Connections(rs.code)
	if len(conns) == 0 {
		return c.closeRoom(ctx, rs, "empty", "")
	}
	next := conns[0]

	if err := c.store.SetRoomHost(ctx, rs.roomID, next.PlayerID); err != nil {
		return err
	}
	c.sessions.SetHost(rs.code, next.PlayerID)

	players, err := c.store.FindConnectedPlayers(ctx, rs.roomID)
	if err != nil {
		return err
	}
	c.broadcast(rs.code, models.EventHostChanged, models.HostChangedEvent{
		PlayerID: next.PlayerID,
		Username: next.Username,
		Players:  models.PlayerViews(players),
	}, "")

	slog.Info("host promoted", "room", rs.code, "username", next.Username)
	return nil
}
