// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/store"
)

// ReapExpired deletes rooms past their expiry, and completed rooms nobody is
// connected to, and drops their in-memory state
func (c *Coordinator) ReapExpired(ctx context.Context) (int, error) {
	var codes []string
	err := c.store.InTx(ctx, func(q store.Querier) error {
		var err error
		codes, err = q.DeleteExpiredRooms(ctx, c.now())
		return err
	})
	if err != nil {
		return 0, err
	}

	for _, code := range codes {
		rs := c.lockRoom(code)
		c.broadcast(code, models.EventRoomClosed, models.RoomClosedEvent{RoomCode: code, Reason: "expired"}, "")
		c.sessions.RemoveRoom(code)
		c.release(rs)
		rs.mu.Unlock()
	}
	return len(codes), nil
}

// ReapIdle closes rooms with no live connection and repairs rooms whose
// host vanished without a pending grace period
func (c *Coordinator) ReapIdle(ctx context.Context) (int, error) {
	rooms, err := c.store.ListRooms(ctx)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, room := range rooms {
		err := c.withRoom(room.Code, func(rs *roomState) error {
			if _, err := c.loadRoom(ctx, rs); err != nil {
				if errors.Is(err, ErrRoomNotFound) {
					return nil
				}
				return err
			}

			switch {
			case c.sessions.ActiveCount(rs.code) == 0:
				reaped++
				return c.closeRoom(ctx, rs, "idle", "")
			case !c.sessions.HasActiveHost(rs.code) && !rs.machine.Grace().Armed():
				return c.promoteHost(ctx, rs)
			}
			return nil
		})
		if err != nil {
			slog.Error("idle reap failed", "room", room.Code, "error", err)
		}
	}
	return reaped, nil
}

// RunReaper runs both sweeps on their intervals until ctx is done
func (c *Coordinator) RunReaper(ctx context.Context) {
	expiry := time.NewTicker(c.cfg.ReapInterval)
	defer expiry.Stop()
	idle := time.NewTicker(c.cfg.IdleReapInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			n, err := c.ReapExpired(ctx)
			if err != nil {
				slog.Error("expired room sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("reaped expired rooms", "count", n)
			}
		case <-idle.C:
			n, err := c.ReapIdle(ctx)
			if err != nil {
				slog.Error("idle room sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("reaped idle rooms", "count", n)
			}
		}
	}
}
