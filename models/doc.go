// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines rows, wire frames, response envelopes and broadcast
payloads.

# Domain Types

  - Room: one game session, addressed by a 6-character code
  - Player: a participant; ConnectionID is nil while disconnected
  - Question: one of the room's questions for the current round
  - Answer: one scored submission (SelectedIndex -1 on timeout)
  - GeneratedQuestion: generator output before it is bound to a room

# Envelopes

Every reply embeds Result, so clients always receive

	{"success": true, ...data}
	{"success": false, "error": "Room is full"}

# Wire Frames

Requests arrive as ClientMessage ({type, ack, data}); replies and broadcasts
leave as ServerMessage ({event, ack, data}). Replies use the "ack" event and
echo the request's ack number.

# Constants

Status values:

	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"

Difficulties: easy, medium, hard.
*/
package models
