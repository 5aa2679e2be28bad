// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package game holds the per-room round state machine.

	Lobby -> QuestionActive(1) -> Reveal(1) -> QuestionActive(2) -> ... -> Completed
	Completed -> Reveal(0) -> QuestionActive(1)   (next round)

A Machine does no I/O and takes no locks. The room coordinator owns one per
room, mutates it under the room's mutex and persists the results.

Timers hand their sequence number to the callback. A callback that lost the
race against a re-arm or an early reveal sees Fire return false and exits.
*/
package game
