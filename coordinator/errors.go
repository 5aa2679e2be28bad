// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"errors"
	"fmt"

	"github.com/danielhkuo/quizsmash/ident"
)

// Error is a failure the requester is allowed to see verbatim
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func userError(msg string) error {
	return &Error{msg: msg}
}

var (
	ErrInvalidUsername = userError(fmt.Sprintf("Username must be between %d and %d characters",
		ident.MinUsernameLength, ident.MaxUsernameLength))
	ErrInvalidRoomCode      = userError("Invalid room code")
	ErrRoomNotFound         = userError("Room not found")
	ErrRoomExpired          = userError("Room has expired")
	ErrRoomFull             = userError("Room is full")
	ErrRoomUnavailable      = userError("Room is no longer accepting players")
	ErrUsernameTaken        = userError("Username already taken in this room")
	ErrNoDisconnectedPlayer = userError("No disconnected player with that username")
	ErrAlreadyInRoom        = userError("Already in a room")
	ErrNotInRoom            = userError("You are not in a room")
	ErrNotHost              = userError("Only the host can start the game")
	ErrTopicRequired        = userError("Topic is required")
	ErrInvalidDifficulty    = userError("Difficulty must be easy, medium or hard")
	ErrGameActive           = userError("Game is already in progress")
	ErrRoundNotComplete     = userError("The current round is not complete")
	ErrStartPending         = userError("Game is already starting")
	ErrStartCancelled       = userError("Game start was cancelled")
	ErrGenerationFailed     = userError("Failed to generate questions")
	ErrNoActiveQuestion     = userError("No active question")
	ErrQuestionMismatch     = userError("Question is not active in your room")
	ErrInvalidAnswer        = userError("Answer index must be between 0 and 3")
	ErrAlreadyAnswered      = userError("You have already answered this question")
	ErrCodeExhausted        = userError("Could not allocate a room code, please try again")
	ErrRateLimited          = userError("Too many requests")
	ErrUnknownRequest       = userError("Unknown request type")
	ErrBadRequest           = userError("Invalid request data")
)

const InternalMessage = "Internal server error"

// Message converts err into the text shown to the requester. Anything that
// is not an *Error is reported generically.
func Message(err error) string {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.msg
	}
	return InternalMessage
}
