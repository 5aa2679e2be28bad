// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ident

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RoomCodeAlphabet is the set of characters a room code is sampled from
const RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	RoomCodeLength    = 6
	MinUsernameLength = 2
	MaxUsernameLength = 20
)

var (
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrUsernameLength  = fmt.Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
)

// NewID returns a random UUID string for a database record or connection
func NewID() string {
	return uuid.NewString()
}

// GenerateRoomCode samples a RoomCodeLength code from RoomCodeAlphabet
func GenerateRoomCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(RoomCodeAlphabet)))
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = RoomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeRoomCode trims and upper-cases user input and checks its shape
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != RoomCodeLength {
		return "", ErrInvalidRoomCode
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(RoomCodeAlphabet, code[i]) < 0 {
			return "", ErrInvalidRoomCode
		}
	}
	return code, nil
}

// NormalizeUsername trims whitespace and enforces the length bounds.
// Length is counted in runes so non-ASCII names are not penalized.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return "", ErrUsernameLength
	}
	return name, nil
}
