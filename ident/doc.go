// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ident generates identifiers and validates user-supplied names.

# Room Codes

Room codes are 6 characters sampled uniformly from A-Z0-9 with crypto/rand:

	code, err := ident.GenerateRoomCode()

Codes are the only lookup key players ever see, so callers must treat a
collision on insert as a reason to sample again.

User input is normalized before lookup:

	code, err := ident.NormalizeRoomCode(" abc123 ") // "ABC123"

# Record IDs

	id := ident.NewID() // UUID v4 string

# Usernames

NormalizeUsername trims whitespace and requires 2-20 characters.
*/
package ident
