// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the Room Store: rooms, players, questions and answers on
top of database/sql.

	s := store.New(conn)

	err := s.InTx(ctx, func(q store.Querier) error {
		room, host, err := q.CreateRoomAndHost(ctx, store.NewRoom{...})
		...
	})

Queries work the same on PostgreSQL and SQLite. Unique constraint failures
from either driver come back as typed errors:

  - ErrCodeTaken: room code collision (retry with a new code)
  - ErrUsernameTaken: the username already exists in the room
  - ErrAlreadyAnswered: the player already answered the question

Missing rows come back as ErrNotFound.
*/
package store
