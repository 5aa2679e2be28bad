// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Drivers

Open selects the driver from the configured database type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

  - postgres: github.com/lib/pq
  - sqlite: modernc.org/sqlite (pure Go, no cgo), limited to one open
    connection with foreign keys enabled

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - rooms: code, host, topic/difficulty, status, round pointer, expiry
  - players: per-room membership, connection id (NULL while disconnected), score
  - questions: the current round's questions, numbered 1..total_questions
  - answers: one row per (player, question)

# Relationships

	rooms 1──* players
	rooms 1──* questions
	players 1──* answers *──1 questions

All foreign keys use ON DELETE CASCADE, so deleting a room removes
everything that belongs to it.

# Uniqueness

  - rooms.code
  - players.(room_id, username)
  - questions.(room_id, question_number)
  - answers.(player_id, question_id)

These constraints are what make concurrent create/join/answer requests safe;
the store turns their violations into typed errors.
*/
package db
