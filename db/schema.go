// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/quizsmash/cliparse"
)

// Open connects to the configured database and verifies the connection.
// SQLite connections are limited to a single writer so transactions
// serialize instead of failing with SQLITE_BUSY.
func Open(dbType, url string) (*sql.DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch dbType {
	case cliparse.DatabasePostgres:
		conn, err = sql.Open("postgres", url)
	case cliparse.DatabaseSQLite:
		conn, err = sql.Open("sqlite", SQLiteDSN(url))
		if err == nil {
			conn.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// SQLiteDSN appends the pragmas the store relies on: cascading foreign keys,
// a busy timeout and a sortable time format.
func SQLiteDSN(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The schema is written in the subset shared by PostgreSQL and SQLite.
// Timestamps are always supplied by the application.
const schema = `
-- Rooms
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    host_username TEXT NOT NULL,
    topic TEXT,
    difficulty TEXT NOT NULL DEFAULT 'medium' CHECK (difficulty IN ('easy', 'medium', 'hard')),
    status TEXT NOT NULL DEFAULT 'waiting' CHECK (status IN ('waiting', 'active', 'completed')),
    current_question INTEGER NOT NULL DEFAULT 0,
    total_questions INTEGER NOT NULL DEFAULT 3,
    max_players INTEGER NOT NULL DEFAULT 4,
    current_players INTEGER NOT NULL DEFAULT 1,
    time_per_question INTEGER NOT NULL DEFAULT 20,
    points_per_question INTEGER NOT NULL DEFAULT 10,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);

-- Players
CREATE TABLE IF NOT EXISTS players (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    username TEXT NOT NULL,
    connection_id TEXT,
    score INTEGER NOT NULL DEFAULT 0,
    is_host BOOLEAN NOT NULL DEFAULT FALSE,
    current_answer_index INTEGER NOT NULL DEFAULT -1,
    has_answered BOOLEAN NOT NULL DEFAULT FALSE,
    joined_at TIMESTAMP NOT NULL,
    left_at TIMESTAMP,
    UNIQUE (room_id, username)
);

CREATE INDEX IF NOT EXISTS idx_players_room_id ON players(room_id);
CREATE INDEX IF NOT EXISTS idx_players_connection_id ON players(connection_id);

-- Questions
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    question_number INTEGER NOT NULL,
    question TEXT NOT NULL,
    option_0 TEXT NOT NULL,
    option_1 TEXT NOT NULL,
    option_2 TEXT NOT NULL,
    option_3 TEXT NOT NULL,
    correct_index INTEGER NOT NULL CHECK (correct_index >= 0 AND correct_index <= 3),
    UNIQUE (room_id, question_number)
);

-- Answers
CREATE TABLE IF NOT EXISTS answers (
    id TEXT PRIMARY KEY,
    player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    selected_index INTEGER NOT NULL CHECK (selected_index >= -1 AND selected_index <= 3),
    is_correct BOOLEAN NOT NULL,
    response_time REAL NOT NULL DEFAULT 0,
    answered_at TIMESTAMP NOT NULL,
    UNIQUE (player_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_answers_question_id ON answers(question_id);
`
