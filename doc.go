// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the QuizSmash server.

QuizSmash runs real-time multiplayer trivia rooms: a host opens a room,
up to three friends join with a six-character code, and everyone races
through generated questions on a shared clock.

# Starting the Server

With no configuration the server listens on 8080 and keeps its data in a
local SQLite file:

	go run .

Or against PostgreSQL:

	DATABASE_TYPE=postgres DATABASE_URL=postgres://... go run .

A .env file in the working directory is loaded first if present.

# Configuration

  - PORT (-p): Server port (default: 8080)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - DATABASE_URL (-d): Connection string (required for postgres)
  - OPENAI_API_KEY (--openai-key): Enables generated questions; without it
    template questions are used
  - QUESTION_DURATION, REVEAL_DELAY, HOST_GRACE_PERIOD, ROOM_TTL: game
    and room timings
  - ALLOWED_ORIGINS: Comma separated CORS / websocket origins
  - LOG_FORMAT (pretty, text, json), LOG_LEVEL

See package cliparse for the full list.

# Architecture

  - handlers: Websocket endpoint, outbound hub, lobby HTTP handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - coordinator: Room Coordinator, the only place requests and timers
    mutate state
  - game: Per-room state machine and timers
  - session: Connection to player registry
  - quizgen: Question generation with a template fallback
  - store: Room Store on database/sql
  - db: Driver setup and schema creation
  - models: Domain, request and event types
  - ident: Room codes, ids and username rules
  - logging: slog setup
  - cliparse: Configuration parsing
*/
package main
