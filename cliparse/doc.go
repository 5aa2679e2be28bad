// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Sources

Each setting is resolved in order: CLI flag, environment variable, default.
main loads a .env file (if present) before calling ParseFlags, so values from
.env behave like environment variables.

	PORT               → -p                   (default 8080)
	DATABASE_TYPE      → -t                   (sqlite | postgres, default sqlite)
	DATABASE_URL       → -d                   (required for postgres)
	OPENAI_API_KEY     → --openai-key
	OPENAI_MODEL       → --openai-model       (default gpt-3.5-turbo)
	OPENAI_BASE_URL    → --openai-url
	GENERATION_TIMEOUT → --generation-timeout (default 10s)
	QUESTION_DURATION  → --question-duration  (default 20s)
	REVEAL_DELAY       → --reveal-delay       (default 3s)
	ROUND_INTRO_DELAY  → --round-intro-delay  (default 2s)
	HOST_GRACE_PERIOD  → --host-grace         (default 30s)
	POINTS_PER_CORRECT → --points             (default 10)
	ROOM_TTL           → --room-ttl           (default 24h)
	REAP_INTERVAL      → --reap-interval      (default 1h)
	IDLE_REAP_INTERVAL → --idle-reap-interval (default 5m)
	MESSAGE_RATE       → --msg-rate           (default 10/s)
	MESSAGE_BURST      → --msg-burst          (default 20)
	ALLOWED_ORIGINS    → --origins            (default *)
	LOG_FORMAT         → --log-format         (pretty | text | json)
	LOG_LEVEL          → --log-level          (debug | info | warn | error)

Without OPENAI_API_KEY the server only uses the built-in fallback questions.
*/
package cliparse
