// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database types
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

// DefaultSQLiteURL is used when DATABASE_TYPE is sqlite and no URL is given
const DefaultSQLiteURL = "file:quizsmash.db"

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	// Question generation
	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	GenerationTimeout time.Duration

	// Game clock
	QuestionDuration time.Duration
	RevealDelay      time.Duration
	RoundIntroDelay  time.Duration
	HostGracePeriod  time.Duration
	PointsPerCorrect int

	// Room lifecycle
	RoomTTL          time.Duration
	ReapInterval     time.Duration
	IdleReapInterval time.Duration

	// Transport
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string

	LogFormat string
	LogLevel  string
}

// ParseFlags validates flags and fills in defaults from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var origins string

	fs := flag.NewFlagSet("quizsmash", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "OpenAI API key (prefer env)")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "", "Chat completion model")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-url", "", "OpenAI-compatible API base URL")
	fs.DurationVar(&cfg.GenerationTimeout, "generation-timeout", 0, "Question generation timeout")

	fs.DurationVar(&cfg.QuestionDuration, "question-duration", 0, "Time allowed per question")
	fs.DurationVar(&cfg.RevealDelay, "reveal-delay", 0, "Pause between reveal and the next question")
	fs.DurationVar(&cfg.RoundIntroDelay, "round-intro-delay", 0, "Pause before the first question of a new round")
	fs.DurationVar(&cfg.HostGracePeriod, "host-grace", 0, "How long a disconnected host keeps authority")
	fs.IntVar(&cfg.PointsPerCorrect, "points", -1, "Points per correct answer")

	fs.DurationVar(&cfg.RoomTTL, "room-ttl", 0, "Room retention window")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", 0, "Expired room sweep interval")
	fs.DurationVar(&cfg.IdleReapInterval, "idle-reap-interval", 0, "Idle room sweep interval")

	fs.Float64Var(&cfg.MessageRate, "msg-rate", 0, "Inbound requests per second per connection")
	fs.IntVar(&cfg.MessageBurst, "msg-burst", 0, "Inbound request burst per connection")
	fs.StringVar(&origins, "origins", "", "Comma-separated allowed origins")

	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format (pretty, text, json)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 8080 // default
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	if cfg.DatabaseType != DatabaseSQLite && cfg.DatabaseType != DatabasePostgres {
		return Config{}, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseType == DatabasePostgres {
			return Config{}, errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
		cfg.DatabaseURL = DefaultSQLiteURL
	}

	stringFromEnv(&cfg.OpenAIKey, "OPENAI_API_KEY", "")
	stringFromEnv(&cfg.OpenAIModel, "OPENAI_MODEL", "gpt-3.5-turbo")
	stringFromEnv(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL", "https://api.openai.com/v1")
	stringFromEnv(&cfg.LogFormat, "LOG_FORMAT", "pretty")
	stringFromEnv(&cfg.LogLevel, "LOG_LEVEL", "info")

	durations := []struct {
		dst *time.Duration
		env string
		def time.Duration
	}{
		{&cfg.GenerationTimeout, "GENERATION_TIMEOUT", 10 * time.Second},
		{&cfg.QuestionDuration, "QUESTION_DURATION", 20 * time.Second},
		{&cfg.RevealDelay, "REVEAL_DELAY", 3 * time.Second},
		{&cfg.RoundIntroDelay, "ROUND_INTRO_DELAY", 2 * time.Second},
		{&cfg.HostGracePeriod, "HOST_GRACE_PERIOD", 30 * time.Second},
		{&cfg.RoomTTL, "ROOM_TTL", 24 * time.Hour},
		{&cfg.ReapInterval, "REAP_INTERVAL", time.Hour},
		{&cfg.IdleReapInterval, "IDLE_REAP_INTERVAL", 5 * time.Minute},
	}
	for _, d := range durations {
		if err := durationFromEnv(d.dst, d.env, d.def); err != nil {
			return Config{}, err
		}
	}

	if cfg.PointsPerCorrect < 0 {
		cfg.PointsPerCorrect = 10
		if s := os.Getenv("POINTS_PER_CORRECT"); s != "" {
			points, err := strconv.Atoi(s)
			if err != nil || points < 0 {
				return Config{}, errors.New("invalid POINTS_PER_CORRECT env variable")
			}
			cfg.PointsPerCorrect = points
		}
	}

	if cfg.MessageRate == 0 {
		cfg.MessageRate = 10
		if s := os.Getenv("MESSAGE_RATE"); s != "" {
			r, err := strconv.ParseFloat(s, 64)
			if err != nil || r <= 0 {
				return Config{}, errors.New("invalid MESSAGE_RATE env variable")
			}
			cfg.MessageRate = r
		}
	}
	if cfg.MessageBurst == 0 {
		cfg.MessageBurst = 20
		if s := os.Getenv("MESSAGE_BURST"); s != "" {
			b, err := strconv.Atoi(s)
			if err != nil || b <= 0 {
				return Config{}, errors.New("invalid MESSAGE_BURST env variable")
			}
			cfg.MessageBurst = b
		}
	}

	if origins == "" {
		origins = os.Getenv("ALLOWED_ORIGINS")
	}
	if origins == "" {
		origins = "*"
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, nil
}

func stringFromEnv(dst *string, env, def string) {
	if *dst != "" {
		return
	}
	*dst = os.Getenv(env)
	if *dst == "" {
		*dst = def
	}
}

func durationFromEnv(dst *time.Duration, env string, def time.Duration) error {
	if *dst < 0 {
		return fmt.Errorf("%s must be positive", env)
	}
	if *dst > 0 {
		return nil
	}
	s := os.Getenv(env)
	if s == "" {
		*dst = def
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s env variable", env)
	}
	*dst = d
	return nil
}
