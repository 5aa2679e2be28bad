package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/coordinator"
	"github.com/danielhkuo/quizsmash/db"
	"github.com/danielhkuo/quizsmash/handlers"
	"github.com/danielhkuo/quizsmash/logging"
	"github.com/danielhkuo/quizsmash/quizgen"
	"github.com/danielhkuo/quizsmash/router"
	"github.com/danielhkuo/quizsmash/session"
	"github.com/danielhkuo/quizsmash/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		slog.Error("Error configuring logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	hub := handlers.NewHub()
	coord := coordinator.New(store.New(dbConn), quizgen.New(cfg), session.NewRegistry(), hub, cfg)
	defer coord.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go coord.RunReaper(ctx)

	server := http.Server{
		Handler:           router.NewRouter(coord, hub, cfg),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// Wait for Ctrl-C or SIGTERM
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Shutdown does not wait for hijacked websocket connections
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}
