// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/quizsmash/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrCodeTaken        = errors.New("room code already in use")
	ErrUsernameTaken    = errors.New("username already taken in room")
	ErrAlreadyAnswered  = errors.New("answer already recorded")
	ErrInvalidQuestions = errors.New("invalid question set")
)

// Querier is the set of Room Store operations. Multi-statement operations
// (CreateRoomAndHost, ReplaceQuestions, DeleteExpiredRooms) are only atomic
// when run through Repository.InTx.
type Querier interface {
	// Rooms
	CreateRoomAndHost(ctx context.Context, p NewRoom) (models.Room, models.Player, error)
	FindRoomByCode(ctx context.Context, code string) (models.Room, error)
	FindRoomByID(ctx context.Context, id string) (models.Room, error)
	SetRoomStatus(ctx context.Context, roomID, status string) error
	SetCurrentQuestionIndex(ctx context.Context, roomID string, n int) error
	SetRoomTopic(ctx context.Context, roomID, topic, difficulty string) error
	SetRoomHost(ctx context.Context, roomID, playerID string) error
	IncrementPlayerCount(ctx context.Context, roomID string) error
	DecrementPlayerCount(ctx context.Context, roomID string) error
	DeleteRoom(ctx context.Context, code string) (bool, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListActiveRooms(ctx context.Context, now time.Time, limit int) ([]models.ActiveRoom, error)
	DeleteExpiredRooms(ctx context.Context, now time.Time) ([]string, error)

	// Players
	InsertPlayer(ctx context.Context, p NewPlayer) (models.Player, error)
	FindPlayer(ctx context.Context, playerID string) (models.Player, error)
	FindPlayers(ctx context.Context, roomID string) ([]models.Player, error)
	FindConnectedPlayers(ctx context.Context, roomID string) ([]models.Player, error)
	FindDisconnectedPlayerByUsername(ctx context.Context, roomID, username string) (models.Player, error)
	ReattachPlayer(ctx context.Context, playerID, connectionID string) (models.Player, error)
	DetachPlayer(ctx context.Context, playerID string, leftAt *time.Time) error
	ResetAnswerState(ctx context.Context, roomID string) error
	SetPlayerAnswer(ctx context.Context, playerID string, index int) error
	AddScore(ctx context.Context, playerID string, delta int) (int, error)

	// Questions and answers
	ReplaceQuestions(ctx context.Context, roomID string, questions []models.Question) error
	FindQuestion(ctx context.Context, roomID string, number int) (models.Question, error)
	FindQuestionByID(ctx context.Context, questionID string) (models.Question, error)
	InsertAnswer(ctx context.Context, a models.Answer) (models.Answer, error)
	HasAnswered(ctx context.Context, playerID, questionID string) (bool, error)
}

// Repository is a Querier that can also scope work to a transaction
type Repository interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries runs Room Store operations against a connection or transaction
type Queries struct {
	db dbtx
}

// Store is the database-backed Repository
type Store struct {
	*Queries
	conn *sql.DB
}

func New(conn *sql.DB) *Store {
	return &Store{Queries: &Queries{db: conn}, conn: conn}
}

// InTx runs fn inside a transaction. The transaction commits if fn returns
// nil and rolls back otherwise. fn must only use the Querier it is given.
func (s *Store) InTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation recognizes unique constraint failures from both drivers
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE")
	}

	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}
