// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/quizsmash/ident"
	"github.com/danielhkuo/quizsmash/models"
)

// NewPlayer describes a player row to insert
type NewPlayer struct {
	RoomID       string
	Username     string
	ConnectionID string
	IsHost       bool
	Now          time.Time
}

const playerColumns = `id, room_id, username, connection_id, score, is_host,
	current_answer_index, has_answered, joined_at, left_at`

func scanPlayer(row scanner) (models.Player, error) {
	var p models.Player
	var conn sql.NullString
	var leftAt sql.NullTime
	err := row.Scan(&p.ID, &p.RoomID, &p.Username, &conn, &p.Score, &p.IsHost,
		&p.CurrentAnswerIndex, &p.HasAnswered, &p.JoinedAt, &leftAt)
	if err != nil {
		return models.Player{}, err
	}
	if conn.Valid {
		p.ConnectionID = &conn.String
	}
	if leftAt.Valid {
		p.LeftAt = &leftAt.Time
	}
	return p, nil
}

func (q *Queries) queryPlayers(ctx context.Context, query string, args ...interface{}) ([]models.Player, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	players := []models.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// InsertPlayer adds a connected player. A username already present in the
// room (connected or not) fails with ErrUsernameTaken.
func (q *Queries) InsertPlayer(ctx context.Context, p NewPlayer) (models.Player, error) {
	conn := p.ConnectionID
	player := models.Player{
		ID:                 ident.NewID(),
		RoomID:             p.RoomID,
		Username:           p.Username,
		ConnectionID:       &conn,
		IsHost:             p.IsHost,
		CurrentAnswerIndex: -1,
		JoinedAt:           p.Now.UTC(),
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO players (id, room_id, username, connection_id, score, is_host,
			current_answer_index, has_answered, joined_at)
		VALUES ($1, $2, $3, $4, 0, $5, -1, FALSE, $6)
	`, player.ID, player.RoomID, player.Username, conn, player.IsHost, player.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Player{}, ErrUsernameTaken
		}
		return models.Player{}, fmt.Errorf("failed to insert player: %w", err)
	}

	return player, nil
}

func (q *Queries) FindPlayer(ctx context.Context, playerID string) (models.Player, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, playerID)
	p, err := scanPlayer(row)
	return p, notFound(err)
}

// FindPlayers returns every player of the room in join order
func (q *Queries) FindPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	return q.queryPlayers(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE room_id = $1
		ORDER BY joined_at, id
	`, roomID)
}

// FindConnectedPlayers returns the players holding a connection, in join order
func (q *Queries) FindConnectedPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	return q.queryPlayers(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE room_id = $1 AND connection_id IS NOT NULL
		ORDER BY joined_at, id
	`, roomID)
}

func (q *Queries) FindDisconnectedPlayerByUsername(ctx context.Context, roomID, username string) (models.Player, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE room_id = $1 AND username = $2 AND connection_id IS NULL
	`, roomID, username)
	p, err := scanPlayer(row)
	return p, notFound(err)
}

// ReattachPlayer binds a new connection to a disconnected player. It fails
// with ErrNotFound if the player is missing or already connected.
func (q *Queries) ReattachPlayer(ctx context.Context, playerID, connectionID string) (models.Player, error) {
	if err := q.exec(ctx, "reattach player", `
		UPDATE players SET connection_id = $1, left_at = NULL
		WHERE id = $2 AND connection_id IS NULL
	`, connectionID, playerID); err != nil {
		return models.Player{}, err
	}
	return q.FindPlayer(ctx, playerID)
}

// DetachPlayer clears the player's connection. leftAt is set for an explicit
// leave and nil for a dropped connection.
func (q *Queries) DetachPlayer(ctx context.Context, playerID string, leftAt *time.Time) error {
	var left sql.NullTime
	if leftAt != nil {
		left = sql.NullTime{Time: leftAt.UTC(), Valid: true}
	}
	return q.exec(ctx, "detach player",
		`UPDATE players SET connection_id = NULL, left_at = $1 WHERE id = $2`, left, playerID)
}

// ResetAnswerState clears every player's answer for a new question
func (q *Queries) ResetAnswerState(ctx context.Context, roomID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE players SET has_answered = FALSE, current_answer_index = -1
		WHERE room_id = $1
	`, roomID)
	if err != nil {
		return fmt.Errorf("failed to reset answers: %w", err)
	}
	return nil
}

func (q *Queries) SetPlayerAnswer(ctx context.Context, playerID string, index int) error {
	return q.exec(ctx, "set player answer", `
		UPDATE players SET has_answered = TRUE, current_answer_index = $1
		WHERE id = $2
	`, index, playerID)
}

// AddScore adds delta to the player's score and returns the new total
func (q *Queries) AddScore(ctx context.Context, playerID string, delta int) (int, error) {
	var score int
	err := q.db.QueryRowContext(ctx,
		`UPDATE players SET score = score + $1 WHERE id = $2 RETURNING score`, delta, playerID,
	).Scan(&score)
	if err != nil {
		return 0, notFound(err)
	}
	return score, nil
}
