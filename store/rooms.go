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

// NewRoom describes a room and its host player to create
type NewRoom struct {
	Code               string
	HostUsername       string
	ConnectionID       string
	MaxPlayers         int
	TotalQuestions     int
	SecondsPerQuestion int
	PointsPerQuestion  int
	Now                time.Time
	TTL                time.Duration
}

const roomColumns = `id, code, host_username, topic, difficulty, status, current_question,
	total_questions, max_players, current_players, time_per_question, points_per_question,
	created_at, expires_at`

func scanRoom(row scanner) (models.Room, error) {
	var r models.Room
	var topic sql.NullString
	err := row.Scan(
		&r.ID, &r.Code, &r.HostUsername, &topic, &r.Difficulty, &r.Status,
		&r.CurrentQuestionIndex, &r.TotalQuestions, &r.MaxPlayers, &r.CurrentPlayers,
		&r.SecondsPerQuestion, &r.PointsPerQuestion, &r.CreatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return models.Room{}, err
	}
	if topic.Valid {
		r.Topic = &topic.String
	}
	return r, nil
}

// CreateRoomAndHost inserts a waiting room and its host player
func (q *Queries) CreateRoomAndHost(ctx context.Context, p NewRoom) (models.Room, models.Player, error) {
	now := p.Now.UTC()
	room := models.Room{
		ID:                 ident.NewID(),
		Code:               p.Code,
		HostUsername:       p.HostUsername,
		Difficulty:         models.DifficultyMedium,
		Status:             models.StatusWaiting,
		TotalQuestions:     p.TotalQuestions,
		MaxPlayers:         p.MaxPlayers,
		CurrentPlayers:     1,
		SecondsPerQuestion: p.SecondsPerQuestion,
		PointsPerQuestion:  p.PointsPerQuestion,
		CreatedAt:          now,
		ExpiresAt:          now.Add(p.TTL),
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO rooms (id, code, host_username, difficulty, status, current_question,
			total_questions, max_players, current_players, time_per_question,
			points_per_question, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, 1, $8, $9, $10, $11)
	`, room.ID, room.Code, room.HostUsername, room.Difficulty, room.Status,
		room.TotalQuestions, room.MaxPlayers, room.SecondsPerQuestion,
		room.PointsPerQuestion, room.CreatedAt, room.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Room{}, models.Player{}, ErrCodeTaken
		}
		return models.Room{}, models.Player{}, fmt.Errorf("failed to insert room: %w", err)
	}

	host, err := q.InsertPlayer(ctx, NewPlayer{
		RoomID:       room.ID,
		Username:     p.HostUsername,
		ConnectionID: p.ConnectionID,
		IsHost:       true,
		Now:          now,
	})
	if err != nil {
		return models.Room{}, models.Player{}, err
	}

	return room, host, nil
}

func (q *Queries) FindRoomByCode(ctx context.Context, code string) (models.Room, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code)
	room, err := scanRoom(row)
	return room, notFound(err)
}

func (q *Queries) FindRoomByID(ctx context.Context, id string) (models.Room, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	room, err := scanRoom(row)
	return room, notFound(err)
}

func (q *Queries) exec(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) SetRoomStatus(ctx context.Context, roomID, status string) error {
	return q.exec(ctx, "set room status",
		`UPDATE rooms SET status = $1 WHERE id = $2`, status, roomID)
}

func (q *Queries) SetCurrentQuestionIndex(ctx context.Context, roomID string, n int) error {
	return q.exec(ctx, "set question index",
		`UPDATE rooms SET current_question = $1 WHERE id = $2`, n, roomID)
}

func (q *Queries) SetRoomTopic(ctx context.Context, roomID, topic, difficulty string) error {
	return q.exec(ctx, "set room topic",
		`UPDATE rooms SET topic = $1, difficulty = $2 WHERE id = $3`, topic, difficulty, roomID)
}

// SetRoomHost makes playerID the only host of the room
func (q *Queries) SetRoomHost(ctx context.Context, roomID, playerID string) error {
	var username string
	err := q.db.QueryRowContext(ctx,
		`SELECT username FROM players WHERE id = $1 AND room_id = $2`, playerID, roomID,
	).Scan(&username)
	if err != nil {
		return notFound(err)
	}

	if _, err := q.db.ExecContext(ctx, `
		UPDATE players SET is_host = CASE WHEN id = $1 THEN TRUE ELSE FALSE END
		WHERE room_id = $2
	`, playerID, roomID); err != nil {
		return fmt.Errorf("failed to transfer host: %w", err)
	}

	return q.exec(ctx, "set host username",
		`UPDATE rooms SET host_username = $1 WHERE id = $2`, username, roomID)
}

func (q *Queries) IncrementPlayerCount(ctx context.Context, roomID string) error {
	return q.exec(ctx, "increment player count",
		`UPDATE rooms SET current_players = current_players + 1 WHERE id = $1`, roomID)
}

func (q *Queries) DecrementPlayerCount(ctx context.Context, roomID string) error {
	return q.exec(ctx, "decrement player count", `
		UPDATE rooms
		SET current_players = CASE WHEN current_players > 0 THEN current_players - 1 ELSE 0 END
		WHERE id = $1
	`, roomID)
}

// DeleteRoom removes the room; players, questions and answers cascade.
// Reports whether a row was deleted.
func (q *Queries) DeleteRoom(ctx context.Context, code string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// ListActiveRooms returns waiting or active rooms that have not expired,
// newest first, with the names of their connected players.
func (q *Queries) ListActiveRooms(ctx context.Context, now time.Time, limit int) ([]models.ActiveRoom, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT r.code, r.host_username, r.topic, r.difficulty, r.status,
		       r.current_players, r.max_players, r.created_at, r.expires_at, p.username
		FROM rooms r
		LEFT JOIN players p ON p.room_id = r.id AND p.connection_id IS NOT NULL
		WHERE r.status IN ($1, $2)
		ORDER BY r.created_at DESC, r.code, p.joined_at, p.id
	`, models.StatusWaiting, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.ActiveRoom{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			r         models.ActiveRoom
			topic     sql.NullString
			expiresAt time.Time
			username  sql.NullString
		)
		if err := rows.Scan(&r.Code, &r.HostUsername, &topic, &r.Difficulty, &r.Status,
			&r.CurrentPlayers, &r.MaxPlayers, &r.CreatedAt, &expiresAt, &username); err != nil {
			return nil, fmt.Errorf("failed to scan active room: %w", err)
		}
		if !now.Before(expiresAt) {
			continue
		}

		i, ok := index[r.Code]
		if !ok {
			if len(rooms) >= limit {
				continue
			}
			if topic.Valid {
				r.Topic = &topic.String
			}
			r.PlayerNames = []string{}
			rooms = append(rooms, r)
			i = len(rooms) - 1
			index[r.Code] = i
		}
		if username.Valid {
			rooms[i].PlayerNames = append(rooms[i].PlayerNames, username.String)
			rooms[i].ConnectedPlayers++
		}
	}
	return rooms, rows.Err()
}

// DeleteExpiredRooms deletes rooms past their expiry, and completed rooms
// nobody is connected to, returning their codes.
func (q *Queries) DeleteExpiredRooms(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT r.code, r.status, r.expires_at,
		       (SELECT COUNT(*) FROM players p WHERE p.room_id = r.id AND p.connection_id IS NOT NULL)
		FROM rooms r
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}

	var codes []string
	for rows.Next() {
		var (
			code, status string
			expiresAt    time.Time
			connected    int
		)
		if err := rows.Scan(&code, &status, &expiresAt, &connected); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		if !now.Before(expiresAt) || (status == models.StatusCompleted && connected == 0) {
			codes = append(codes, code)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, code := range codes {
		if _, err := q.DeleteRoom(ctx, code); err != nil {
			return nil, err
		}
	}
	return codes, nil
}
