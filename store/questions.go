// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"

	"github.com/danielhkuo/quizsmash/ident"
	"github.com/danielhkuo/quizsmash/models"
)

const questionColumns = `id, room_id, question_number, question,
	option_0, option_1, option_2, option_3, correct_index`

func scanQuestion(row scanner) (models.Question, error) {
	var qn models.Question
	err := row.Scan(&qn.ID, &qn.RoomID, &qn.QuestionNumber, &qn.Text,
		&qn.Options[0], &qn.Options[1], &qn.Options[2], &qn.Options[3], &qn.CorrectIndex)
	return qn, err
}

// ReplaceQuestions deletes the room's questions (and their answers) and
// inserts the new set. Questions are numbered 1..len in slice order; missing
// ids are assigned.
func (q *Queries) ReplaceQuestions(ctx context.Context, roomID string, questions []models.Question) error {
	for _, qn := range questions {
		if qn.CorrectIndex < 0 || qn.CorrectIndex >= models.OptionCount {
			return ErrInvalidQuestions
		}
	}

	if _, err := q.db.ExecContext(ctx, `DELETE FROM questions WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}

	for i := range questions {
		qn := &questions[i]
		if qn.ID == "" {
			qn.ID = ident.NewID()
		}
		qn.RoomID = roomID
		qn.QuestionNumber = i + 1

		_, err := q.db.ExecContext(ctx, `
			INSERT INTO questions (id, room_id, question_number, question,
				option_0, option_1, option_2, option_3, correct_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, qn.ID, roomID, qn.QuestionNumber, qn.Text,
			qn.Options[0], qn.Options[1], qn.Options[2], qn.Options[3], qn.CorrectIndex)
		if err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}
	}

	return nil
}

func (q *Queries) FindQuestion(ctx context.Context, roomID string, number int) (models.Question, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+questionColumns+` FROM questions
		WHERE room_id = $1 AND question_number = $2
	`, roomID, number)
	qn, err := scanQuestion(row)
	return qn, notFound(err)
}

func (q *Queries) FindQuestionByID(ctx context.Context, questionID string) (models.Question, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, questionID)
	qn, err := scanQuestion(row)
	return qn, notFound(err)
}

// InsertAnswer records an answer. A second answer for the same player and
// question fails with ErrAlreadyAnswered.
func (q *Queries) InsertAnswer(ctx context.Context, a models.Answer) (models.Answer, error) {
	if a.ID == "" {
		a.ID = ident.NewID()
	}
	a.AnsweredAt = a.AnsweredAt.UTC()

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO answers (id, player_id, question_id, selected_index, is_correct,
			response_time, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.PlayerID, a.QuestionID, a.SelectedIndex, a.IsCorrect, a.ResponseTime, a.AnsweredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Answer{}, ErrAlreadyAnswered
		}
		return models.Answer{}, fmt.Errorf("failed to insert answer: %w", err)
	}

	return a, nil
}

func (q *Queries) HasAnswered(ctx context.Context, playerID, questionID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM answers
			WHERE player_id = $1 AND question_id = $2
		)
	`, playerID, questionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check answer: %w", err)
	}
	return exists, nil
}
