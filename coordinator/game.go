// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/quizsmash/game"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/quizgen"
	"github.com/danielhkuo/quizsmash/store"
)

// StartGame starts the first round of a room, or a fresh round after one
// completed. Host only.
func (c *Coordinator) StartGame(ctx context.Context, connectionID string, req models.StartGameRequest) models.StartGameResponse {
	if err := c.startRound(ctx, connectionID, req, false); err != nil {
		return models.StartGameResponse{Result: c.fail(models.RequestStartGame, err)}
	}
	return models.StartGameResponse{Result: success, Message: "Game started"}
}

// StartNextRound starts another round after a completed one. Scores carry
// over. Host only.
func (c *Coordinator) StartNextRound(ctx context.Context, connectionID string, req models.StartGameRequest) models.StartGameResponse {
	if err := c.startRound(ctx, connectionID, req, true); err != nil {
		return models.StartGameResponse{Result: c.fail(models.RequestStartNextRound, err)}
	}
	return models.StartGameResponse{Result: success, Message: "Next round started"}
}

func (c *Coordinator) startRound(ctx context.Context, connectionID string, req models.StartGameRequest, next bool) error {
	entry, ok := c.sessions.Lookup(connectionID)
	if !ok {
		return ErrNotInRoom
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return ErrTopicRequired
	}
	difficulty := strings.ToLower(strings.TrimSpace(req.Difficulty))
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	if !models.ValidDifficulty(difficulty) {
		return ErrInvalidDifficulty
	}

	// Claim the start under the lock, generate without it
	var roomID string
	var total int
	err := c.withRoom(entry.RoomCode, func(rs *roomState) error {
		room, err := c.loadRoom(ctx, rs)
		if err != nil {
			return err
		}
		player, err := c.store.FindPlayer(ctx, entry.PlayerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotInRoom
		}
		if err != nil {
			return err
		}
		if !player.IsHost {
			return ErrNotHost
		}

		allowed := []game.Phase{game.PhaseLobby, game.PhaseCompleted}
		if next {
			allowed = []game.Phase{game.PhaseCompleted}
		}
		if err := rs.machine.BeginStart(allowed...); err != nil {
			switch {
			case errors.Is(err, game.ErrStartInProgress):
				return ErrStartPending
			case next:
				return ErrRoundNotComplete
			default:
				return ErrGameActive
			}
		}

		roomID, total = room.ID, room.TotalQuestions
		return nil
	})
	if err != nil {
		return err
	}

	generated, genErr := c.gen.Generate(ctx, topic, difficulty, total)
	if genErr == nil {
		genErr = quizgen.Validate(generated, total)
	}

	return c.withRoom(entry.RoomCode, func(rs *roomState) error {
		// The room may have been closed or recreated while generating
		if rs.roomID != roomID || !rs.machine.Starting() {
			return ErrStartCancelled
		}
		if genErr != nil {
			rs.machine.AbortStart()
			slog.Error("question generation failed", "room", rs.code, "topic", topic, "error", genErr)
			return ErrGenerationFailed
		}
		if err := c.applyRound(ctx, rs, topic, difficulty, generated, next); err != nil {
			rs.machine.AbortStart()
			return err
		}
		return nil
	})
}

// applyRound persists a generated round and kicks off its first question
func (c *Coordinator) applyRound(ctx context.Context, rs *roomState, topic, difficulty string, generated []models.GeneratedQuestion, next bool) error {
	questions := make([]models.Question, len(generated))
	for i, g := range generated {
		questions[i] = models.Question{Text: g.Question, CorrectIndex: g.CorrectIndex}
		copy(questions[i].Options[:], g.Options)
	}

	err := c.store.InTx(ctx, func(q store.Querier) error {
		if err := q.ReplaceQuestions(ctx, rs.roomID, questions); err != nil {
			return err
		}
		if err := q.SetRoomTopic(ctx, rs.roomID, topic, difficulty); err != nil {
			return err
		}
		if err := q.SetRoomStatus(ctx, rs.roomID, models.StatusActive); err != nil {
			return err
		}
		return q.ResetAnswerState(ctx, rs.roomID)
	})
	if err != nil {
		return err
	}

	round := rs.machine.StartRound(topic, difficulty, len(questions))
	event := models.GameStartedEvent{
		Topic:          topic,
		Difficulty:     difficulty,
		Round:          round,
		TotalQuestions: len(questions),
	}
	slog.Info("round started", "room", rs.code, "round", round, "topic", topic, "difficulty", difficulty)

	if next {
		c.broadcast(rs.code, models.EventNextRoundStarted, event, "")
		c.armAdvance(rs, c.cfg.RoundIntroDelay)
		return nil
	}

	c.broadcast(rs.code, models.EventGameStarted, event, "")
	return c.openQuestion(ctx, rs, 1)
}

// openQuestion makes question n live and arms its countdown
func (c *Coordinator) openQuestion(ctx context.Context, rs *roomState, n int) error {
	q, err := c.store.FindQuestion(ctx, rs.roomID, n)
	if err != nil {
		return err
	}
	err = c.store.InTx(ctx, func(tx store.Querier) error {
		if err := tx.SetCurrentQuestionIndex(ctx, rs.roomID, n); err != nil {
			return err
		}
		return tx.ResetAnswerState(ctx, rs.roomID)
	})
	if err != nil {
		return err
	}

	now := c.now()
	d := c.cfg.QuestionDuration
	rs.machine.OpenQuestion(n, q.ID, q.CorrectIndex, now, d)

	code := rs.code
	rs.machine.Clock().Arm(d, func(seq uint64) { c.onTimeUp(code, seq) })

	c.broadcast(code, models.EventNewQuestion, models.NewQuestionEvent{
		Question:  questionView(q, rs.machine.Total()),
		TimeLimit: seconds(d),
	}, "")
	c.broadcast(code, models.EventTimerStart, models.TimerStartEvent{
		QuestionID: q.ID,
		Duration:   seconds(d),
		EndsAt:     now.Add(d),
	}, "")
	return nil
}

// SubmitAnswer scores the caller's answer to the live question
func (c *Coordinator) SubmitAnswer(ctx context.Context, connectionID string, req models.SubmitAnswerRequest) models.SubmitAnswerResponse {
	resp, err := c.submitAnswer(ctx, connectionID, req)
	if err != nil {
		return models.SubmitAnswerResponse{Result: c.fail(models.RequestSubmitAnswer, err)}
	}
	return resp
}

func (c *Coordinator) submitAnswer(ctx context.Context, connectionID string, req models.SubmitAnswerRequest) (models.SubmitAnswerResponse, error) {
	entry, ok := c.sessions.Lookup(connectionID)
	if !ok {
		return models.SubmitAnswerResponse{}, ErrNotInRoom
	}
	if req.AnswerIndex < 0 || req.AnswerIndex >= models.OptionCount {
		return models.SubmitAnswerResponse{}, ErrInvalidAnswer
	}

	var resp models.SubmitAnswerResponse
	err := c.withRoom(entry.RoomCode, func(rs *roomState) error {
		room, err := c.loadRoom(ctx, rs)
		if err != nil {
			return err
		}

		m := rs.machine
		if m.Phase() != game.PhaseQuestionActive {
			return ErrNoActiveQuestion
		}
		if req.QuestionID != m.QuestionID() {
			return ErrQuestionMismatch
		}
		if m.HasAnswered(entry.PlayerID) {
			return ErrAlreadyAnswered
		}

		correctIndex := m.CorrectIndex()
		correct := req.AnswerIndex == correctIndex
		points := game.Points(correct, room.PointsPerQuestion)

		var score int
		err = c.store.InTx(ctx, func(q store.Querier) error {
			if _, err := q.InsertAnswer(ctx, models.Answer{
				PlayerID:      entry.PlayerID,
				QuestionID:    req.QuestionID,
				SelectedIndex: req.AnswerIndex,
				IsCorrect:     correct,
				ResponseTime:  req.ResponseTime,
				AnsweredAt:    c.now(),
			}); err != nil {
				return err
			}
			if err := q.SetPlayerAnswer(ctx, entry.PlayerID, req.AnswerIndex); err != nil {
				return err
			}
			var err error
			score, err = q.AddScore(ctx, entry.PlayerID, points)
			return err
		})
		if errors.Is(err, store.ErrAlreadyAnswered) {
			return ErrAlreadyAnswered
		}
		if err != nil {
			return err
		}
		m.RecordAnswer(entry.PlayerID)

		resp = models.SubmitAnswerResponse{
			Result:        success,
			IsCorrect:     correct,
			CorrectAnswer: correctIndex,
			PlayerScore:   score,
		}

		// The answer is committed; nothing below may turn it into a failure
		if m.AllAnswered(c.sessions.PlayerIDs(rs.code)) {
			c.reveal(ctx, rs, false)
		} else {
			c.broadcastScores(ctx, rs)
		}
		return nil
	})
	return resp, err
}

// onTimeUp closes a question nobody finished. Players still missing an
// answer are recorded as answering -1.
func (c *Coordinator) onTimeUp(code string, seq uint64) {
	if c.ctx.Err() != nil {
		return
	}
	ctx, cancel := c.callbackContext()
	defer cancel()

	err := c.withRoom(code, func(rs *roomState) error {
		if !rs.machine.Clock().Fire(seq) || rs.machine.Phase() != game.PhaseQuestionActive {
			return nil
		}

		questionID := rs.machine.QuestionID()
		missing := rs.machine.Unanswered(c.sessions.PlayerIDs(code))
		now := c.now()

		err := c.store.InTx(ctx, func(q store.Querier) error {
			for _, playerID := range missing {
				// A failed insert aborts a postgres transaction, so duplicates
				// are skipped up front instead of caught
				answered, err := q.HasAnswered(ctx, playerID, questionID)
				if err != nil {
					return err
				}
				if answered {
					continue
				}
				_, err = q.InsertAnswer(ctx, models.Answer{
					PlayerID:      playerID,
					QuestionID:    questionID,
					SelectedIndex: -1,
					AnsweredAt:    now,
				})
				if err != nil {
					return err
				}
				if err := q.SetPlayerAnswer(ctx, playerID, -1); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// Reveal anyway so the round keeps moving
			slog.Error("failed to record timeouts", "room", code, "error", err)
		}
		for _, playerID := range missing {
			rs.machine.RecordAnswer(playerID)
		}

		c.broadcast(code, models.EventTimeUp, models.TimeUpEvent{QuestionID: questionID}, "")
		c.reveal(ctx, rs, true)
		return nil
	})
	if err != nil {
		slog.Error("time-up handling failed", "room", code, "error", err)
	}
}

// reveal closes the live question, publishes the answer and scores, and
// schedules the next step. A second call for the same question is a no-op.
func (c *Coordinator) reveal(ctx context.Context, rs *roomState, timedOut bool) {
	if !rs.machine.Reveal() {
		return
	}
	c.armAdvance(rs, c.cfg.RevealDelay)

	c.broadcast(rs.code, models.EventRevealAnswer, models.RevealAnswerEvent{
		QuestionID:     rs.machine.QuestionID(),
		QuestionNumber: rs.machine.Question(),
		CorrectAnswer:  rs.machine.CorrectIndex(),
		TimedOut:       timedOut,
	}, "")
	c.broadcastScores(ctx, rs)
}

// broadcastScores publishes the connected players' scores. A failed read
// only costs this update; the next one carries the same totals.
func (c *Coordinator) broadcastScores(ctx context.Context, rs *roomState) {
	players, err := c.store.FindConnectedPlayers(ctx, rs.roomID)
	if err != nil {
		slog.Error("failed to load scores", "room", rs.code, "error", err)
		return
	}
	c.broadcast(rs.code, models.EventScoreUpdate, models.ScoreUpdateEvent{
		Players: models.PlayerViews(players),
	}, "")
}

func (c *Coordinator) armAdvance(rs *roomState, d time.Duration) {
	code := rs.code
	rs.machine.Clock().Arm(d, func(seq uint64) { c.onAdvance(code, seq) })
}

// onAdvance leaves Reveal for the next question or the end of the round
func (c *Coordinator) onAdvance(code string, seq uint64) {
	if c.ctx.Err() != nil {
		return
	}
	ctx, cancel := c.callbackContext()
	defer cancel()

	err := c.withRoom(code, func(rs *roomState) error {
		if !rs.machine.Clock().Fire(seq) || rs.machine.Phase() != game.PhaseReveal {
			return nil
		}

		var err error
		if rs.machine.HasNext() {
			err = c.openQuestion(ctx, rs, rs.machine.Question()+1)
		} else {
			err = c.completeRound(ctx, rs)
		}
		if err != nil {
			// Unstick the room so the host can start over
			rs.machine.Complete()
		}
		return err
	})
	if err != nil {
		slog.Error("round advance failed", "room", code, "error", err)
	}
}

func (c *Coordinator) completeRound(ctx context.Context, rs *roomState) error {
	if err := c.store.SetRoomStatus(ctx, rs.roomID, models.StatusCompleted); err != nil {
		return err
	}
	rs.machine.Complete()

	players, err := c.store.FindConnectedPlayers(ctx, rs.roomID)
	if err != nil {
		return err
	}
	c.broadcast(rs.code, models.EventGameCompleted, models.GameCompletedEvent{
		Round:       rs.machine.Round(),
		Leaderboard: game.Leaderboard(players),
	}, "")

	slog.Info("round completed", "room", rs.code, "round", rs.machine.Round())
	return nil
}
