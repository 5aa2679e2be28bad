// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/game"
	"github.com/danielhkuo/quizsmash/models"
	"github.com/danielhkuo/quizsmash/testutil"
)

// twoPlayers creates a room with Alice hosting on c1 and Bob on c2
func twoPlayers(t *testing.T, f *fixture) string {
	t.Helper()
	code := f.create(t, "c1", "Alice")
	f.join(t, "c2", code, "Bob")
	return code
}

func (f *fixture) start(t *testing.T, conn string) {
	t.Helper()
	resp := f.c.StartGame(context.Background(), conn, models.StartGameRequest{Topic: "Space", Difficulty: "medium"})
	require.True(t, resp.Success, resp.Error)
}

// question returns the n-th new-question broadcast seen by conn
func (f *fixture) question(t *testing.T, conn string, n int) models.QuestionView {
	t.Helper()
	f.waitEvents(t, conn, models.EventNewQuestion, n)
	events := f.rec.For(conn, models.EventNewQuestion)
	return events[n-1].Payload.(models.NewQuestionEvent).Question
}

func (f *fixture) answer(t *testing.T, conn string, q models.QuestionView, index int) models.SubmitAnswerResponse {
	t.Helper()
	resp := f.c.SubmitAnswer(context.Background(), conn, models.SubmitAnswerRequest{
		QuestionID:   q.ID,
		AnswerIndex:  index,
		ResponseTime: 1.5,
	})
	require.True(t, resp.Success, resp.Error)
	return resp
}

func (f *fixture) machine(code string) (*game.Machine, func()) {
	rs := f.c.lockRoom(code)
	return rs.machine, rs.mu.Unlock
}

func TestStartGame(t *testing.T) {
	gen := &testutil.StaticGenerator{}
	f := newFixture(t, gen, longQuestions)
	code := twoPlayers(t, f)

	resp := f.c.StartGame(context.Background(), "c2", models.StartGameRequest{Topic: "Space"})
	assert.Equal(t, ErrNotHost.Error(), resp.Error)

	f.start(t, "c1")
	assert.Equal(t, 1, gen.Calls())

	for _, conn := range []string{"c1", "c2"} {
		names := []string{}
		for _, e := range f.rec.For(conn, models.EventGameStarted, models.EventNewQuestion, models.EventTimerStart) {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{models.EventGameStarted, models.EventNewQuestion, models.EventTimerStart}, names)
	}

	started, _ := f.rec.Last("c2", models.EventGameStarted)
	assert.Equal(t, models.GameStartedEvent{Topic: "Space", Difficulty: "medium", Round: 1, TotalQuestions: 3},
		started.Payload)

	q := f.question(t, "c2", 1)
	assert.Equal(t, 1, q.QuestionNumber)
	assert.Equal(t, 3, q.TotalQuestions)

	room := f.room(t, code)
	assert.Equal(t, models.StatusActive, room.Status)
	assert.Equal(t, 1, room.CurrentQuestionIndex)
	require.NotNil(t, room.Topic)
	assert.Equal(t, "Space", *room.Topic)

	resp = f.c.StartGame(context.Background(), "c1", models.StartGameRequest{Topic: "Space"})
	assert.Equal(t, ErrGameActive.Error(), resp.Error)
}

func TestStartGame_Validation(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, "c1", "Alice")
	ctx := context.Background()

	tests := []struct {
		name string
		conn string
		req  models.StartGameRequest
		want error
	}{
		{"not in room", "c9", models.StartGameRequest{Topic: "Space"}, ErrNotInRoom},
		{"no topic", "c1", models.StartGameRequest{Topic: "  "}, ErrTopicRequired},
		{"bad difficulty", "c1", models.StartGameRequest{Topic: "Space", Difficulty: "insane"}, ErrInvalidDifficulty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.c.StartGame(ctx, tt.conn, tt.req)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want.Error(), resp.Error)
		})
	}

	resp := f.c.StartNextRound(ctx, "c1", models.StartGameRequest{Topic: "Space"})
	assert.Equal(t, ErrRoundNotComplete.Error(), resp.Error)
}

func TestStartGame_GenerationFailure(t *testing.T) {
	f := newFixture(t, testutil.FailingGenerator{Err: errors.New("backend down")})
	code := f.create(t, "c1", "Alice")

	resp := f.c.StartGame(context.Background(), "c1", models.StartGameRequest{Topic: "Space"})
	assert.False(t, resp.Success)
	assert.Equal(t, ErrGenerationFailed.Error(), resp.Error)

	m, unlock := f.machine(code)
	assert.Equal(t, game.PhaseLobby, m.Phase())
	assert.False(t, m.Starting())
	unlock()

	assert.Equal(t, models.StatusWaiting, f.room(t, code).Status)
	assert.Zero(t, f.rec.Count("c1", models.EventGameStarted))
}

// blockingGenerator waits for release before answering
type blockingGenerator struct {
	testutil.StaticGenerator
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, topic, difficulty string, count int) ([]models.GeneratedQuestion, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.StaticGenerator.Generate(ctx, topic, difficulty, count)
}

func TestStartGame_SecondStartRejectedWhileGenerating(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixture(t, gen, longQuestions)
	f.create(t, "c1", "Alice")

	var wg sync.WaitGroup
	var first models.StartGameResponse
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = f.c.StartGame(context.Background(), "c1", models.StartGameRequest{Topic: "Space"})
	}()
	<-gen.entered

	// The room lock is free while generating
	second := f.c.StartGame(context.Background(), "c1", models.StartGameRequest{Topic: "Space"})
	assert.Equal(t, ErrStartPending.Error(), second.Error)

	close(gen.release)
	wg.Wait()
	assert.True(t, first.Success, first.Error)
}

func TestStartGame_RoomClosedWhileGenerating(t *testing.T) {
	gen := &blockingGenerator{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixture(t, gen)
	code := f.create(t, "c1", "Alice")
	f.join(t, "c2", code, "Bob")

	done := make(chan models.StartGameResponse, 1)
	go func() {
		done <- f.c.StartGame(context.Background(), "c1", models.StartGameRequest{Topic: "Space"})
	}()
	<-gen.entered

	f.c.LeaveRoom(context.Background(), "c1")
	close(gen.release)

	resp := <-done
	assert.False(t, resp.Success)
	assert.Equal(t, ErrStartCancelled.Error(), resp.Error)
	assert.Zero(t, f.rec.Count("c2", models.EventGameStarted))
}

func TestAllAnsweredAdvancesEarly(t *testing.T) {
	f := newFixture(t, nil, longQuestions)
	code := twoPlayers(t, f)
	f.start(t, "c1")

	q1 := f.question(t, "c1", 1)

	// Question 1 has correct index 0
	bob := f.answer(t, "c2", q1, 0)
	assert.True(t, bob.IsCorrect)
	assert.Equal(t, 0, bob.CorrectAnswer)
	assert.Equal(t, 10, bob.PlayerScore)
	assert.Zero(t, f.rec.Count("c1", models.EventRevealAnswer), "Alice has not answered yet")

	alice := f.answer(t, "c1", q1, 1)
	assert.False(t, alice.IsCorrect)
	assert.Equal(t, 0, alice.PlayerScore)

	ev, ok := f.rec.Last("c2", models.EventRevealAnswer)
	require.True(t, ok)
	reveal := ev.Payload.(models.RevealAnswerEvent)
	assert.Equal(t, q1.ID, reveal.QuestionID)
	assert.False(t, reveal.TimedOut)

	// The minute-long timer is not what moves us on
	q2 := f.question(t, "c2", 2)
	assert.Equal(t, 2, q2.QuestionNumber)
	assert.NotEqual(t, q1.ID, q2.ID)
	assert.Equal(t, 2, f.room(t, code).CurrentQuestionIndex)

	score, _ := f.rec.Last("c1", models.EventScoreUpdate)
	for _, p := range score.Payload.(models.ScoreUpdateEvent).Players {
		if p.Username == "Bob" {
			assert.Equal(t, 10, p.Score)
		} else {
			assert.Equal(t, 0, p.Score)
		}
	}
}

func TestSubmitAnswer_Rejections(t *testing.T) {
	f := newFixture(t, nil, longQuestions)
	twoPlayers(t, f)
	ctx := context.Background()

	resp := f.c.SubmitAnswer(ctx, "c2", models.SubmitAnswerRequest{QuestionID: "x", AnswerIndex: 0})
	assert.Equal(t, ErrNoActiveQuestion.Error(), resp.Error)

	f.start(t, "c1")
	q1 := f.question(t, "c2", 1)

	tests := []struct {
		name string
		conn string
		req  models.SubmitAnswerRequest
		want error
	}{
		{"not in room", "c9", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: 0}, ErrNotInRoom},
		{"index too high", "c2", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: 4}, ErrInvalidAnswer},
		{"index negative", "c2", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: -1}, ErrInvalidAnswer},
		{"wrong question", "c2", models.SubmitAnswerRequest{QuestionID: "other", AnswerIndex: 0}, ErrQuestionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.c.SubmitAnswer(ctx, tt.conn, tt.req)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want.Error(), resp.Error)
		})
	}

	f.answer(t, "c2", q1, 0)
	resp = f.c.SubmitAnswer(ctx, "c2", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: 0})
	assert.Equal(t, ErrAlreadyAnswered.Error(), resp.Error)
}

func TestConcurrentDuplicateAnswersScoreOnce(t *testing.T) {
	f := newFixture(t, nil, longQuestions)
	code := f.create(t, "c1", "Alice")
	f.join(t, "c2", code, "Bob")
	f.start(t, "c1")
	q1 := f.question(t, "c2", 1)

	var wg sync.WaitGroup
	results := make(chan models.SubmitAnswerResponse, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.c.SubmitAnswer(context.Background(), "c2", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: 0})
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for r := range results {
		if r.Success {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	players, err := f.store.FindPlayers(context.Background(), f.room(t, code).ID)
	require.NoError(t, err)
	for _, p := range players {
		if p.Username == "Bob" {
			assert.Equal(t, 10, p.Score)
		}
	}
}

func TestTimeoutCompletesRound(t *testing.T) {
	f := newFixture(t, nil, func(cfg *cliparse.Config) {
		cfg.QuestionDuration = 40 * time.Millisecond
		cfg.RevealDelay = 10 * time.Millisecond
	})
	code := twoPlayers(t, f)
	f.start(t, "c1")

	f.waitEvents(t, "c1", models.EventGameCompleted, 1)

	assert.Equal(t, 3, f.rec.Count("c2", models.EventTimeUp))
	assert.Equal(t, 3, f.rec.Count("c2", models.EventRevealAnswer))
	assert.Equal(t, 3, f.rec.Count("c2", models.EventNewQuestion))

	ev, _ := f.rec.Last("c2", models.EventRevealAnswer)
	assert.True(t, ev.Payload.(models.RevealAnswerEvent).TimedOut)

	ev, _ = f.rec.Last("c1", models.EventGameCompleted)
	done := ev.Payload.(models.GameCompletedEvent)
	assert.Equal(t, 1, done.Round)
	require.Len(t, done.Leaderboard, 2)
	assert.Equal(t, "Alice", done.Leaderboard[0].Username, "ties keep join order")
	assert.Equal(t, 0, done.Leaderboard[0].Score)

	room := f.room(t, code)
	assert.Equal(t, models.StatusCompleted, room.Status)

	// Everyone got a -1 answer row for the last question
	q3, err := f.store.FindQuestion(context.Background(), room.ID, 3)
	require.NoError(t, err)
	players, err := f.store.FindPlayers(context.Background(), room.ID)
	require.NoError(t, err)
	for _, p := range players {
		answered, err := f.store.HasAnswered(context.Background(), p.ID, q3.ID)
		require.NoError(t, err)
		assert.True(t, answered, p.Username)
		assert.Equal(t, -1, p.CurrentAnswerIndex)
	}

	m, unlock := f.machine(code)
	assert.Equal(t, game.PhaseCompleted, m.Phase())
	assert.False(t, m.Clock().Armed())
	unlock()
}

func TestFullRoundLeaderboard(t *testing.T) {
	f := newFixture(t, nil, longQuestions)
	twoPlayers(t, f)
	f.start(t, "c1")

	// StaticGenerator: question n has correct index n-1
	for n := 1; n <= 3; n++ {
		q := f.question(t, "c1", n)
		f.answer(t, "c2", q, n-1)
		f.answer(t, "c1", q, n%4)
	}

	f.waitEvents(t, "c2", models.EventGameCompleted, 1)
	ev, _ := f.rec.Last("c2", models.EventGameCompleted)
	board := ev.Payload.(models.GameCompletedEvent).Leaderboard
	require.Len(t, board, 2)
	assert.Equal(t, models.LeaderboardEntry{Rank: 1, PlayerID: board[0].PlayerID, Username: "Bob", Score: 30}, board[0])
	assert.Equal(t, "Alice", board[1].Username)
	assert.Equal(t, 0, board[1].Score)
}

func TestTimerSingleArmedAcrossAdvances(t *testing.T) {
	f := newFixture(t, nil, longQuestions)
	code := twoPlayers(t, f)
	f.start(t, "c1")

	for n := 1; n <= 2; n++ {
		q := f.question(t, "c1", n)
		f.answer(t, "c1", q, 0)
		f.answer(t, "c2", q, 0)

		// Reveal arms exactly the advance countdown
		m, unlock := f.machine(code)
		assert.True(t, m.Clock().Armed())
		unlock()

		f.question(t, "c1", n+1)
		m, unlock = f.machine(code)
		assert.Equal(t, game.PhaseQuestionActive, m.Phase())
		assert.True(t, m.Clock().Armed())
		unlock()
	}
}

func TestStartNextRound(t *testing.T) {
	gen := &testutil.StaticGenerator{}
	f := newFixture(t, gen, func(cfg *cliparse.Config) {
		cfg.QuestionDuration = 200 * time.Millisecond
		cfg.RevealDelay = 10 * time.Millisecond
	})
	code := twoPlayers(t, f)
	f.start(t, "c1")

	// Bob scores on question 1 before the clock runs out
	q1 := f.question(t, "c2", 1)
	f.c.SubmitAnswer(context.Background(), "c2", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: 0})
	f.waitEvents(t, "c1", models.EventGameCompleted, 1)

	resp := f.c.StartNextRound(context.Background(), "c2", models.StartGameRequest{Topic: "History"})
	assert.Equal(t, ErrNotHost.Error(), resp.Error)

	resp = f.c.StartNextRound(context.Background(), "c1", models.StartGameRequest{Topic: "History", Difficulty: "hard"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 2, gen.Calls())

	ev, ok := f.rec.Last("c2", models.EventNextRoundStarted)
	require.True(t, ok)
	assert.Equal(t, 2, ev.Payload.(models.GameStartedEvent).Round)

	q := f.question(t, "c2", 4)
	assert.Equal(t, 1, q.QuestionNumber)
	assert.Contains(t, q.Text, "History")

	f.waitEvents(t, "c1", models.EventGameCompleted, 2)
	ev, _ = f.rec.Last("c1", models.EventGameCompleted)
	done := ev.Payload.(models.GameCompletedEvent)
	assert.Equal(t, 2, done.Round)

	scores := map[string]int{}
	for _, e := range done.Leaderboard {
		scores[e.Username] = e.Score
	}
	assert.GreaterOrEqual(t, scores["Bob"], 10, "scores carry over between rounds")

	room := f.room(t, code)
	assert.Equal(t, models.DifficultyHard, room.Difficulty)
}

func TestReconnectMidQuestion(t *testing.T) {
	f := newFixture(t, nil, func(cfg *cliparse.Config) {
		cfg.QuestionDuration = 10 * time.Second
	})
	code := twoPlayers(t, f)
	f.start(t, "c1")
	q1 := f.question(t, "c2", 1)

	// Bob scores, Alice holds the question open
	bobAnswer := f.answer(t, "c2", q1, 0)
	bobEntry, ok := f.c.sessions.Lookup("c2")
	require.True(t, ok)
	bobID := bobEntry.PlayerID

	f.c.HandleDisconnect("c2")
	assert.Equal(t, 1, f.rec.Count("c1", models.EventPlayerDisconnected))

	// Alice is now the only connected player and has not answered
	m, unlock := f.machine(code)
	assert.Equal(t, game.PhaseQuestionActive, m.Phase())
	unlock()

	resp := f.c.ReconnectRoom(context.Background(), "c3", models.JoinRoomRequest{RoomCode: code, Username: "Bob"})
	require.True(t, resp.Success, resp.Error)
	assert.True(t, resp.Reconnected)
	assert.Equal(t, bobID, resp.PlayerID)
	assert.False(t, resp.IsHost)

	require.NotNil(t, resp.CurrentQuestion)
	assert.Equal(t, q1.ID, resp.CurrentQuestion.ID)
	require.NotNil(t, resp.TimeLeft)
	assert.GreaterOrEqual(t, *resp.TimeLeft, 0)
	assert.LessOrEqual(t, *resp.TimeLeft, 10)

	for _, p := range resp.Players {
		if p.Username == "Bob" {
			assert.Equal(t, bobAnswer.PlayerScore, p.Score)
		}
	}
	assert.Equal(t, 1, f.rec.Count("c1", models.EventPlayerReconnected))

	// Already answered before dropping
	again := f.c.SubmitAnswer(context.Background(), "c3", models.SubmitAnswerRequest{QuestionID: q1.ID, AnswerIndex: 0})
	assert.Equal(t, ErrAlreadyAnswered.Error(), again.Error)
}

func TestDisconnectOfLastUnansweredPlayerReveals(t *testing.T) {
	f := newFixture(t, nil, longQuestions)
	twoPlayers(t, f)
	f.start(t, "c1")
	q1 := f.question(t, "c1", 1)

	f.answer(t, "c1", q1, 0)
	f.c.HandleDisconnect("c2")

	ev, ok := f.rec.Last("c1", models.EventRevealAnswer)
	require.True(t, ok)
	assert.Equal(t, q1.ID, ev.Payload.(models.RevealAnswerEvent).QuestionID)
}
