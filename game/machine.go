// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package game

import (
	"errors"
	"sort"
	"time"

	"github.com/danielhkuo/quizsmash/models"
)

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseQuestionActive
	PhaseReveal
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseQuestionActive:
		return "question-active"
	case PhaseReveal:
		return "reveal"
	case PhaseCompleted:
		return "completed"
	}
	return "unknown"
}

var (
	ErrStartInProgress  = errors.New("round start already in progress")
	ErrInvalidPhase     = errors.New("operation not allowed in current phase")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrAlreadyAnswered  = errors.New("player already answered")
)

// Machine is the in-memory game state of one room. It is not safe for
// concurrent use; the owner serializes access.
type Machine struct {
	phase      Phase
	round      int
	question   int
	total      int
	topic      string
	difficulty string

	questionID   string
	correctIndex int
	startedAt    time.Time
	duration     time.Duration
	answered     map[string]bool

	starting bool

	clock Timer
	grace Timer
}

func NewMachine() *Machine {
	return &Machine{phase: PhaseLobby, answered: map[string]bool{}}
}

func (m *Machine) Phase() Phase { return m.phase }
func (m *Machine) Round() int { return m.round }
func (m *Machine) Question() int { return m.question }
func (m *Machine) Total() int { return m.total }
func (m *Machine) Topic() string { return m.topic }
func (m *Machine) Difficulty() string { return m.difficulty }
func (m *Machine) QuestionID() string { return m.questionID }
func (m *Machine) CorrectIndex() int { return m.correctIndex }
func (m *Machine) StartedAt() time.Time { return m.startedAt }
func (m *Machine) Duration() time.Duration { return m.duration }
func (m *Machine) Starting() bool { return m.starting }

// Clock is the question countdown: time-up, reveal settle and round intro
// all share it, so at most one is pending at a time.
func (m *Machine) Clock() *Timer { return &m.clock }

// Grace is the host reconnection window
func (m *Machine) Grace() *Timer { return &m.grace }

// BeginStart claims the right to start a round. It fails if another start
// is pending or the current phase is not one of allowed.
func (m *Machine) BeginStart(allowed ...Phase) error {
	if m.starting {
		return ErrStartInProgress
	}
	for _, p := range allowed {
		if m.phase == p {
			m.starting = true
			return nil
		}
	}
	return ErrInvalidPhase
}

// AbortStart releases a claim taken by BeginStart
func (m *Machine) AbortStart() {
	m.starting = false
}

// StartRound begins a new round with total questions. The machine waits in
// Reveal(0) until the first question is opened.
func (m *Machine) StartRound(topic, difficulty string, total int) int {
	m.clock.Disarm()
	m.starting = false
	m.round++
	m.topic = topic
	m.difficulty = difficulty
	m.total = total
	m.question = 0
	m.questionID = ""
	m.answered = map[string]bool{}
	m.phase = PhaseReveal
	return m.round
}

// OpenQuestion makes question n active. Callers arm the clock afterwards.
func (m *Machine) OpenQuestion(n int, questionID string, correctIndex int, now time.Time, d time.Duration) {
	m.clock.Disarm()
	m.phase = PhaseQuestionActive
	m.question = n
	m.questionID = questionID
	m.correctIndex = correctIndex
	m.startedAt = now
	m.duration = d
	m.answered = map[string]bool{}
}

// RecordAnswer marks the player as having answered the active question
func (m *Machine) RecordAnswer(playerID string) error {
	if m.phase != PhaseQuestionActive {
		return ErrNoActiveQuestion
	}
	if m.answered[playerID] {
		return ErrAlreadyAnswered
	}
	m.answered[playerID] = true
	return nil
}

func (m *Machine) HasAnswered(playerID string) bool {
	return m.answered[playerID]
}

// AllAnswered reports whether every connected player has answered. An empty
// room never counts as all answered.
func (m *Machine) AllAnswered(connected []string) bool {
	if m.phase != PhaseQuestionActive || len(connected) == 0 {
		return false
	}
	for _, id := range connected {
		if !m.answered[id] {
			return false
		}
	}
	return true
}

// Unanswered returns the connected players yet to answer, in input order
func (m *Machine) Unanswered(connected []string) []string {
	var out []string
	for _, id := range connected {
		if !m.answered[id] {
			out = append(out, id)
		}
	}
	return out
}

// Reveal closes the active question. It returns false if no question is
// active, so a second trigger for the same question does nothing.
func (m *Machine) Reveal() bool {
	if m.phase != PhaseQuestionActive {
		return false
	}
	m.clock.Disarm()
	m.phase = PhaseReveal
	return true
}

// HasNext reports whether the round has questions left after the current one
func (m *Machine) HasNext() bool {
	return m.question < m.total
}

func (m *Machine) Complete() {
	m.clock.Disarm()
	m.phase = PhaseCompleted
	m.questionID = ""
}

// TimeLeft returns the remaining time of the active question, never negative
func (m *Machine) TimeLeft(now time.Time) time.Duration {
	if m.phase != PhaseQuestionActive {
		return 0
	}
	left := m.startedAt.Add(m.duration).Sub(now)
	if left < 0 {
		return 0
	}
	if left > m.duration {
		return m.duration
	}
	return left
}

// Stop cancels every pending timer
func (m *Machine) Stop() {
	m.clock.Disarm()
	m.grace.Disarm()
}

// Points returns the award for one answer. Response time does not matter.
func Points(correct bool, perCorrect int) int {
	if correct {
		return perCorrect
	}
	return 0
}

// Leaderboard ranks players by score, highest first. Ties keep input order.
func Leaderboard(players []models.Player) []models.LeaderboardEntry {
	sorted := make([]models.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	entries := make([]models.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = models.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Username: p.Username,
			Score:    p.Score,
		}
	}
	return entries
}
