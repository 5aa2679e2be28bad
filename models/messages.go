package models

import (
	"encoding/json"
	"time"
)

// Inbound request types
const (
	RequestCreateRoom     = "create-room"
	RequestJoinRoom       = "join-room"
	RequestReconnectRoom  = "reconnect-room"
	RequestCheckRoom      = "check-room"
	RequestStartGame      = "start-game"
	RequestSubmitAnswer   = "submit-answer"
	RequestStartNextRound = "start-next-round"
	RequestLeaveRoom      = "leave-room"
	RequestGetActiveRooms = "get-active-rooms"
)

// Outbound broadcast events
const (
	EventAck                = "ack"
	EventPlayerJoined       = "player-joined"
	EventPlayerLeft         = "player-left"
	EventPlayerDisconnected = "player-disconnected"
	EventPlayerReconnected  = "player-reconnected"
	EventHostDisconnected   = "host-disconnected"
	EventHostChanged        = "host-changed"
	EventRoomClosed         = "room-closed"
	EventGameStarted        = "game-started"
	EventNewQuestion        = "new-question"
	EventTimerStart         = "timer-start"
	EventTimeUp             = "time-up"
	EventRevealAnswer       = "reveal-answer"
	EventScoreUpdate        = "score-update"
	EventNextRoundStarted   = "next-round-started"
	EventGameCompleted      = "game-completed"
)

// Wire frames

// ClientMessage is one request frame read from a connection
type ClientMessage struct {
	Type string          `json:"type"`
	Ack  int64           `json:"ack,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is one frame written to a connection
type ServerMessage struct {
	Event string      `json:"event"`
	Ack   int64       `json:"ack,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// Request types

type CreateRoomRequest struct {
	Username string `json:"username"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type CheckRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type StartGameRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}

type SubmitAnswerRequest struct {
	QuestionID   string  `json:"questionId"`
	AnswerIndex  int     `json:"answerIndex"`
	ResponseTime float64 `json:"responseTime"`
}

type ValidateRoomRequest struct {
	Code string `json:"code"`
}

// Response types. Every reply embeds Result so the client always sees
// {success, error?, ...data}.

type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Failure builds an error envelope
func Failure(message string) Result {
	return Result{Success: false, Error: message}
}

type CreateRoomResponse struct {
	Result
	RoomCode string       `json:"roomCode,omitempty"`
	PlayerID string       `json:"playerId,omitempty"`
	IsHost   bool         `json:"isHost"`
	Players  []PlayerView `json:"players,omitempty"`
}

type JoinRoomResponse struct {
	Result
	RoomCode        string        `json:"roomCode,omitempty"`
	PlayerID        string        `json:"playerId,omitempty"`
	IsHost          bool          `json:"isHost"`
	Players         []PlayerView  `json:"players,omitempty"`
	Room            *RoomSummary  `json:"room,omitempty"`
	CurrentQuestion *QuestionView `json:"currentQuestion,omitempty"`
	TimeLeft        *int          `json:"timeLeft,omitempty"`
	Reconnected     bool          `json:"reconnected,omitempty"`
}

type CheckRoomResponse struct {
	Result
	Exists bool         `json:"exists"`
	Room   *RoomSummary `json:"room,omitempty"`
}

type StartGameResponse struct {
	Result
	Message string `json:"message,omitempty"`
}

type SubmitAnswerResponse struct {
	Result
	IsCorrect     bool `json:"isCorrect"`
	CorrectAnswer int  `json:"correctAnswer"`
	PlayerScore   int  `json:"playerScore"`
}

type LeaveRoomResponse struct {
	Result
	RoomDeleted bool `json:"roomDeleted"`
}

type ActiveRoomsResponse struct {
	Result
	Rooms []ActiveRoom `json:"rooms"`
}

type ValidateRoomResponse struct {
	Result
	Room *RoomSummary `json:"room,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Views shared by responses and events

type PlayerView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	HasAnswered bool   `json:"hasAnswered"`
	Connected   bool   `json:"connected"`
}

// NewPlayerView projects a player row for clients
func NewPlayerView(p Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Username:    p.Username,
		Score:       p.Score,
		IsHost:      p.IsHost,
		HasAnswered: p.HasAnswered,
		Connected:   p.Connected(),
	}
}

// PlayerViews projects a slice of players
func PlayerViews(players []Player) []PlayerView {
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, NewPlayerView(p))
	}
	return views
}

type RoomSummary struct {
	Code            string  `json:"code"`
	HostUsername    string  `json:"hostUsername"`
	Status          string  `json:"status"`
	Topic           *string `json:"topic,omitempty"`
	Difficulty      string  `json:"difficulty"`
	CurrentPlayers  int     `json:"currentPlayers"`
	MaxPlayers      int     `json:"maxPlayers"`
	CurrentQuestion int     `json:"currentQuestion"`
	TotalQuestions  int     `json:"totalQuestions"`
}

// NewRoomSummary projects a room row for clients
func NewRoomSummary(r Room, connected int) *RoomSummary {
	return &RoomSummary{
		Code:            r.Code,
		HostUsername:    r.HostUsername,
		Status:          r.Status,
		Topic:           r.Topic,
		Difficulty:      r.Difficulty,
		CurrentPlayers:  connected,
		MaxPlayers:      r.MaxPlayers,
		CurrentQuestion: r.CurrentQuestionIndex,
		TotalQuestions:  r.TotalQuestions,
	}
}

// QuestionView is a question without its correct index
type QuestionView struct {
	ID             string    `json:"id"`
	QuestionNumber int       `json:"questionNumber"`
	TotalQuestions int       `json:"totalQuestions"`
	Text           string    `json:"question"`
	Options        [4]string `json:"options"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Event payloads

type PlayerJoinedEvent struct {
	Username string       `json:"username"`
	Players  []PlayerView `json:"players"`
	Room     *RoomSummary `json:"room"`
}

type PlayerLeftEvent struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type HostDisconnectedEvent struct {
	Username     string `json:"username"`
	Message      string `json:"message"`
	GraceSeconds int    `json:"graceSeconds"`
}

type HostChangedEvent struct {
	PlayerID string       `json:"playerId"`
	Username string       `json:"username"`
	Players  []PlayerView `json:"players"`
}

type RoomClosedEvent struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type GameStartedEvent struct {
	Topic          string `json:"topic"`
	Difficulty     string `json:"difficulty"`
	Round          int    `json:"round"`
	TotalQuestions int    `json:"totalQuestions"`
}

type NewQuestionEvent struct {
	Question  QuestionView `json:"question"`
	TimeLimit int          `json:"timeLimit"`
}

type TimerStartEvent struct {
	QuestionID string    `json:"questionId"`
	Duration   int       `json:"duration"`
	EndsAt     time.Time `json:"endsAt"`
}

type TimeUpEvent struct {
	QuestionID string `json:"questionId"`
}

type RevealAnswerEvent struct {
	QuestionID     string `json:"questionId"`
	QuestionNumber int    `json:"questionNumber"`
	CorrectAnswer  int    `json:"correctAnswer"`
	TimedOut       bool   `json:"timedOut"`
}

type ScoreUpdateEvent struct {
	Players []PlayerView `json:"players"`
}

type GameCompletedEvent struct {
	Round       int                `json:"round"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}
