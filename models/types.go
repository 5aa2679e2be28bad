package models

import "time"

// Room status constants
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Difficulty levels
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Room defaults
const (
	DefaultMaxPlayers     = 4
	DefaultTotalQuestions = 3
	OptionCount           = 4
)

// ValidDifficulty reports whether d is one of easy, medium or hard
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Domain types

type Room struct {
	ID                   string    `json:"id"`
	Code                 string    `json:"code"`
	HostUsername         string    `json:"host_username"`
	Topic                *string   `json:"topic,omitempty"`
	Difficulty           string    `json:"difficulty"`
	Status               string    `json:"status"`
	CurrentQuestionIndex int       `json:"current_question"`
	TotalQuestions       int       `json:"total_questions"`
	MaxPlayers           int       `json:"max_players"`
	CurrentPlayers       int       `json:"current_players"`
	SecondsPerQuestion   int       `json:"time_per_question"`
	PointsPerQuestion    int       `json:"points_per_question"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
}

// Expired reports whether the room is past its retention window
func (r Room) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

type Player struct {
	ID                 string     `json:"id"`
	RoomID             string     `json:"-"`
	Username           string     `json:"username"`
	ConnectionID       *string    `json:"-"` // nil while disconnected
	Score              int        `json:"score"`
	IsHost             bool       `json:"is_host"`
	CurrentAnswerIndex int        `json:"-"`
	HasAnswered        bool       `json:"has_answered"`
	JoinedAt           time.Time  `json:"joined_at"`
	LeftAt             *time.Time `json:"-"`
}

// Connected reports whether the player currently holds a connection
func (p Player) Connected() bool {
	return p.ConnectionID != nil
}

type Question struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	QuestionNumber int       `json:"question_number"`
	Text           string    `json:"question"`
	Options        [4]string `json:"options"`
	CorrectIndex   int       `json:"-"` // Never broadcast before reveal
}

type Answer struct {
	ID            string    `json:"id"`
	PlayerID      string    `json:"player_id"`
	QuestionID    string    `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
	IsCorrect     bool      `json:"is_correct"`
	ResponseTime  float64   `json:"response_time"`
	AnsweredAt    time.Time `json:"answered_at"`
}

// GeneratedQuestion is a question as produced by a generator, before it is
// bound to a room
type GeneratedQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// ActiveRoom is one entry of the public lobby listing
type ActiveRoom struct {
	Code             string    `json:"code"`
	HostUsername     string    `json:"host_username"`
	Topic            *string   `json:"topic,omitempty"`
	Difficulty       string    `json:"difficulty"`
	Status           string    `json:"status"`
	CurrentPlayers   int       `json:"current_players"`
	ConnectedPlayers int       `json:"connected_players"`
	MaxPlayers       int       `json:"max_players"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedAgo       string    `json:"created_ago"`
	PlayerNames      []string  `json:"player_names"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
