package domain

import (
	"fmt"
	"maps"
	"time"
)

// GameState - lifecycle of a room's game
type GameState string

const (
	StateWaiting GameState = "waiting"
	StatePlaying GameState = "playing"
	StateWon     GameState = "won"
	StateLost    GameState = "lost"
)

// Difficulty selects the mine density.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var densities = map[Difficulty]float64{
	DifficultyEasy:   0.12,
	DifficultyMedium: 0.16,
	DifficultyHard:   0.20,
}

// Density returns the mine density for d and whether d is known.
func (d Difficulty) Density() (float64, bool) {
	v, ok := densities[d]
	return v, ok
}

// BoardSize selects board dimensions and the shield quota.
type BoardSize string

const (
	SizeSmall  BoardSize = "small"
	SizeMedium BoardSize = "medium"
	SizeLarge  BoardSize = "large"
	SizeHell   BoardSize = "hell"
)

// Dimensions of a board size preset.
type Dimensions struct {
	Rows    int `json:"rows"`
	Cols    int `json:"cols"`
	Shields int `json:"shields"`
}

var sizes = map[BoardSize]Dimensions{
	SizeSmall:  {Rows: 9, Cols: 9, Shields: 2},
	SizeMedium: {Rows: 16, Cols: 16, Shields: 4},
	SizeLarge:  {Rows: 16, Cols: 30, Shields: 6},
	SizeHell:   {Rows: 50, Cols: 50, Shields: 20},
}

func (s BoardSize) Dimensions() (Dimensions, bool) {
	v, ok := sizes[s]
	return v, ok
}

const (
	DefaultMaxLives     = 3
	MaxLivesLimit       = 9
	StartingShieldGrant = 2
	RoomIDLength        = 6
	MaxPlayerNameLength = 16
)

// Player - member of a room. Name is the identity key.
type Player struct {
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Session is the whole shared document of one room.
type Session struct {
	ID                string            `json:"id"`
	Board             *Board            `json:"board"`
	State             GameState         `json:"gameState"`
	Difficulty        Difficulty        `json:"difficulty"`
	BoardSize         BoardSize         `json:"boardSize"`
	FirstClickPending bool              `json:"firstClickPending"`
	Lives             int               `json:"lives"`
	MaxLives          int               `json:"maxLives"`
	ShieldsEnabled    bool              `json:"shieldsEnabled"`
	PlayerShields     map[string]int    `json:"playerShields"`
	LastTriggeredBy   string            `json:"lastTriggeredBy,omitempty"`
	Players           map[string]Player `json:"players"`
	Host              string            `json:"host"`
	CreatedAt         time.Time         `json:"createdAt"`
	StartedAt         *time.Time        `json:"startedAt,omitempty"`
	EndedAt           *time.Time        `json:"endedAt,omitempty"`
}

// NewSession returns an empty waiting room with default settings.
func NewSession(id string, createdAt time.Time) *Session {
	return &Session{
		ID:             id,
		State:          StateWaiting,
		Difficulty:     DifficultyEasy,
		BoardSize:      SizeSmall,
		MaxLives:       DefaultMaxLives,
		ShieldsEnabled: true,
		PlayerShields:  map[string]int{},
		Players:        map[string]Player{},
		CreatedAt:      createdAt,
	}
}

// Clone deep-copies the session so transitions never alias their input.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Board = s.Board.Clone()
	out.PlayerShields = maps.Clone(s.PlayerShields)
	if out.PlayerShields == nil {
		out.PlayerShields = map[string]int{}
	}
	out.Players = maps.Clone(s.Players)
	if out.Players == nil {
		out.Players = map[string]Player{}
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// Finished reports whether the game reached a terminal state.
func (s *Session) Finished() bool {
	return s.State == StateWon || s.State == StateLost
}

// Validate checks the structural invariants of a stored session.
func (s *Session) Validate() error {
	if (s.Board == nil) != (s.State == StateWaiting) {
		return fmt.Errorf("session %s: board presence does not match state %q", s.ID, s.State)
	}
	if s.Lives < 0 {
		return fmt.Errorf("session %s: negative lives", s.ID)
	}
	if s.State == StateLost && s.Lives > 0 {
		// lost is only reachable through lives running out
		return fmt.Errorf("session %s: lost with %d lives", s.ID, s.Lives)
	}
	return nil
}

// MinesLeft is the number of mines minus placed flags, as shown to players.
func (s *Session) MinesLeft() int {
	if s == nil || s.Board == nil {
		return 0
	}
	mines := s.Board.Count(func(c Cell) bool { return c.IsMine })
	flags := s.Board.Count(func(c Cell) bool { return c.IsFlagged })
	return mines - flags
}
