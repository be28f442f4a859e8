package domain

import (
	"slices"
	"time"
)

// GameOutcome - how a finished game ended
type GameOutcome string

const (
	OutcomeWon  GameOutcome = "won"
	OutcomeLost GameOutcome = "lost"
)

// GameRecord - a finished game as stored in history
type GameRecord struct {
	ID          int64          `db:"id" json:"id"`
	RoomID      string         `db:"room_id" json:"room_id"`
	Outcome     GameOutcome    `db:"outcome" json:"outcome"`
	Difficulty  Difficulty     `db:"difficulty" json:"difficulty"`
	BoardSize   BoardSize      `db:"board_size" json:"board_size"`
	Rows        int            `db:"rows" json:"rows"`
	Cols        int            `db:"cols" json:"cols"`
	Mines       int            `db:"mines" json:"mines"`
	LivesLeft   int            `db:"lives_left" json:"lives_left"`
	MaxLives    int            `db:"max_lives" json:"max_lives"`
	TriggeredBy *string        `db:"triggered_by" json:"triggered_by,omitempty"`
	Reveals     map[string]int `db:"reveals" json:"reveals"` // player -> revealed cells
	Players     []string       `db:"players" json:"players"`
	StartedAt   time.Time      `db:"started_at" json:"started_at"`
	EndedAt     time.Time      `db:"ended_at" json:"ended_at"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// NewGameRecord builds the history entry for a session in a terminal state.
func NewGameRecord(s *Session) *GameRecord {
	rec := &GameRecord{
		RoomID:     s.ID,
		Outcome:    GameOutcome(s.State),
		Difficulty: s.Difficulty,
		BoardSize:  s.BoardSize,
		LivesLeft:  s.Lives,
		MaxLives:   s.MaxLives,
		Reveals:    make(map[string]int),
		Players:    make([]string, 0, len(s.Players)),
	}
	if s.LastTriggeredBy != "" {
		by := s.LastTriggeredBy
		rec.TriggeredBy = &by
	}
	for name := range s.Players {
		rec.Players = append(rec.Players, name)
	}
	slices.Sort(rec.Players)
	if s.Board != nil {
		rec.Rows, rec.Cols = s.Board.Rows, s.Board.Cols
		for _, row := range s.Board.Cells {
			for _, c := range row {
				if c.IsMine {
					rec.Mines++
				}
				if c.IsRevealed && !c.IsMine && c.RevealedBy != "" {
					rec.Reveals[c.RevealedBy]++
				}
			}
		}
	}
	if s.StartedAt != nil {
		rec.StartedAt = *s.StartedAt
	}
	if s.EndedAt != nil {
		rec.EndedAt = *s.EndedAt
	}
	return rec
}
