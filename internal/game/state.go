package game

import (
	"fmt"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

var transitions = map[domain.GameState][]domain.GameState{
	domain.StateWaiting: {domain.StatePlaying},
	domain.StatePlaying: {domain.StateWon, domain.StateLost, domain.StateWaiting},
	domain.StateWon:     {domain.StateWaiting},
	domain.StateLost:    {domain.StateWaiting},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to domain.GameState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition is the gate every changed session passes before Apply
// returns it: the state change must be in the table and the result must
// satisfy the session invariants.
func checkTransition(before, after *domain.Session) error {
	if before.State != after.State && !CanTransition(before.State, after.State) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, before.State, after.State)
	}
	if err := after.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIllegalTransition, err)
	}
	return nil
}

// AllSafeRevealed reports whether no non-mine cell is still hidden.
func AllSafeRevealed(b *domain.Board) bool {
	for _, row := range b.Cells {
		for _, c := range row {
			if !c.IsMine && !c.IsRevealed {
				return false
			}
		}
	}
	return true
}

// Evaluate settles win and loss for a playing session. It runs inside the
// transition that mutated the board so state and board never disagree.
func Evaluate(s *domain.Session, at time.Time) []domain.Event {
	if s.State != domain.StatePlaying || s.Board == nil {
		return nil
	}
	switch {
	case s.Lives <= 0:
		s.Lives = 0
		RevealAllMines(s.Board)
		finish(s, domain.StateLost, at)
		return []domain.Event{{Kind: domain.EventGameLost, Actor: s.LastTriggeredBy}}
	case AllSafeRevealed(s.Board):
		finish(s, domain.StateWon, at)
		return []domain.Event{{Kind: domain.EventGameWon, Lives: s.Lives}}
	}
	return nil
}

func finish(s *domain.Session, to domain.GameState, at time.Time) {
	s.State = to
	s.FirstClickPending = false
	ended := at
	s.EndedAt = &ended
}
