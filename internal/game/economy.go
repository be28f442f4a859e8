package game

import "github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"

// TriggerMine applies a mine hit at (row, col) by actor. A held shield
// absorbs the hit; otherwise the team loses a life. Running out of lives is
// settled by Evaluate in the same transition.
func TriggerMine(s *domain.Session, row, col int, actor string) []domain.Event {
	cell := s.Board.At(row, col)
	if !cell.IsMine || cell.IsRevealed {
		return nil
	}
	cell.Reveal(actor)

	if s.PlayerShields[actor] > 0 {
		s.PlayerShields[actor]--
		cell.ShieldUsed = true
		return []domain.Event{{
			Kind:    domain.EventShieldUsed,
			Actor:   actor,
			Row:     row,
			Col:     col,
			Shields: s.PlayerShields[actor],
			Lives:   s.Lives,
		}}
	}

	if s.Lives > 0 {
		s.Lives--
	}
	s.LastTriggeredBy = actor
	return []domain.Event{{
		Kind:  domain.EventMineHit,
		Actor: actor,
		Row:   row,
		Col:   col,
		Lives: s.Lives,
	}}
}

// CollectShield is the second click on a discovered shield. Whoever clicks
// gets the shield, not necessarily the player who uncovered it.
func CollectShield(s *domain.Session, row, col int, actor string) []domain.Event {
	if !s.Board.At(row, col).Collect(actor) {
		return nil
	}
	s.PlayerShields[actor]++
	return []domain.Event{{
		Kind:    domain.EventShieldCollected,
		Actor:   actor,
		Row:     row,
		Col:     col,
		Shields: s.PlayerShields[actor],
	}}
}

// GrantStartingShields resets the shield ledger to the fixed grant for every
// current member. Players joining later start with none.
func GrantStartingShields(s *domain.Session) {
	s.PlayerShields = make(map[string]int, len(s.Players))
	for name := range s.Players {
		s.PlayerShields[name] = domain.StartingShieldGrant
	}
}

// RevealAllMines opens every mine, used when the team runs out of lives.
func RevealAllMines(b *domain.Board) {
	for r := range b.Cells {
		for c := range b.Cells[r] {
			if cell := &b.Cells[r][c]; cell.IsMine {
				cell.IsRevealed = true
			}
		}
	}
}
